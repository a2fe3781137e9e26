package ledgerdb

import (
	"context"
	"testing"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := common.NewSilentLogger()
	store, err := NewStore(logger, t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAccountCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := &models.Account{
		UserID:         "alice",
		Balance:        100000,
		InitialBalance: 100000,
	}
	if err := store.SaveAccount(ctx, account); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	got, err := store.GetAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Balance != 100000 {
		t.Errorf("expected balance 100000, got %g", got.Balance)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("SaveAccount should stamp UpdatedAt")
	}

	// Update
	got.Balance = 95000
	got.Holdings = []models.Holding{{Symbol: "AAPL", Quantity: 10, AvgPrice: 500}}
	if err := store.SaveAccount(ctx, got); err != nil {
		t.Fatalf("SaveAccount update: %v", err)
	}
	got, _ = store.GetAccount(ctx, "alice")
	if len(got.Holdings) != 1 || got.Holdings[0].Symbol != "AAPL" {
		t.Errorf("unexpected holdings: %+v", got.Holdings)
	}

	// Delete
	if err := store.DeleteAccount(ctx, "alice"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := store.GetAccount(ctx, "alice"); !models.IsNotFound(err) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}

	// Deleting a missing account is not an error
	if err := store.DeleteAccount(ctx, "alice"); err != nil {
		t.Errorf("DeleteAccount on missing account: %v", err)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetAccount(context.Background(), "nobody")
	if !models.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUserCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := &models.User{
		UserID:       "bob",
		Email:        "bob@example.com",
		PasswordHash: "$2a$10$fake",
	}
	if err := store.SaveUser(ctx, user); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	got, err := store.GetUser(ctx, "bob")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != "bob@example.com" {
		t.Errorf("unexpected email: %s", got.Email)
	}

	if _, err := store.GetUser(ctx, "nobody"); !models.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

// Accounts and users share a keyspace; an identical ID in both must not collide.
func TestUserAndAccountKeysDoNotCollide(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveAccount(ctx, &models.Account{UserID: "carol", Balance: 50000}); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}
	if err := store.SaveUser(ctx, &models.User{UserID: "carol", Email: "carol@example.com"}); err != nil {
		t.Fatalf("SaveUser: %v", err)
	}

	account, err := store.GetAccount(ctx, "carol")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Balance != 50000 {
		t.Errorf("account clobbered: %+v", account)
	}

	user, err := store.GetUser(ctx, "carol")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.Email != "carol@example.com" {
		t.Errorf("user clobbered: %+v", user)
	}
}

// Package ledgerdb implements AccountStore and UserStore using BadgerHold.
// It holds the mutable per-user records: accounts and identity.
package ledgerdb

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/models"
)

// Store implements interfaces.AccountStore and interfaces.UserStore.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore creates a new ledger store backed by BadgerHold.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledgerdb path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledgerdb at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("LedgerDB opened")
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- Accounts ---

func (s *Store) GetAccount(_ context.Context, userID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Get(userID, &account); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, &models.NotFoundError{Resource: "account", Key: userID}
		}
		return nil, fmt.Errorf("failed to get account '%s': %w", userID, err)
	}
	return &account, nil
}

func (s *Store) SaveAccount(_ context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now()
	if err := s.db.Upsert(account.UserID, account); err != nil {
		return fmt.Errorf("failed to save account '%s': %w", account.UserID, err)
	}
	s.logger.Debug().Str("user_id", account.UserID).Float64("balance", account.Balance).Msg("Account saved")
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, userID string) error {
	if err := s.db.Delete(userID, models.Account{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete account '%s': %w", userID, err)
	}
	return nil
}

// --- Users ---

// userKey namespaces identity records away from accounts, which share the
// same keyspace. A null byte cannot appear in a valid user ID.
func userKey(userID string) string {
	return "user\x00" + userID
}

func (s *Store) GetUser(_ context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.Get(userKey(userID), &user); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, &models.NotFoundError{Resource: "user", Key: userID}
		}
		return nil, fmt.Errorf("failed to get user '%s': %w", userID, err)
	}
	return &user, nil
}

func (s *Store) SaveUser(_ context.Context, user *models.User) error {
	if err := s.db.Upsert(userKey(user.UserID), user); err != nil {
		return fmt.Errorf("failed to save user '%s': %w", user.UserID, err)
	}
	s.logger.Debug().Str("user_id", user.UserID).Msg("User saved")
	return nil
}

// Compile-time checks
var (
	_ interfaces.AccountStore = (*Store)(nil)
	_ interfaces.UserStore    = (*Store)(nil)
)

// Package interfaces defines service contracts for paperd
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/paperd/internal/models"
)

// StorageManager coordinates the storage backends.
type StorageManager interface {
	AccountStore() AccountStore
	UserStore() UserStore
	OrderStore() OrderStore
	DecisionStore() DecisionStore
	PositionStore() PositionStore

	Close() error
}

// AccountStore persists one Account per user.
type AccountStore interface {
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error
	DeleteAccount(ctx context.Context, userID string) error
}

// UserStore persists identity records for the auth boundary.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
}

// OrderQuery configures order history queries.
type OrderQuery struct {
	Status string // filter by status when non-empty
	Limit  int    // 0 means store default
}

// OrderStore persists immutable order records. Append-only: there is no
// update operation.
type OrderStore interface {
	SaveOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, userID string, q OrderQuery) ([]*models.Order, error)
	LastOrderTime(ctx context.Context, symbol string) (time.Time, error)
}

// DecisionStore persists append-only prediction decisions.
type DecisionStore interface {
	SaveDecision(ctx context.Context, decision *models.Decision) error
	GetDecision(ctx context.Context, id string) (*models.Decision, error)
	ListDecisions(ctx context.Context, symbol string, limit int) ([]*models.Decision, error)
	CountDecisionsSince(ctx context.Context, since time.Time) (int, error)
}

// PositionStore persists the pipeline's per-symbol positions.
type PositionStore interface {
	GetPosition(ctx context.Context, symbol string) (*models.Position, error)
	SavePosition(ctx context.Context, position *models.Position) error
	DeletePosition(ctx context.Context, symbol string) error
	ListPositions(ctx context.Context) ([]*models.Position, error)
	DeleteAll(ctx context.Context) (int, error)
}

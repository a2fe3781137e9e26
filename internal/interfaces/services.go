package interfaces

import (
	"context"

	"github.com/bobmcallan/paperd/internal/models"
)

// LedgerService owns all mutation of account balance and holdings. ApplyFill
// is atomic per user: either the whole cash/holding effect commits, or the
// account is left untouched and a typed domain error is returned.
type LedgerService interface {
	CreateAccount(ctx context.Context, userID string, initialBalance float64) (*models.Account, error)
	GetAccount(ctx context.Context, userID string) (*models.Account, error)
	ApplyFill(ctx context.Context, userID, side, symbol string, quantity, price float64) (*models.Account, error)
	Reset(ctx context.Context, userID string) (*models.Account, error)
}

// PositionService tracks the automated pipeline's per-symbol exposure.
type PositionService interface {
	ApplyFill(ctx context.Context, symbol, side string, quantity, price float64) (*models.Position, error)
	CurrentFlag(ctx context.Context, symbol string) (bool, error)
	List(ctx context.Context) ([]*models.Position, error)
	Reset(ctx context.Context) error
}

// ExecutorService turns a validated trade intent into exactly one immutable
// Order plus the resulting account snapshot.
type ExecutorService interface {
	Execute(ctx context.Context, intent *models.OrderIntent) (*models.Order, *models.Account, error)
}

// SignalRequest is one incoming automated decision request.
type SignalRequest struct {
	Symbol string    `json:"symbol"`
	Closes []float64 `json:"closes,omitempty"`
	Obs    []float64 `json:"obs,omitempty"`
	Price  float64   `json:"price"`
	DryRun bool      `json:"dry_run"`
}

// Signal pipeline results
const (
	SignalResultHold        = "HOLD"
	SignalResultOrderPlaced = "ORDER_PLACED"
)

// SignalResult is the terminal outcome of one pipeline invocation.
type SignalResult struct {
	Result     string           `json:"result"`
	DecisionID string           `json:"decision_id"`
	Order      *models.Order    `json:"order,omitempty"`
	Position   *models.Position `json:"position,omitempty"`
}

// PipelineService runs the automated decision pipeline, one invocation per
// incoming signal. Invocations for the same symbol are processed strictly in
// arrival order; different symbols run concurrently.
type PipelineService interface {
	Process(ctx context.Context, req *SignalRequest) (*SignalResult, error)
}

// Broadcaster fans out decision and order events to live subscribers.
// Best-effort, at-most-once: a slow subscriber is dropped, never waited on.
type Broadcaster interface {
	BroadcastDecision(decision *models.Decision)
	BroadcastOrder(order *models.Order)
}

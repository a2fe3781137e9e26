// Package executor turns validated trade intents into fills.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/models"
)

// Service implements ExecutorService: instant full fill at the submitted
// price. The ledger mutation is the single atomic unit; if it rejects, no
// order is persisted and no state changes.
type Service struct {
	ledger    interfaces.LedgerService
	positions interfaces.PositionService
	orders    interfaces.OrderStore
	logger    *common.Logger
}

// NewService creates a new order executor.
func NewService(ledger interfaces.LedgerService, positions interfaces.PositionService, orders interfaces.OrderStore, logger *common.Logger) *Service {
	return &Service{
		ledger:    ledger,
		positions: positions,
		orders:    orders,
		logger:    logger,
	}
}

// NewOrderID generates a globally unique order ID without a coordination
// round-trip: monotonic wall-clock nanos plus a random UUID suffix.
func NewOrderID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixNano(), suffix)
}

// Execute validates the intent, applies the fill to the ledger, updates the
// position aggregate, and persists the immutable order record. Returns the
// order and an account snapshot with recomputed portfolio stats.
func (s *Service) Execute(ctx context.Context, intent *models.OrderIntent) (*models.Order, *models.Account, error) {
	if err := intent.Validate(); err != nil {
		return nil, nil, err
	}

	orderType := intent.OrderType
	if orderType == "" {
		orderType = "MARKET"
	}

	account, err := s.ledger.ApplyFill(ctx, intent.UserID, intent.Side, intent.Symbol, intent.Quantity, intent.Price)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	order := &models.Order{
		OrderID:     NewOrderID(),
		UserID:      intent.UserID,
		Symbol:      intent.Symbol,
		Side:        intent.Side,
		Quantity:    intent.Quantity,
		Price:       intent.Price,
		OrderType:   orderType,
		Status:      models.OrderStatusFilled,
		DecisionRef: intent.DecisionRef,
		CreatedAt:   now,
		FilledAt:    now,
	}

	if err := s.orders.SaveOrder(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("fill applied but order record failed: %w", err)
	}

	// Keep the aggregate position in step with manual fills. Position
	// accounting failure does not unwind the fill; it is logged and surfaced
	// through the position views instead.
	if _, err := s.positions.ApplyFill(ctx, intent.Symbol, intent.Side, intent.Quantity, intent.Price); err != nil {
		s.logger.Warn().
			Err(err).
			Str("order_id", order.OrderID).
			Str("symbol", intent.Symbol).
			Msg("Position update failed after fill")
	}

	s.logger.Info().
		Str("order_id", order.OrderID).
		Str("user_id", intent.UserID).
		Str("side", intent.Side).
		Str("symbol", intent.Symbol).
		Float64("quantity", intent.Quantity).
		Float64("price", intent.Price).
		Msg("Order filled")

	return order, account, nil
}

// Ensure Service implements ExecutorService
var _ interfaces.ExecutorService = (*Service)(nil)

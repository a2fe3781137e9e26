// Package execution provides execution adapters: paper (in-process instant
// fill) and an HTTP venue forwarder, behind one PlaceOrder contract.
package execution

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

// PaperAdapter fills every order instantly at the submitted price. This is
// the default venue for paper trading.
type PaperAdapter struct {
	logger *common.Logger
}

// NewPaperAdapter creates a paper execution adapter.
func NewPaperAdapter(logger *common.Logger) *PaperAdapter {
	return &PaperAdapter{logger: logger}
}

// PlaceOrder fills the order immediately at the quoted price.
func (a *PaperAdapter) PlaceOrder(ctx context.Context, req *interfaces.PlaceOrderRequest) (*interfaces.PlaceOrderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	orderID := fmt.Sprintf("ORD-%d-%s", now.UnixNano(), suffix)

	a.logger.Debug().
		Str("order_id", orderID).
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Float64("quantity", req.Quantity).
		Float64("price", req.Price).
		Msg("Paper fill")

	return &interfaces.PlaceOrderResult{
		OrderID:  orderID,
		Status:   models.OrderStatusFilled,
		Raw:      `{"venue":"paper"}`,
		PlacedAt: now,
		FilledAt: now,
	}, nil
}

// Ensure PaperAdapter implements ExecutionAdapter
var _ interfaces.ExecutionAdapter = (*PaperAdapter)(nil)

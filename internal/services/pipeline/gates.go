package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/models"
)

// Gate names surfaced in GateRejectedError.
const (
	GateMinInterval = "min_interval"
	GateDailyCap    = "daily_cap"
	GateMaxNotional = "max_notional"
)

// Gates evaluates the risk policy predicates for an automated trade.
// Each gate is independently toggleable; a disabled gate always passes.
type Gates struct {
	cfg         common.RiskConfig
	accountSize float64
	orders      interfaces.OrderStore
	decisions   interfaces.DecisionStore
	positions   interfaces.PositionStore

	now func() time.Time
}

// NewGates creates the gate evaluator. accountSize is the configured
// reference account size for the max-notional gate.
func NewGates(cfg common.RiskConfig, accountSize float64, orders interfaces.OrderStore, decisions interfaces.DecisionStore, positions interfaces.PositionStore) *Gates {
	return &Gates{
		cfg:         cfg,
		accountSize: accountSize,
		orders:      orders,
		decisions:   decisions,
		positions:   positions,
		now:         time.Now,
	}
}

// Evaluate runs all enabled gates for a prospective trade. signedQty is
// positive for BUY, negative for SELL. Returns a GateRejectedError naming
// the failed gate, or nil when every enabled gate passes.
func (g *Gates) Evaluate(ctx context.Context, decisionID, symbol string, signedQty, price float64) error {
	if err := g.EvaluatePolicy(ctx, decisionID, symbol); err != nil {
		return err
	}
	return g.checkMaxNotional(ctx, decisionID, symbol, signedQty, price)
}

// EvaluatePolicy runs the sizing-independent gates: min interval and daily
// cap. These apply to every decision, HOLD included; only the max-notional
// gate needs a sized trade.
func (g *Gates) EvaluatePolicy(ctx context.Context, decisionID, symbol string) error {
	if err := g.checkMinInterval(ctx, decisionID, symbol); err != nil {
		return err
	}
	return g.checkDailyCap(ctx, decisionID)
}

// checkMinInterval rejects a trade when the symbol last traded more recently
// than the configured minimum interval.
func (g *Gates) checkMinInterval(ctx context.Context, decisionID, symbol string) error {
	if !g.cfg.MinIntervalEnabled {
		return nil
	}
	minInterval := g.cfg.GetMinInterval()
	if minInterval <= 0 {
		return nil
	}

	last, err := g.orders.LastOrderTime(ctx, symbol)
	if err != nil {
		return fmt.Errorf("min-interval gate lookup: %w", err)
	}
	if last.IsZero() {
		return nil
	}
	if elapsed := g.now().Sub(last); elapsed < minInterval {
		return &models.GateRejectedError{
			Gate:       GateMinInterval,
			Reason:     fmt.Sprintf("too soon to trade %s again: %s elapsed of %s minimum", symbol, elapsed.Round(time.Second), minInterval),
			DecisionID: decisionID,
		}
	}
	return nil
}

// checkDailyCap rejects once the day's decision count reaches the cap. The
// count includes the decision currently being gated.
func (g *Gates) checkDailyCap(ctx context.Context, decisionID string) error {
	if !g.cfg.DailyCapEnabled {
		return nil
	}

	now := g.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := g.decisions.CountDecisionsSince(ctx, midnight)
	if err != nil {
		return fmt.Errorf("daily-cap gate lookup: %w", err)
	}
	if count >= g.cfg.DailyCap {
		return &models.GateRejectedError{
			Gate:       GateDailyCap,
			Reason:     fmt.Sprintf("daily trade cap reached: %d decisions today, cap %d", count, g.cfg.DailyCap),
			DecisionID: decisionID,
		}
	}
	return nil
}

// checkMaxNotional rejects a trade whose resulting position notional would
// exceed the configured fraction of the reference account size.
func (g *Gates) checkMaxNotional(ctx context.Context, decisionID, symbol string, signedQty, price float64) error {
	if !g.cfg.MaxNotionalEnabled {
		return nil
	}

	currentQty := 0.0
	if pos, err := g.positions.GetPosition(ctx, symbol); err == nil {
		currentQty = pos.Qty
	} else if !models.IsNotFound(err) {
		return fmt.Errorf("max-notional gate lookup: %w", err)
	}

	newQty := currentQty + signedQty
	if newQty < 0 {
		newQty = -newQty
	}
	notional := newQty * price
	limit := g.cfg.MaxPositionPct * g.accountSize
	if notional > limit {
		return &models.GateRejectedError{
			Gate:       GateMaxNotional,
			Reason:     fmt.Sprintf("position notional %.2f in %s would exceed limit %.2f", notional, symbol, limit),
			DecisionID: decisionID,
		}
	}
	return nil
}

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/models"
	"github.com/bobmcallan/paperd/internal/storage/tradedb"
)

func newGateStore(t *testing.T) *tradedb.Store {
	t.Helper()
	store, err := tradedb.NewStore(common.NewSilentLogger(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func gateErr(t *testing.T, err error, gate string) *models.GateRejectedError {
	t.Helper()
	var ge *models.GateRejectedError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GateRejectedError, got %v", err)
	}
	if ge.Gate != gate {
		t.Fatalf("expected gate %s, got %s", gate, ge.Gate)
	}
	return ge
}

func TestDisabledGatesAlwaysPass(t *testing.T) {
	store := newGateStore(t)
	gates := NewGates(common.RiskConfig{}, 100000, store, store, store)

	if err := gates.Evaluate(context.Background(), "d1", "AAPL", 1e9, 1e9); err != nil {
		t.Fatalf("disabled gates must pass: %v", err)
	}
}

func TestMinIntervalGate(t *testing.T) {
	store := newGateStore(t)
	ctx := context.Background()
	cfg := common.RiskConfig{MinIntervalEnabled: true, MinInterval: "60s"}
	gates := NewGates(cfg, 100000, store, store, store)

	// No prior order for the symbol: passes.
	if err := gates.Evaluate(ctx, "d1", "AAPL", 10, 100); err != nil {
		t.Fatalf("first trade must pass: %v", err)
	}

	store.SaveOrder(ctx, &models.Order{
		OrderID: "ORD-1", Symbol: "AAPL", Side: models.SideBuy,
		Quantity: 10, Price: 100, Status: models.OrderStatusFilled,
		CreatedAt: time.Now().Add(-10 * time.Second),
	})

	ge := gateErr(t, gates.Evaluate(ctx, "d2", "AAPL", 10, 100), GateMinInterval)
	if ge.DecisionID != "d2" {
		t.Errorf("expected decision d2 in rejection, got %s", ge.DecisionID)
	}

	// A different symbol is unaffected.
	if err := gates.Evaluate(ctx, "d3", "TSLA", 10, 100); err != nil {
		t.Errorf("other symbol must pass: %v", err)
	}

	// Past the interval: passes again.
	gates.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if err := gates.Evaluate(ctx, "d4", "AAPL", 10, 100); err != nil {
		t.Errorf("elapsed interval must pass: %v", err)
	}
}

func TestMinIntervalZeroNeverRejects(t *testing.T) {
	store := newGateStore(t)
	ctx := context.Background()
	cfg := common.RiskConfig{MinIntervalEnabled: true, MinInterval: "0s"}
	gates := NewGates(cfg, 100000, store, store, store)

	store.SaveOrder(ctx, &models.Order{
		OrderID: "ORD-1", Symbol: "AAPL", Side: models.SideBuy,
		Quantity: 10, Price: 100, Status: models.OrderStatusFilled,
		CreatedAt: time.Now(),
	})

	if err := gates.Evaluate(ctx, "d1", "AAPL", 10, 100); err != nil {
		t.Fatalf("zero interval must pass: %v", err)
	}
}

func TestDailyCapGate(t *testing.T) {
	store := newGateStore(t)
	ctx := context.Background()
	cfg := common.RiskConfig{DailyCapEnabled: true, DailyCap: 2}
	gates := NewGates(cfg, 100000, store, store, store)

	if err := gates.Evaluate(ctx, "d1", "AAPL", 10, 100); err != nil {
		t.Fatalf("under cap must pass: %v", err)
	}

	for i, id := range []string{"da", "db"} {
		store.SaveDecision(ctx, &models.Decision{
			ID: id, Symbol: "AAPL", Action: models.ActionBuy,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
	}

	gateErr(t, gates.Evaluate(ctx, "d2", "AAPL", 10, 100), GateDailyCap)

	// Yesterday's decisions do not count.
	gates.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	if err := gates.Evaluate(ctx, "d3", "AAPL", 10, 100); err != nil {
		t.Errorf("new day must pass: %v", err)
	}
}

func TestMaxNotionalGate(t *testing.T) {
	store := newGateStore(t)
	ctx := context.Background()
	// Limit: 25% of 100000 = 25000 notional.
	cfg := common.RiskConfig{MaxNotionalEnabled: true, MaxPositionPct: 0.25}
	gates := NewGates(cfg, 100000, store, store, store)

	// 200 * 100 = 20000: within the limit.
	if err := gates.Evaluate(ctx, "d1", "AAPL", 200, 100); err != nil {
		t.Fatalf("within limit must pass: %v", err)
	}

	// 300 * 100 = 30000: over.
	gateErr(t, gates.Evaluate(ctx, "d2", "AAPL", 300, 100), GateMaxNotional)

	// Existing position counts toward the total.
	store.SavePosition(ctx, &models.Position{Symbol: "AAPL", Qty: 200, AvgPrice: 100})
	gateErr(t, gates.Evaluate(ctx, "d3", "AAPL", 100, 100), GateMaxNotional)

	// A SELL that reduces exposure passes.
	if err := gates.Evaluate(ctx, "d4", "AAPL", -100, 100); err != nil {
		t.Errorf("reducing trade must pass: %v", err)
	}
}

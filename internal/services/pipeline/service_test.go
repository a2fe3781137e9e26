package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bobmcallan/paperd/internal/clients/execution"
	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/models"
	"github.com/bobmcallan/paperd/internal/services/positions"
	"github.com/bobmcallan/paperd/internal/storage/tradedb"
)

// fakeModel returns a fixed action, recording which call path was taken.
type fakeModel struct {
	action     int
	err        error
	lastMethod string
	lastFlag   int
}

func (f *fakeModel) Predict(_ context.Context, obs []float64) (*interfaces.Prediction, error) {
	f.lastMethod = "predict"
	if f.err != nil {
		return nil, f.err
	}
	return &interfaces.Prediction{Action: f.action, LatencyMs: 1.5}, nil
}

func (f *fakeModel) PredictFromCloses(_ context.Context, closes []float64, positionFlag int) (*interfaces.Prediction, error) {
	f.lastMethod = "predict_from_closes"
	f.lastFlag = positionFlag
	if f.err != nil {
		return nil, f.err
	}
	return &interfaces.Prediction{Action: f.action, LatencyMs: 1.5}, nil
}

// recordingBroadcaster captures emitted events in order.
type recordingBroadcaster struct {
	decisions []*models.Decision
	orders    []*models.Order
}

func (b *recordingBroadcaster) BroadcastDecision(d *models.Decision) { b.decisions = append(b.decisions, d) }
func (b *recordingBroadcaster) BroadcastOrder(o *models.Order)      { b.orders = append(b.orders, o) }

type harness struct {
	pipeline    *Service
	model       *fakeModel
	store       *tradedb.Store
	positions   *positions.Service
	broadcaster *recordingBroadcaster
}

func newHarness(t *testing.T, risk common.RiskConfig) *harness {
	t.Helper()
	logger := common.NewSilentLogger()

	store, err := tradedb.NewStore(logger, t.TempDir())
	if err != nil {
		t.Fatalf("tradedb.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	positionSvc := positions.NewService(store, logger)
	model := &fakeModel{action: models.ActionHold}
	broadcaster := &recordingBroadcaster{}
	gates := NewGates(risk, 100000, store, store, store)

	svc := NewService(
		model,
		execution.NewPaperAdapter(logger),
		positionSvc,
		store,
		store,
		broadcaster,
		gates,
		Options{OrderValue: 1000, ObsLength: 30},
		logger,
	)

	return &harness{
		pipeline:    svc,
		model:       model,
		store:       store,
		positions:   positionSvc,
		broadcaster: broadcaster,
	}
}

func openRisk() common.RiskConfig {
	return common.RiskConfig{MinIntervalEnabled: true, MinInterval: "0s"}
}

func closes(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestProcessBuyPlacesOrder(t *testing.T) {
	h := newHarness(t, openRisk())
	h.model.action = models.ActionBuy
	ctx := context.Background()

	result, err := h.pipeline.Process(ctx, &interfaces.SignalRequest{
		Symbol: "AAPL",
		Closes: closes(10),
		Price:  50,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Result != interfaces.SignalResultOrderPlaced {
		t.Fatalf("expected ORDER_PLACED, got %s", result.Result)
	}
	if result.Order == nil {
		t.Fatal("order missing from result")
	}
	// floor(1000 / 50) = 20
	if result.Order.Quantity != 20 {
		t.Errorf("expected quantity 20, got %g", result.Order.Quantity)
	}
	if result.Order.Side != models.SideBuy {
		t.Errorf("expected BUY, got %s", result.Order.Side)
	}
	if result.Order.DecisionRef != result.DecisionID {
		t.Errorf("order not linked to decision: %s != %s", result.Order.DecisionRef, result.DecisionID)
	}
	if result.Position == nil || result.Position.Qty != 20 {
		t.Errorf("unexpected position: %+v", result.Position)
	}

	// Decision and order persisted.
	decision, err := h.store.GetDecision(ctx, result.DecisionID)
	if err != nil {
		t.Fatalf("GetDecision: %v", err)
	}
	if decision.Action != models.ActionBuy || decision.InputType != models.InputTypeCloses {
		t.Errorf("unexpected decision: %+v", decision)
	}
	if _, err := h.store.GetOrder(ctx, result.Order.OrderID); err != nil {
		t.Errorf("GetOrder: %v", err)
	}

	// Decision event precedes the order event.
	if len(h.broadcaster.decisions) != 1 || len(h.broadcaster.orders) != 1 {
		t.Fatalf("expected 1 decision + 1 order event, got %d + %d",
			len(h.broadcaster.decisions), len(h.broadcaster.orders))
	}
}

func TestProcessHold(t *testing.T) {
	h := newHarness(t, openRisk())
	h.model.action = models.ActionHold
	ctx := context.Background()

	result, err := h.pipeline.Process(ctx, &interfaces.SignalRequest{
		Symbol: "AAPL",
		Closes: closes(10),
		Price:  50,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Result != interfaces.SignalResultHold {
		t.Fatalf("expected HOLD, got %s", result.Result)
	}
	if result.Order != nil {
		t.Errorf("HOLD must not place an order: %+v", result.Order)
	}

	// The decision is still recorded and broadcast.
	if _, err := h.store.GetDecision(ctx, result.DecisionID); err != nil {
		t.Errorf("GetDecision: %v", err)
	}
	if len(h.broadcaster.decisions) != 1 || len(h.broadcaster.orders) != 0 {
		t.Errorf("expected decision event only, got %d + %d",
			len(h.broadcaster.decisions), len(h.broadcaster.orders))
	}
}

func TestProcessInputValidation(t *testing.T) {
	h := newHarness(t, openRisk())
	ctx := context.Background()

	cases := []*interfaces.SignalRequest{
		{Symbol: "AAPL"},                                  // no input at all
		{Symbol: "AAPL", Closes: []float64{100}},          // one close is not a series
		{Symbol: "AAPL", Obs: closes(29)},                 // wrong obs length
	}
	for i, req := range cases {
		_, err := h.pipeline.Process(ctx, req)
		var ve *models.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("case %d: expected ValidationError, got %v", i, err)
		}
	}

	// Nothing was persisted or broadcast for rejected input.
	count, _ := h.store.CountDecisionsSince(ctx, time.Time{})
	if count != 0 {
		t.Errorf("rejected input persisted %d decisions", count)
	}
	if len(h.broadcaster.decisions) != 0 {
		t.Errorf("rejected input broadcast %d decisions", len(h.broadcaster.decisions))
	}
}

func TestProcessObsInput(t *testing.T) {
	h := newHarness(t, openRisk())
	h.model.action = models.ActionHold
	ctx := context.Background()

	result, err := h.pipeline.Process(ctx, &interfaces.SignalRequest{
		Symbol: "AAPL",
		Obs:    closes(30),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if h.model.lastMethod != "predict" {
		t.Errorf("expected raw observation path, got %s", h.model.lastMethod)
	}

	decision, _ := h.store.GetDecision(ctx, result.DecisionID)
	if decision.InputType != models.InputTypeObs {
		t.Errorf("expected obs input type, got %s", decision.InputType)
	}
}

// A close series wins over an observation vector when both are present.
func TestProcessClosesTakePrecedence(t *testing.T) {
	h := newHarness(t, openRisk())
	ctx := context.Background()

	if _, err := h.pipeline.Process(ctx, &interfaces.SignalRequest{
		Symbol: "AAPL",
		Closes: closes(5),
		Obs:    closes(30),
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if h.model.lastMethod != "predict_from_closes" {
		t.Errorf("expected closes path, got %s", h.model.lastMethod)
	}
}

func TestProcessModelFailureLeavesNoDecision(t *testing.T) {
	h := newHarness(t, openRisk())
	h.model.err = errors.New("connection refused")
	ctx := context.Background()

	_, err := h.pipeline.Process(ctx, &interfaces.SignalRequest{
		Symbol: "AAPL",
		Closes: closes(10),
		Price:  50,
	})
	var ue *models.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.Service != "model" || ue.Indeterminate {
		t.Errorf("unexpected error detail: %+v", ue)
	}

	count, _ := h.store.CountDecisionsSince(ctx, time.Time{})
	if count != 0 {
		t.Errorf("failed prediction persisted %d decisions", count)
	}
}

// A gate rejection happens after the decision is persisted and broadcast,
// and before any order exists.
func TestProcessGateRejection(t *testing.T) {
	risk := common.RiskConfig{MinIntervalEnabled: true, MinInterval: "1h"}
	h := newHarness(t, risk)
	h.model.action = models.ActionBuy
	ctx := context.Background()

	// Seed a recent order for the symbol.
	if err := h.store.SaveOrder(ctx, &models.Order{
		OrderID:   "ORD-prior",
		Symbol:    "AAPL",
		Side:      models.SideBuy,
		Quantity:  1,
		Price:     50,
		Status:    models.OrderStatusFilled,
		CreatedAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	_, err := h.pipeline.Process(ctx, &interfaces.SignalRequest{
		Symbol: "AAPL",
		Closes: closes(10),
		Price:  50,
	})
	var ge *models.GateRejectedError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GateRejectedError, got %v", err)
	}
	if ge.Gate != GateMinInterval {
		t.Errorf("expected min_interval gate, got %s", ge.Gate)
	}

	// The decision survives the rejection and was broadcast.
	if ge.DecisionID == "" {
		t.Fatal("gate rejection lost the decision ID")
	}
	if _, err := h.store.GetDecision(ctx, ge.DecisionID); err != nil {
		t.Errorf("GetDecision: %v", err)
	}
	if len(h.broadcaster.decisions) != 1 {
		t.Errorf("expected decision broadcast before gating, got %d", len(h.broadcaster.decisions))
	}

	// No new order was created.
	orders, _ := h.store.ListOrders(ctx, "", interfaces.OrderQuery{})
	if len(orders) != 1 {
		t.Errorf("expected only the seeded order, got %d", len(orders))
	}
}

// The policy gates run before the HOLD short-circuit: a HOLD decision over
// the daily cap is rejected, with the decision persisted and broadcast.
func TestProcessHoldGatedByDailyCap(t *testing.T) {
	risk := common.RiskConfig{DailyCapEnabled: true, DailyCap: 0}
	h := newHarness(t, risk)
	h.model.action = models.ActionHold
	ctx := context.Background()

	_, err := h.pipeline.Process(ctx, &interfaces.SignalRequest{
		Symbol: "AAPL",
		Closes: closes(10),
	})
	var ge *models.GateRejectedError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GateRejectedError, got %v", err)
	}
	if ge.Gate != GateDailyCap {
		t.Errorf("expected daily_cap gate, got %s", ge.Gate)
	}
	if ge.DecisionID == "" {
		t.Fatal("gate rejection lost the decision ID")
	}
	if _, err := h.store.GetDecision(ctx, ge.DecisionID); err != nil {
		t.Errorf("GetDecision: %v", err)
	}
	if len(h.broadcaster.decisions) != 1 {
		t.Errorf("expected decision broadcast before gating, got %d", len(h.broadcaster.decisions))
	}
}

// The max-notional gate only applies to sized trades; HOLD passes it.
func TestProcessHoldSkipsNotionalGate(t *testing.T) {
	risk := common.RiskConfig{MaxNotionalEnabled: true, MaxPositionPct: 0}
	h := newHarness(t, risk)
	h.model.action = models.ActionHold
	ctx := context.Background()

	result, err := h.pipeline.Process(ctx, &interfaces.SignalRequest{
		Symbol: "AAPL",
		Closes: closes(10),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Result != interfaces.SignalResultHold {
		t.Errorf("expected HOLD, got %s", result.Result)
	}
}

func TestProcessSellClosesPosition(t *testing.T) {
	h := newHarness(t, openRisk())
	ctx := context.Background()

	// Open a long first.
	h.model.action = models.ActionBuy
	if _, err := h.pipeline.Process(ctx, &interfaces.SignalRequest{
		Symbol: "AAPL", Closes: closes(10), Price: 50,
	}); err != nil {
		t.Fatalf("BUY: %v", err)
	}

	// The next invocation sees the long position flag.
	h.model.action = models.ActionSell
	result, err := h.pipeline.Process(ctx, &interfaces.SignalRequest{
		Symbol: "AAPL", Closes: closes(10), Price: 50,
	})
	if err != nil {
		t.Fatalf("SELL: %v", err)
	}
	if h.model.lastFlag != 1 {
		t.Errorf("expected position flag 1 on second call, got %d", h.model.lastFlag)
	}
	if result.Position == nil || result.Position.Qty != 0 {
		t.Errorf("expected flat position, got %+v", result.Position)
	}

	flag, _ := h.positions.CurrentFlag(ctx, "AAPL")
	if flag {
		t.Error("position should be closed after matching SELL")
	}
}

// A missing or non-positive price defaults to 1.0, sizing the order at the
// full configured notional.
func TestProcessDefaultPrice(t *testing.T) {
	h := newHarness(t, openRisk())
	h.model.action = models.ActionBuy
	ctx := context.Background()

	result, err := h.pipeline.Process(ctx, &interfaces.SignalRequest{
		Symbol: "AAPL",
		Closes: closes(10),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Order.Price != 1.0 {
		t.Errorf("expected default price 1.0, got %g", result.Order.Price)
	}
	if result.Order.Quantity != 1000 {
		t.Errorf("expected quantity 1000 at unit price, got %g", result.Order.Quantity)
	}
}

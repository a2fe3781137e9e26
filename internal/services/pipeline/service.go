// Package pipeline runs the automated decision pipeline: one external signal
// in, at most one order out.
package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/models"
)

// state tracks a pipeline invocation through its stages. Terminal states are
// stateHoldTerminal, stateExecuted, and stateRejected.
type state string

const (
	stateReceived     state = "RECEIVED"
	stateValidated    state = "VALIDATED"
	stateScored       state = "SCORED"
	stateGated        state = "GATED"
	stateHoldTerminal state = "HOLD_TERMINAL"
	stateExecuted     state = "EXECUTED"
	stateRejected     state = "REJECTED"
)

// Options configures pipeline behavior.
type Options struct {
	OrderValue   float64       // fixed notional per automated order
	ObsLength    int           // expected observation vector length
	ModelTimeout time.Duration // per-call deadline for the prediction service
	ExecTimeout  time.Duration // per-call deadline for the execution adapter
}

// Service implements PipelineService. All collaborators are injected at
// construction; nothing is reached through ambient globals.
type Service struct {
	model       interfaces.ModelClient
	execution   interfaces.ExecutionAdapter
	positions   interfaces.PositionService
	decisions   interfaces.DecisionStore
	orders      interfaces.OrderStore
	broadcaster interfaces.Broadcaster
	gates       *Gates
	opts        Options
	logger      *common.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new signal pipeline.
func NewService(
	model interfaces.ModelClient,
	execution interfaces.ExecutionAdapter,
	positions interfaces.PositionService,
	decisions interfaces.DecisionStore,
	orders interfaces.OrderStore,
	broadcaster interfaces.Broadcaster,
	gates *Gates,
	opts Options,
	logger *common.Logger,
) *Service {
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = 10 * time.Second
	}
	if opts.ExecTimeout <= 0 {
		opts.ExecTimeout = 10 * time.Second
	}
	return &Service{
		model:       model,
		execution:   execution,
		positions:   positions,
		decisions:   decisions,
		orders:      orders,
		broadcaster: broadcaster,
		gates:       gates,
		opts:        opts,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// symbolLock serializes pipeline invocations per symbol so decisions and
// their orders stay totally ordered by arrival within one symbol. Different
// symbols run concurrently.
func (s *Service) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	return l
}

// normalizeInput picks the input mode for a request. A closing-price series
// of at least 2 points takes precedence over an observation vector, which
// must match the configured length exactly.
func (s *Service) normalizeInput(req *interfaces.SignalRequest) ([]float64, string, error) {
	if len(req.Closes) >= 2 {
		return req.Closes, models.InputTypeCloses, nil
	}
	if s.opts.ObsLength > 0 && len(req.Obs) == s.opts.ObsLength {
		return req.Obs, models.InputTypeObs, nil
	}
	return nil, "", &models.ValidationError{
		Field:  "input",
		Reason: "provide either 'closes' (>= 2 prices) or 'obs' with the expected length",
	}
}

// computeQuantity sizes an order: the fixed notional divided by price,
// floored, never below 1. A missing or non-positive price defaults to 1.
func (s *Service) computeQuantity(price float64) float64 {
	if price <= 0 {
		return 1
	}
	qty := math.Floor(s.opts.OrderValue / price)
	if qty < 1 {
		return 1
	}
	return qty
}

// Process runs one pipeline invocation. A transport failure during
// prediction aborts before any Decision is written; once a Decision exists
// it is never rolled back, and an execution failure after that point
// surfaces as an indeterminate upstream error, never an implicit retry.
func (s *Service) Process(ctx context.Context, req *interfaces.SignalRequest) (*interfaces.SignalResult, error) {
	symbol := req.Symbol
	if symbol == "" {
		symbol = "UNKNOWN"
	}

	st := stateReceived

	input, inputType, err := s.normalizeInput(req)
	if err != nil {
		s.logTerminal(symbol, st, stateRejected, err)
		return nil, err
	}
	st = stateValidated

	l := s.symbolLock(symbol)
	l.Lock()
	defer l.Unlock()

	positionFlag := 0
	if long, err := s.positions.CurrentFlag(ctx, symbol); err != nil {
		s.logTerminal(symbol, st, stateRejected, err)
		return nil, err
	} else if long {
		positionFlag = 1
	}

	prediction, err := s.predict(ctx, input, inputType, positionFlag)
	if err != nil {
		s.logTerminal(symbol, st, stateRejected, err)
		return nil, err
	}
	st = stateScored

	s.logger.Info().
		Str("symbol", symbol).
		Int("action", prediction.Action).
		Int("position_flag", positionFlag).
		Float64("latency_ms", prediction.LatencyMs).
		Msg("Model decision")

	decision := &models.Decision{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Input:     input,
		InputType: inputType,
		Action:    prediction.Action,
		Meta: models.DecisionMeta{
			ModelLatencyMs: prediction.LatencyMs,
			InputType:      inputType,
			PositionFlag:   positionFlag,
		},
		CreatedAt: time.Now(),
	}
	if err := s.decisions.SaveDecision(ctx, decision); err != nil {
		s.logTerminal(symbol, st, stateRejected, err)
		return nil, err
	}

	// Subscribers see every model call outcome, acted upon or not: the
	// decision event goes out before gating and before any order exists.
	s.broadcaster.BroadcastDecision(decision)

	// The policy gates apply to every decision, HOLD included; the
	// max-notional gate needs a sized trade and runs after sizing.
	if err := s.gates.EvaluatePolicy(ctx, decision.ID, symbol); err != nil {
		s.logTerminal(symbol, st, stateRejected, err)
		return nil, err
	}

	if prediction.Action == models.ActionHold {
		s.logger.Debug().Str("symbol", symbol).Str("state", string(stateHoldTerminal)).Msg("Pipeline complete")
		return &interfaces.SignalResult{
			Result:     interfaces.SignalResultHold,
			DecisionID: decision.ID,
		}, nil
	}

	price := req.Price
	if price <= 0 {
		price = 1.0
	}
	qty := s.computeQuantity(price)
	signedQty := qty
	if prediction.Action == models.ActionSell {
		signedQty = -qty
	}

	if err := s.gates.checkMaxNotional(ctx, decision.ID, symbol, signedQty, price); err != nil {
		s.logTerminal(symbol, st, stateRejected, err)
		return nil, err
	}
	st = stateGated

	side := models.ActionSide(prediction.Action)

	order, err := s.executeOrder(ctx, decision, symbol, side, qty, price, req.DryRun)
	if err != nil {
		s.logTerminal(symbol, st, stateRejected, err)
		return nil, err
	}

	position, err := s.positions.ApplyFill(ctx, symbol, side, qty, price)
	if err != nil {
		// The order is already persisted; surface the accounting failure
		// rather than pretending the pipeline succeeded.
		s.logTerminal(symbol, st, stateRejected, err)
		return nil, err
	}

	s.broadcaster.BroadcastOrder(order)

	s.logger.Info().
		Str("symbol", symbol).
		Str("order_id", order.OrderID).
		Str("side", side).
		Float64("quantity", qty).
		Float64("price", price).
		Str("state", string(stateExecuted)).
		Msg("Pipeline complete")

	return &interfaces.SignalResult{
		Result:     interfaces.SignalResultOrderPlaced,
		DecisionID: decision.ID,
		Order:      order,
		Position:   position,
	}, nil
}

// predict calls the prediction service with a bounded deadline and wraps
// failures as model upstream errors.
func (s *Service) predict(ctx context.Context, input []float64, inputType string, positionFlag int) (*interfaces.Prediction, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.ModelTimeout)
	defer cancel()

	var prediction *interfaces.Prediction
	var err error
	if inputType == models.InputTypeCloses {
		prediction, err = s.model.PredictFromCloses(callCtx, input, positionFlag)
	} else {
		prediction, err = s.model.Predict(callCtx, input)
	}
	if err != nil {
		return nil, &models.UpstreamError{
			Service: "model",
			Timeout: errors.Is(err, context.DeadlineExceeded),
			Err:     err,
		}
	}
	return prediction, nil
}

// executeOrder places the order through the execution adapter and persists
// the resulting record referencing the decision. An adapter failure here is
// indeterminate: the decision stands, and no retry is attempted.
func (s *Service) executeOrder(ctx context.Context, decision *models.Decision, symbol, side string, qty, price float64, dryRun bool) (*models.Order, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.ExecTimeout)
	defer cancel()

	meta := map[string]string{"dry_run": "false"}
	if dryRun {
		meta["dry_run"] = "true"
	}

	result, err := s.execution.PlaceOrder(callCtx, &interfaces.PlaceOrderRequest{
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Price:    price,
		Meta:     meta,
	})
	if err != nil {
		return nil, &models.UpstreamError{
			Service:       "execution",
			Timeout:       errors.Is(err, context.DeadlineExceeded),
			Indeterminate: true,
			Err:           err,
		}
	}

	order := &models.Order{
		OrderID:     result.OrderID,
		Symbol:      symbol,
		Side:        side,
		Quantity:    qty,
		Price:       price,
		OrderType:   "MARKET",
		Status:      result.Status,
		DecisionRef: decision.ID,
		Raw:         result.Raw,
		CreatedAt:   result.PlacedAt,
		FilledAt:    result.FilledAt,
	}
	if err := s.orders.SaveOrder(ctx, order); err != nil {
		return nil, &models.UpstreamError{
			Service:       "execution",
			Indeterminate: true,
			Err:           err,
		}
	}
	return order, nil
}

func (s *Service) logTerminal(symbol string, from, to state, err error) {
	s.logger.Debug().
		Str("symbol", symbol).
		Str("from", string(from)).
		Str("state", string(to)).
		Err(err).
		Msg("Pipeline terminated")
}

// Ensure Service implements PipelineService
var _ interfaces.PipelineService = (*Service)(nil)

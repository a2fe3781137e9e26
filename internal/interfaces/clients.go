package interfaces

import (
	"context"
	"time"
)

// Prediction is the result of one model call.
type Prediction struct {
	Action    int     `json:"action"` // 0 = HOLD, 1 = BUY, 2 = SELL
	LatencyMs float64 `json:"latency_ms"`
}

// ModelClient is the external prediction service. Both calls must honor the
// context deadline; unavailability is a recoverable pipeline-abort condition.
type ModelClient interface {
	Predict(ctx context.Context, obs []float64) (*Prediction, error)
	PredictFromCloses(ctx context.Context, closes []float64, positionFlag int) (*Prediction, error)
}

// PlaceOrderRequest is the execution-adapter order contract.
type PlaceOrderRequest struct {
	Symbol   string            `json:"symbol"`
	Side     string            `json:"side"`
	Quantity float64           `json:"quantity"`
	Price    float64           `json:"price"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// PlaceOrderResult is the execution-adapter response.
type PlaceOrderResult struct {
	OrderID  string    `json:"order_id"`
	Status   string    `json:"status"`
	Raw      string    `json:"raw,omitempty"`
	PlacedAt time.Time `json:"placed_at"`
	FilledAt time.Time `json:"filled_at"`
}

// ExecutionAdapter abstracts paper vs real execution venues behind one contract.
type ExecutionAdapter interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error)
}

package models

import "time"

// Model actions as returned by the prediction service.
const (
	ActionHold = 0
	ActionBuy  = 1
	ActionSell = 2
)

// Decision input types
const (
	InputTypeCloses = "closes"
	InputTypeObs    = "obs"
)

// Decision is an append-only record of one prediction-service call: the exact
// input presented to the model, the action it returned, and call metadata.
// Every model call that completes produces a Decision, acted upon or not.
type Decision struct {
	ID        string       `json:"id"`
	Symbol    string       `json:"symbol"`
	Input     []float64    `json:"input"`
	InputType string       `json:"input_type"`
	Action    int          `json:"action"`
	Meta      DecisionMeta `json:"meta"`
	CreatedAt time.Time    `json:"created_at"`
}

// DecisionMeta holds call metadata captured at decision time.
type DecisionMeta struct {
	ModelLatencyMs float64 `json:"model_latency_ms"`
	InputType      string  `json:"input_type"`
	PositionFlag   int     `json:"position_flag"` // 0 = flat, 1 = long at decision time
}

// ActionSide maps a model action to an order side, or "" for HOLD.
func ActionSide(action int) string {
	switch action {
	case ActionBuy:
		return SideBuy
	case ActionSell:
		return SideSell
	default:
		return ""
	}
}

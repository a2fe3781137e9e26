package models

import "time"

// Order sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order statuses
const (
	OrderStatusFilled   = "FILLED"
	OrderStatusRejected = "REJECTED"
)

// Order is an immutable record of a fill. Orders are append-only: once
// created they are never mutated, only referenced.
type Order struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id" badgerhold:"index"`
	Symbol      string    `json:"symbol" badgerhold:"index"`
	Side        string    `json:"side"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	OrderType   string    `json:"order_type"`
	Status      string    `json:"status"`
	DecisionRef string    `json:"decision_ref,omitempty"`
	Raw         string    `json:"raw,omitempty"` // venue response payload, verbatim
	CreatedAt   time.Time `json:"created_at"`
	FilledAt    time.Time `json:"filled_at"`
}

// OrderIntent is a validated request to execute a trade.
type OrderIntent struct {
	UserID      string  `json:"user_id"`
	Symbol      string  `json:"symbol"`
	Side        string  `json:"side"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	OrderType   string  `json:"order_type"`
	DecisionRef string  `json:"decision_ref,omitempty"`
}

// Validate checks intent field presence and positivity.
func (i *OrderIntent) Validate() error {
	if i.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "symbol is required"}
	}
	if i.Side != SideBuy && i.Side != SideSell {
		return &ValidationError{Field: "side", Reason: "side must be BUY or SELL"}
	}
	if i.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "quantity must be greater than zero"}
	}
	if i.Price <= 0 {
		return &ValidationError{Field: "price", Reason: "price must be greater than zero"}
	}
	return nil
}

// Notional returns the monetary value of the intent.
func (i *OrderIntent) Notional() float64 {
	return i.Quantity * i.Price
}

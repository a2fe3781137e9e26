package models

import "time"

// Position is the automated pipeline's aggregate exposure in a symbol,
// tracked independently of per-user holdings. Qty is signed: positive means
// long exposure. A position whose qty returns to exactly zero is deleted.
//
// Position and Holding accounting can diverge: automated fills touch
// positions only, manual orders touch both.
type Position struct {
	Symbol       string    `json:"symbol"`
	Qty          float64   `json:"qty"`
	AvgPrice     float64   `json:"avg_price"`
	CurrentPrice float64   `json:"current_price"`
	UpdatedAt    time.Time `json:"updated_at"`
}

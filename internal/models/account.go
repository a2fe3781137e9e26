// Package models defines the domain types for paperd
package models

import "time"

// Account is a user's paper-trading account: cash balance plus manual holdings.
// One per user, keyed by UserID. All mutation goes through the ledger service.
type Account struct {
	UserID         string    `json:"user_id"`
	Balance        float64   `json:"balance"`
	InitialBalance float64   `json:"initial_balance"`
	TotalInvested  float64   `json:"total_invested"`
	TotalPnL       float64   `json:"total_pnl"`
	Holdings       []Holding `json:"holdings"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Holding is a user's manual-trading position in a symbol.
// Quantity is always > 0 while the holding exists; a holding that reaches
// zero quantity is removed from the account, not zeroed.
type Holding struct {
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"`
	AvgPrice     float64   `json:"avg_price"`
	CurrentPrice float64   `json:"current_price"`
	PnL          float64   `json:"pnl"`
	PnLPercent   float64   `json:"pnl_percent"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PortfolioStats is the derived valuation view of an account.
type PortfolioStats struct {
	TotalValue      float64 `json:"total_value"`    // holdings + cash
	HoldingsValue   float64 `json:"holdings_value"` // sum of qty * current price
	CashBalance     float64 `json:"cash_balance"`
	InvestedValue   float64 `json:"invested_value"` // sum of qty * avg price (cost basis)
	TotalPnL        float64 `json:"total_pnl"`      // total value - initial balance
	TotalPnLPercent float64 `json:"total_pnl_percent"`
}

// Holding returns the holding for symbol and its index, or (nil, -1).
func (a *Account) Holding(symbol string) (*Holding, int) {
	for i := range a.Holdings {
		if a.Holdings[i].Symbol == symbol {
			return &a.Holdings[i], i
		}
	}
	return nil, -1
}

// CalculatePortfolioValue derives the current portfolio stats from holdings
// at their last-touched prices plus available cash. PnL percent guards the
// zero-initial-balance case to 0.
func (a *Account) CalculatePortfolioValue() PortfolioStats {
	var holdingsValue, investedValue float64
	for i := range a.Holdings {
		h := &a.Holdings[i]
		holdingsValue += h.Quantity * h.CurrentPrice
		investedValue += h.Quantity * h.AvgPrice
	}

	totalValue := holdingsValue + a.Balance
	pnl := totalValue - a.InitialBalance
	pnlPct := 0.0
	if a.InitialBalance > 0 {
		pnlPct = pnl / a.InitialBalance * 100
	}

	return PortfolioStats{
		TotalValue:      totalValue,
		HoldingsValue:   holdingsValue,
		CashBalance:     a.Balance,
		InvestedValue:   investedValue,
		TotalPnL:        pnl,
		TotalPnLPercent: pnlPct,
	}
}

// Reset restores the account to its initial state: full starting cash,
// no holdings, cleared counters.
func (a *Account) Reset() {
	a.Balance = a.InitialBalance
	a.TotalInvested = 0
	a.TotalPnL = 0
	a.Holdings = nil
	a.UpdatedAt = time.Now()
}

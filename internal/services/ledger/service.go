// Package ledger owns all mutation of account cash and holdings.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/models"
)

// Service implements LedgerService. Every mutation of one account happens
// inside a single per-user critical section, so a balance or holdings check
// can never be interleaved with another writer's commit. Different users
// proceed fully in parallel.
type Service struct {
	accounts interfaces.AccountStore
	logger   *common.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new ledger service.
func NewService(accounts interfaces.AccountStore, logger *common.Logger) *Service {
	return &Service{
		accounts: accounts,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing mutations for one user.
func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// CreateAccount creates a fresh account with the given starting balance.
// Called from the signup boundary; idempotent on an existing account.
func (s *Service) CreateAccount(ctx context.Context, userID string, initialBalance float64) (*models.Account, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	if existing, err := s.accounts.GetAccount(ctx, userID); err == nil {
		return existing, nil
	}

	account := &models.Account{
		UserID:         userID,
		Balance:        initialBalance,
		InitialBalance: initialBalance,
		CreatedAt:      time.Now(),
	}
	if err := s.accounts.SaveAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Float64("initial_balance", initialBalance).
		Msg("Account created")
	return account, nil
}

// GetAccount returns the user's account.
func (s *Service) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	return s.accounts.GetAccount(ctx, userID)
}

// ApplyFill applies one instantaneous full fill to the user's account.
// Validation happens before any mutation: a rejected fill leaves the account
// exactly as it was. On success the persisted, updated account is returned.
func (s *Service) ApplyFill(ctx context.Context, userID, side, symbol string, quantity, price float64) (*models.Account, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	account, err := s.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	totalCost := quantity * price
	now := time.Now()

	switch side {
	case models.SideBuy:
		if account.Balance < totalCost {
			return nil, &models.InsufficientFundsError{
				Required:  totalCost,
				Available: account.Balance,
			}
		}

		account.Balance -= totalCost
		account.TotalInvested += totalCost

		if h, _ := account.Holding(symbol); h != nil {
			newQty := h.Quantity + quantity
			h.AvgPrice = (h.Quantity*h.AvgPrice + totalCost) / newQty
			h.Quantity = newQty
			h.CurrentPrice = price
			h.UpdatedAt = now
		} else {
			account.Holdings = append(account.Holdings, models.Holding{
				Symbol:       symbol,
				Quantity:     quantity,
				AvgPrice:     price,
				CurrentPrice: price,
				UpdatedAt:    now,
			})
		}

	case models.SideSell:
		h, idx := account.Holding(symbol)
		if h == nil || h.Quantity < quantity {
			available := 0.0
			if h != nil {
				available = h.Quantity
			}
			return nil, &models.InsufficientHoldingsError{
				Symbol:    symbol,
				Required:  quantity,
				Available: available,
			}
		}

		account.Balance += totalCost
		h.Quantity -= quantity
		h.CurrentPrice = price
		h.UpdatedAt = now

		// A SELL never changes AvgPrice; a fully closed holding is removed.
		if h.Quantity == 0 {
			account.Holdings = append(account.Holdings[:idx], account.Holdings[idx+1:]...)
		}

	default:
		return nil, &models.ValidationError{Field: "side", Reason: "side must be BUY or SELL"}
	}

	if err := s.accounts.SaveAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("side", side).
		Str("symbol", symbol).
		Float64("quantity", quantity).
		Float64("price", price).
		Float64("balance", account.Balance).
		Msg("Fill applied")

	return account, nil
}

// Reset restores the account to its initial balance with no holdings.
func (s *Service) Reset(ctx context.Context, userID string) (*models.Account, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	account, err := s.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	account.Reset()
	if err := s.accounts.SaveAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Msg("Account reset")
	return account, nil
}

// Ensure Service implements LedgerService
var _ interfaces.LedgerService = (*Service)(nil)

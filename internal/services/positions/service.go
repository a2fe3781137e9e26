// Package positions tracks the automated pipeline's per-symbol exposure,
// independent of per-user account holdings.
package positions

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/models"
)

// Service implements PositionService. Mutations for one symbol are serialized
// through a per-symbol mutex; different symbols proceed in parallel.
type Service struct {
	store  interfaces.PositionStore
	logger *common.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new position tracker.
func NewService(store interfaces.PositionStore, logger *common.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

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

// ApplyFill mutates or creates the symbol's position.
//
// BUY updates AvgPrice with the incremental weighted formula
// (oldQty*oldAvg + qty*price) / (oldQty+qty), which is algebraically equal to
// recomputing the weighted average over the full BUY history. SELL reduces
// qty without touching AvgPrice. A position whose qty reaches exactly zero is
// deleted, not zeroed.
func (s *Service) ApplyFill(ctx context.Context, symbol, side string, quantity, price float64) (*models.Position, error) {
	l := s.symbolLock(symbol)
	l.Lock()
	defer l.Unlock()

	signed := quantity
	if side == models.SideSell {
		signed = -quantity
	}

	position, err := s.store.GetPosition(ctx, symbol)
	if err != nil {
		if !models.IsNotFound(err) {
			return nil, err
		}
		position = &models.Position{
			Symbol:       symbol,
			Qty:          signed,
			AvgPrice:     price,
			CurrentPrice: price,
			UpdatedAt:    time.Now(),
		}
		if err := s.store.SavePosition(ctx, position); err != nil {
			return nil, err
		}
		s.logger.Debug().
			Str("symbol", symbol).
			Float64("qty", position.Qty).
			Msg("Position opened")
		return position, nil
	}

	newQty := position.Qty + signed
	if side == models.SideBuy && newQty != 0 {
		position.AvgPrice = (position.Qty*position.AvgPrice + quantity*price) / (position.Qty + quantity)
	}
	position.Qty = newQty
	position.CurrentPrice = price
	position.UpdatedAt = time.Now()

	if newQty == 0 {
		if err := s.store.DeletePosition(ctx, symbol); err != nil {
			return nil, err
		}
		s.logger.Debug().Str("symbol", symbol).Msg("Position closed")
		return position, nil
	}

	if err := s.store.SavePosition(ctx, position); err != nil {
		return nil, err
	}
	return position, nil
}

// CurrentFlag reports whether the pipeline is currently long the symbol.
func (s *Service) CurrentFlag(ctx context.Context, symbol string) (bool, error) {
	position, err := s.store.GetPosition(ctx, symbol)
	if err != nil {
		if models.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return position.Qty > 0, nil
}

// List returns open positions (qty > 0 only).
func (s *Service) List(ctx context.Context) ([]*models.Position, error) {
	all, err := s.store.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	open := make([]*models.Position, 0, len(all))
	for _, p := range all {
		if p.Qty > 0 {
			open = append(open, p)
		}
	}
	return open, nil
}

// Reset deletes all positions.
func (s *Service) Reset(ctx context.Context) error {
	count, err := s.store.DeleteAll(ctx)
	if err != nil {
		return err
	}
	s.logger.Info().Int("count", count).Msg("Positions cleared")
	return nil
}

// Ensure Service implements PositionService
var _ interfaces.PositionService = (*Service)(nil)

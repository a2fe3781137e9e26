// Package tradedb implements OrderStore, DecisionStore, and PositionStore
// using BadgerHold. Orders and decisions are append-only; positions are the
// pipeline's mutable per-symbol aggregates.
package tradedb

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/models"
)

// defaultOrderLimit caps order history queries when the caller passes 0.
const defaultOrderLimit = 20

// Store implements the trade-side storage interfaces.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore creates a new trade store backed by BadgerHold.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tradedb path %s: %w", path, err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open tradedb at %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("TradeDB opened")
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- Orders ---

// SaveOrder inserts a new order. Insert, not upsert: orders are immutable,
// and a duplicate order ID is an error.
func (s *Store) SaveOrder(_ context.Context, order *models.Order) error {
	if err := s.db.Insert(order.OrderID, order); err != nil {
		return fmt.Errorf("failed to save order '%s': %w", order.OrderID, err)
	}
	s.logger.Debug().
		Str("order_id", order.OrderID).
		Str("symbol", order.Symbol).
		Str("side", order.Side).
		Msg("Order saved")
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Get(orderID, &order); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, &models.NotFoundError{Resource: "order", Key: orderID}
		}
		return nil, fmt.Errorf("failed to get order '%s': %w", orderID, err)
	}
	return &order, nil
}

func (s *Store) ListOrders(_ context.Context, userID string, q interfaces.OrderQuery) ([]*models.Order, error) {
	query := badgerhold.Where("UserID").Eq(userID)
	if q.Status != "" {
		query = query.And("Status").Eq(q.Status)
	}

	var matched []models.Order
	if err := s.db.Find(&matched, query); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	result := make([]*models.Order, 0, len(matched))
	for i := range matched {
		result = append(result, &matched[i])
	}

	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	limit := q.Limit
	if limit <= 0 {
		limit = defaultOrderLimit
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) LastOrderTime(_ context.Context, symbol string) (time.Time, error) {
	var all []models.Order
	if err := s.db.Find(&all, badgerhold.Where("Symbol").Eq(symbol)); err != nil {
		return time.Time{}, fmt.Errorf("failed to query orders for '%s': %w", symbol, err)
	}
	var last time.Time
	for i := range all {
		if all[i].CreatedAt.After(last) {
			last = all[i].CreatedAt
		}
	}
	return last, nil
}

// --- Decisions ---

func (s *Store) SaveDecision(_ context.Context, decision *models.Decision) error {
	if err := s.db.Insert(decision.ID, decision); err != nil {
		return fmt.Errorf("failed to save decision '%s': %w", decision.ID, err)
	}
	s.logger.Debug().
		Str("decision_id", decision.ID).
		Str("symbol", decision.Symbol).
		Int("action", decision.Action).
		Msg("Decision saved")
	return nil
}

func (s *Store) GetDecision(_ context.Context, id string) (*models.Decision, error) {
	var decision models.Decision
	if err := s.db.Get(id, &decision); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, &models.NotFoundError{Resource: "decision", Key: id}
		}
		return nil, fmt.Errorf("failed to get decision '%s': %w", id, err)
	}
	return &decision, nil
}

func (s *Store) ListDecisions(_ context.Context, symbol string, limit int) ([]*models.Decision, error) {
	var all []models.Decision
	query := (*badgerhold.Query)(nil)
	if symbol != "" {
		query = badgerhold.Where("Symbol").Eq(symbol)
	}
	if err := s.db.Find(&all, query); err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}

	result := make([]*models.Decision, 0, len(all))
	for i := range all {
		d := all[i]
		result = append(result, &d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CountDecisionsSince(_ context.Context, since time.Time) (int, error) {
	var all []models.Decision
	if err := s.db.Find(&all, badgerhold.Where("CreatedAt").Ge(since)); err != nil {
		return 0, fmt.Errorf("failed to count decisions: %w", err)
	}
	return len(all), nil
}

// --- Positions ---

func (s *Store) GetPosition(_ context.Context, symbol string) (*models.Position, error) {
	var position models.Position
	if err := s.db.Get(symbol, &position); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, &models.NotFoundError{Resource: "position", Key: symbol}
		}
		return nil, fmt.Errorf("failed to get position '%s': %w", symbol, err)
	}
	return &position, nil
}

func (s *Store) SavePosition(_ context.Context, position *models.Position) error {
	position.UpdatedAt = time.Now()
	if err := s.db.Upsert(position.Symbol, position); err != nil {
		return fmt.Errorf("failed to save position '%s': %w", position.Symbol, err)
	}
	return nil
}

func (s *Store) DeletePosition(_ context.Context, symbol string) error {
	if err := s.db.Delete(symbol, models.Position{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete position '%s': %w", symbol, err)
	}
	return nil
}

func (s *Store) ListPositions(_ context.Context) ([]*models.Position, error) {
	var all []models.Position
	if err := s.db.Find(&all, nil); err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	result := make([]*models.Position, 0, len(all))
	for i := range all {
		p := all[i]
		result = append(result, &p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}

func (s *Store) DeleteAll(_ context.Context) (int, error) {
	positions, err := s.ListPositions(context.Background())
	if err != nil {
		return 0, err
	}
	count := 0
	for _, p := range positions {
		if err := s.db.Delete(p.Symbol, models.Position{}); err != nil && err != badgerhold.ErrNotFound {
			return count, fmt.Errorf("failed to delete position '%s': %w", p.Symbol, err)
		}
		count++
	}
	return count, nil
}

// Compile-time checks
var (
	_ interfaces.OrderStore    = (*Store)(nil)
	_ interfaces.DecisionStore = (*Store)(nil)
	_ interfaces.PositionStore = (*Store)(nil)
)

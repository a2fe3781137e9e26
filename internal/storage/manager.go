// Package storage provides the top-level StorageManager that coordinates
// the 2 storage areas: ledgerdb (accounts, users) and tradedb (orders,
// decisions, positions).
package storage

import (
	"fmt"

	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/storage/ledgerdb"
	"github.com/bobmcallan/paperd/internal/storage/tradedb"
)

// Manager implements interfaces.StorageManager using 2 storage areas.
type Manager struct {
	ledger *ledgerdb.Store
	trade  *tradedb.Store
	logger *common.Logger
}

// NewManager creates a new StorageManager with the 2 storage areas.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ledgerStore, err := ledgerdb.NewStore(logger, config.Storage.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger store: %w", err)
	}

	tradeStore, err := tradedb.NewStore(logger, config.Storage.Trade.Path)
	if err != nil {
		ledgerStore.Close()
		return nil, fmt.Errorf("failed to create trade store: %w", err)
	}

	logger.Info().
		Str("ledger", config.Storage.Ledger.Path).
		Str("trade", config.Storage.Trade.Path).
		Msg("Storage manager initialized (2 areas)")

	return &Manager{
		ledger: ledgerStore,
		trade:  tradeStore,
		logger: logger,
	}, nil
}

func (m *Manager) AccountStore() interfaces.AccountStore {
	return m.ledger
}

func (m *Manager) UserStore() interfaces.UserStore {
	return m.ledger
}

func (m *Manager) OrderStore() interfaces.OrderStore {
	return m.trade
}

func (m *Manager) DecisionStore() interfaces.DecisionStore {
	return m.trade
}

func (m *Manager) PositionStore() interfaces.PositionStore {
	return m.trade
}

func (m *Manager) Close() error {
	var firstErr error
	if err := m.ledger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.trade.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)

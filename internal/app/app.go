package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/paperd/internal/clients/execution"
	"github.com/bobmcallan/paperd/internal/clients/model"
	"github.com/bobmcallan/paperd/internal/common"
	"github.com/bobmcallan/paperd/internal/events"
	"github.com/bobmcallan/paperd/internal/interfaces"
	"github.com/bobmcallan/paperd/internal/services/executor"
	"github.com/bobmcallan/paperd/internal/services/ledger"
	"github.com/bobmcallan/paperd/internal/services/pipeline"
	"github.com/bobmcallan/paperd/internal/services/positions"
	"github.com/bobmcallan/paperd/internal/storage"
)

// App holds all initialized services, clients, and the event hub.
// It is the shared core behind cmd/paperd-server and the test harnesses.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	ModelClient interfaces.ModelClient
	Execution   interfaces.ExecutionAdapter
	Ledger      interfaces.LedgerService
	Positions   interfaces.PositionService
	Executor    interfaces.ExecutorService
	Pipeline    interfaces.PipelineService
	Hub         *events.Hub
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, clients, services, and the event hub.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Load configuration - check provided path, PAPERD_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("PAPERD_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "paperd.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/paperd.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage paths to binary directory
	if config.Storage.Ledger.Path != "" && !filepath.IsAbs(config.Storage.Ledger.Path) {
		config.Storage.Ledger.Path = filepath.Join(binDir, config.Storage.Ledger.Path)
	}
	if config.Storage.Trade.Path != "" && !filepath.IsAbs(config.Storage.Trade.Path) {
		config.Storage.Trade.Path = filepath.Join(binDir, config.Storage.Trade.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// External clients
	modelClient := model.NewClient(
		model.WithBaseURL(config.Clients.Model.BaseURL),
		model.WithLogger(logger),
		model.WithRateLimit(config.Clients.Model.RateLimit),
		model.WithTimeout(config.Clients.Model.GetTimeout()),
	)

	var executionAdapter interfaces.ExecutionAdapter
	switch config.Clients.Execution.Mode {
	case "http":
		executionAdapter = execution.NewHTTPAdapter(config.Clients.Execution.BaseURL,
			execution.WithLogger(logger),
			execution.WithTimeout(config.Clients.Execution.GetTimeout()),
		)
	default:
		executionAdapter = execution.NewPaperAdapter(logger)
	}

	// Event hub
	hub := events.NewHub(logger)
	go hub.Run()

	// Domain services
	ledgerService := ledger.NewService(storageManager.AccountStore(), logger)
	positionService := positions.NewService(storageManager.PositionStore(), logger)
	executorService := executor.NewService(ledgerService, positionService, storageManager.OrderStore(), logger)

	gates := pipeline.NewGates(
		config.Risk,
		config.Trading.AccountSize,
		storageManager.OrderStore(),
		storageManager.DecisionStore(),
		storageManager.PositionStore(),
	)

	pipelineService := pipeline.NewService(
		modelClient,
		executionAdapter,
		positionService,
		storageManager.DecisionStore(),
		storageManager.OrderStore(),
		hub,
		gates,
		pipeline.Options{
			OrderValue:   config.Trading.OrderValue,
			ObsLength:    config.Clients.Model.ObsLength,
			ModelTimeout: config.Clients.Model.GetTimeout(),
			ExecTimeout:  config.Clients.Execution.GetTimeout(),
		},
		logger,
	)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		ModelClient: modelClient,
		Execution:   executionAdapter,
		Ledger:      ledgerService,
		Positions:   positionService,
		Executor:    executorService,
		Pipeline:    pipelineService,
		Hub:         hub,
		StartupTime: startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
// Shutdown order: stop the event hub, close storage.
func (a *App) Close() {
	if a.Hub != nil {
		a.Hub.Stop()
		a.Hub = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}

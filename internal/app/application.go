package app

import (
	"context"
	"fmt"
	"time"

	calculatorsvc "github.com/Razlynski/calculator-mvc-isaac/internal/app/services/calculator"
	healthsvc "github.com/Razlynski/calculator-mvc-isaac/internal/app/services/health"
	historysvc "github.com/Razlynski/calculator-mvc-isaac/internal/app/services/history"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage/memory"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/system"
	"github.com/Razlynski/calculator-mvc-isaac/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Windows storage.WindowStore
	History storage.HistoryStore
}

// Options tunes retention behaviour.
type Options struct {
	// HistoryLimit caps records listed and retained per window.
	HistoryLimit int
	// SessionTTL expires window snapshots idle longer than this. Zero
	// disables expiry.
	SessionTTL time.Duration
	// SweepSchedule is the cron spec for the retention sweeper.
	SweepSchedule string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Calculator *calculatorsvc.Service
	History    *historysvc.Service
	Health     *healthsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Windows == nil {
		stores.Windows = mem
	}
	if stores.History == nil {
		stores.History = mem
	}

	manager := system.NewManager()

	calcService := calculatorsvc.New(stores.Windows, stores.History, log)
	historyService := historysvc.New(stores.History, opts.HistoryLimit, log)
	healthService := healthsvc.New(log)

	for _, name := range []string{"calculator", "health"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	sweeper := historysvc.NewSweeper(stores.History, stores.Windows, opts.HistoryLimit, opts.SessionTTL, log)
	if opts.SweepSchedule != "" {
		sweeper.WithSchedule(opts.SweepSchedule)
	}
	if err := manager.Register(sweeper); err != nil {
		return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
	}

	return &Application{
		manager:    manager,
		log:        log,
		Calculator: calcService,
		History:    historyService,
		Health:     healthService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

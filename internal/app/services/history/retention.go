package history

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/metrics"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/system"
	"github.com/Razlynski/calculator-mvc-isaac/pkg/logger"
)

var _ system.Service = (*Sweeper)(nil)

// DefaultSweepSchedule runs the retention sweep once an hour.
const DefaultSweepSchedule = "@hourly"

// Sweeper prunes each window's history beyond the retention cap and
// expires window snapshots idle longer than the session TTL.
type Sweeper struct {
	history  storage.HistoryStore
	windows  storage.WindowStore
	log      *logger.Logger
	schedule string
	keep     int
	idleTTL  time.Duration

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewSweeper creates a lifecycle-managed retention sweeper. An idleTTL
// of zero disables window expiry; keep bounds records per window.
func NewSweeper(history storage.HistoryStore, windows storage.WindowStore, keep int, idleTTL time.Duration, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("history-sweeper")
	}
	if keep <= 0 {
		keep = DefaultDisplayLimit
	}
	return &Sweeper{
		history:  history,
		windows:  windows,
		log:      log,
		schedule: DefaultSweepSchedule,
		keep:     keep,
		idleTTL:  idleTTL,
	}
}

// WithSchedule overrides the cron schedule used for sweeps.
func (s *Sweeper) WithSchedule(spec string) {
	s.mu.Lock()
	if spec != "" {
		s.schedule = spec
	}
	s.mu.Unlock()
}

func (s *Sweeper) Name() string { return "history-sweeper" }

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.Sweep(context.Background()) }); err != nil {
		return err
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("history sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	// Stop halts scheduling; the returned context completes once any
	// in-flight sweep has finished.
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("history sweeper stopped")
	return nil
}

// Sweep runs one retention pass: prune history beyond the cap, then
// drop idle window snapshots.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pruned, err := s.history.PruneRecords(ctx, s.keep)
	if err != nil {
		s.log.WithError(err).Warn("history prune failed")
	} else if pruned > 0 {
		metrics.PrunedRecords.Add(float64(pruned))
		s.log.WithField("records", pruned).Info("history pruned")
	}

	if s.idleTTL <= 0 {
		return
	}

	expired, err := s.windows.DeleteIdleWindows(ctx, time.Now().Add(-s.idleTTL))
	if err != nil {
		s.log.WithError(err).Warn("idle window expiry failed")
	} else if expired > 0 {
		metrics.ExpiredWindows.Add(float64(expired))
		metrics.ActiveWindows.Sub(float64(expired))
		s.log.WithField("windows", expired).Info("idle windows expired")
	}
}

// Package calculator applies input events to window snapshots: load,
// transition, store, and hand completed calculations to history.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/calc"
	domain "github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/history"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/domain/window"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/metrics"
	"github.com/Razlynski/calculator-mvc-isaac/internal/app/storage"
	"github.com/Razlynski/calculator-mvc-isaac/pkg/logger"
)

// Service owns the read-apply-write cycle for calculator windows. Events
// against one window are applied strictly one at a time; windows never
// share state.
type Service struct {
	windows storage.WindowStore
	history storage.HistoryStore
	log     *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a calculator service.
func New(windows storage.WindowStore, history storage.HistoryStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("calculator")
	}
	return &Service{
		windows: windows,
		history: history,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
	}
}

// windowLock returns the mutex serializing events for one window.
func (s *Service) windowLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Service) dropLock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, id)
}

// Open mints a window with the default accumulator state.
func (s *Service) Open(ctx context.Context) (window.Window, error) {
	w := window.New(uuid.NewString(), time.Now())
	if err := s.windows.SaveWindow(ctx, w); err != nil {
		return window.Window{}, fmt.Errorf("save window: %w", err)
	}

	metrics.WindowsOpened.Inc()
	metrics.ActiveWindows.Inc()
	s.log.WithField("window_id", w.ID).Info("window opened")
	return w, nil
}

// Get loads a window snapshot.
func (s *Service) Get(ctx context.Context, id string) (window.Window, error) {
	return s.windows.GetWindow(ctx, id)
}

// Press applies one event to the window. The returned record is non-nil
// when the event completed a calculation. On a transition error the
// loaded window is returned unchanged so callers can show the prior
// display state.
func (s *Service) Press(ctx context.Context, id string, ev calc.Event) (window.Window, *domain.Record, error) {
	lock := s.windowLock(id)
	lock.Lock()
	defer lock.Unlock()

	w, err := s.windows.GetWindow(ctx, id)
	if err != nil {
		return window.Window{}, nil, err
	}

	metrics.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	next, done, err := calc.Apply(w.State, ev)
	if err != nil {
		if errors.Is(err, calc.ErrDivisionByZero) {
			metrics.EvaluationsTotal.WithLabelValues(metrics.OutcomeDivisionByZero).Inc()
			s.log.WithField("window_id", id).Debug("division by zero rejected")
		}
		return w, nil, err
	}

	w.State = next
	w.Touch(time.Now())
	if err := s.windows.SaveWindow(ctx, w); err != nil {
		return window.Window{}, nil, fmt.Errorf("save window: %w", err)
	}

	if done == nil {
		return w, nil, nil
	}

	rec := domain.Record{
		ID:         uuid.NewString(),
		WindowID:   id,
		Expression: done.Expression,
		Result:     done.Result,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.history.AppendRecord(ctx, rec); err != nil {
		return window.Window{}, nil, fmt.Errorf("append history: %w", err)
	}

	metrics.EvaluationsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.HistoryAppends.Inc()
	s.log.WithField("window_id", id).WithField("expression", rec.Expression).
		Debugf("calculation completed: %v", rec.Result)
	return w, &rec, nil
}

// Close drops the window snapshot. History records are kept.
func (s *Service) Close(ctx context.Context, id string) error {
	lock := s.windowLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := s.windows.DeleteWindow(ctx, id); err != nil {
		return err
	}
	s.dropLock(id)

	metrics.ActiveWindows.Dec()
	s.log.WithField("window_id", id).Info("window closed")
	return nil
}

// Package health reports process liveness and resource usage for the
// unauthenticated health endpoint.
package health

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/Razlynski/calculator-mvc-isaac/pkg/logger"
)

// Status is the payload served at the health endpoint.
type Status struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	GoVersion     string  `json:"go_version"`
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	GCCycles      uint32  `json:"gc_cycles"`
	CPUPercent    float64 `json:"cpu_percent"`
	RSSMB         float64 `json:"rss_mb"`
}

// Service samples runtime and OS process statistics.
type Service struct {
	log     *logger.Logger
	started time.Time
	proc    *process.Process
}

// New creates a health service. Process inspection failures degrade to
// runtime-only reporting rather than erroring.
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("health")
	}
	s := &Service{
		log:     log,
		started: time.Now(),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.WithError(err).Warn("process inspection unavailable")
	} else {
		s.proc = proc
	}
	return s
}

// Check returns a point-in-time health snapshot.
func (s *Service) Check(ctx context.Context) Status {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	st := Status{
		Status:        "ok",
		UptimeSeconds: time.Since(s.started).Seconds(),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(ms.HeapAlloc) / (1 << 20),
		GCCycles:      ms.NumGC,
	}

	if s.proc != nil {
		if pct, err := s.proc.CPUPercentWithContext(ctx); err == nil {
			st.CPUPercent = pct
		}
		if mem, err := s.proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			st.RSSMB = float64(mem.RSS) / (1 << 20)
		}
	}

	return st
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/kindle-vocab/internal/logging"
	"github.com/mrlokans/kindle-vocab/internal/services"
)

// Exporter runs a single incremental export.
type Exporter interface {
	Export(ctx context.Context, req services.ExportRequest) (services.ExportResult, error)
}

// ExportScheduler runs the incremental export on a cron schedule.
// A tick that fires while the previous export is still running is skipped.
type ExportScheduler struct {
	exporter Exporter
	request  services.ExportRequest
	schedule string
	log      *slog.Logger

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	isSyncing bool
	runCtx    context.Context
	cancel    context.CancelFunc
	jobs      sync.WaitGroup
}

// NewExportScheduler creates a new scheduler instance.
func NewExportScheduler(exporter Exporter, req services.ExportRequest, schedule string, logger *slog.Logger) *ExportScheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ExportScheduler{
		exporter: exporter,
		request:  req,
		schedule: schedule,
		log:      logger.With("component", "scheduler"),
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// Start registers the export job and starts the cron loop. Cancelling ctx
// stops the scheduler and any export in flight.
func (s *ExportScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.runExport()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule export job: %w", err)
	}
	s.entryID = entryID

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.isRunning = true

	next, _ := NextRunTime(s.schedule, time.Now())
	s.log.Info("scheduler started",
		slog.String("schedule", s.schedule),
		slog.String("description", Describe(s.schedule)),
		slog.Time("next_run", next),
	)

	go func(done <-chan struct{}) {
		<-done
		s.Stop()
	}(s.runCtx.Done())

	return nil
}

// Stop stops accepting new ticks, cancels a running export and waits for it
// to return.
func (s *ExportScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.jobs.Wait()

	s.log.Info("scheduler stopped")
}

// RunNow triggers an export immediately and waits for it. It reports false
// when the export was skipped because another one was running or the
// scheduler has been stopped.
func (s *ExportScheduler) RunNow() bool {
	return s.runExport()
}

// IsRunning returns whether the scheduler is active.
func (s *ExportScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the next export will occur, or nil when stopped.
func (s *ExportScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *ExportScheduler) runExport() bool {
	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		s.log.Warn("export skipped, previous run still in progress")
		return false
	}
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	s.isSyncing = true
	s.jobs.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
		s.jobs.Done()
	}()

	start := time.Now()
	result, err := s.exporter.Export(ctx, s.request)
	if err != nil {
		s.log.Error("scheduled export failed",
			slog.String("error", err.Error()),
			slog.String("phase", string(result.Phase)),
		)
		return true
	}

	s.log.Info("scheduled export finished",
		slog.Int("written", result.Written),
		slog.Int("not_found", result.NotFound),
		slog.Int64("watermark", result.WatermarkAfter),
		slog.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	return true
}

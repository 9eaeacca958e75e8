package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers the monthly export on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	worker  *ExportWorker
	timeout time.Duration
	now     func() time.Time
}

// NewScheduler parses spec as a standard five-field cron expression.
func NewScheduler(spec string, w *ExportWorker, timeout time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		worker:  w,
		timeout: timeout,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("schedule monthly export %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the cron loop and blocks until ctx is done, then waits for a
// running export to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		slog.InfoContext(ctx, "Monthly export scheduled", "next_run", e.Next)
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	slog.InfoContext(ctx, "Export scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	slog.InfoContext(ctx, "Executing scheduled export...")
	sheet, n, err := s.worker.ExportPreviousMonth(ctx, s.now())
	if err != nil {
		slog.ErrorContext(ctx, "Scheduled export failed", "sheet", sheet, "error", err)
		return
	}
	slog.InfoContext(ctx, "Scheduled export completed", "sheet", sheet, "expenses", n)
}

package worker

import (
	"context"
	"log/slog"
	"time"

	"durood/internal/log"
)

// RolloverChecker runs the business-day check. Implemented by
// *tally.Store and *services.CounterService.
type RolloverChecker interface {
	CheckAndResetDaily(ctx context.Context) bool
}

// RolloverTicker closes the business day while nobody is interacting with
// the counter.
type RolloverTicker struct {
	checker  RolloverChecker
	interval time.Duration
	logger   *slog.Logger
}

func NewRolloverTicker(checker RolloverChecker, interval time.Duration, logger *slog.Logger) *RolloverTicker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &RolloverTicker{
		checker:  checker,
		interval: interval,
		logger:   logger.With(log.FieldComponent, log.ComponentWorker),
	}
}

// Run checks once immediately, then on every tick until ctx is cancelled.
// It always returns ctx.Err().
func (w *RolloverTicker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Rollover ticker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.check(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Rollover ticker stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *RolloverTicker) check(ctx context.Context) {
	if w.checker.CheckAndResetDaily(ctx) {
		w.logger.InfoContext(ctx, "Idle rollover performed",
			log.FieldOperation, log.OpRollover,
			"next_check", time.Now().Add(w.interval).Format("15:04:05"))
	}
}

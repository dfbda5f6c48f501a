package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"livemon/internal/logging"
	"livemon/internal/notifications"
	"livemon/internal/pipeline"
	"livemon/internal/services"
	"livemon/internal/store"
)

// Runner executes one cycle. *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, mode pipeline.Mode) (pipeline.Summary, error)
}

// Daemon runs cycles on an interval.
type Daemon struct {
	runner   Runner
	notifier notifications.Service
	logger   *slog.Logger
	mode     pipeline.Mode
	interval time.Duration

	running atomic.Bool
	cycles  atomic.Int64
	skipped atomic.Int64
}

// Status represents daemon runtime counters.
type Status struct {
	Running  bool
	Cycles   int64
	Skipped  int64
	Interval time.Duration
}

// New constructs a daemon. A nil notifier disables notifications.
func New(runner Runner, notifier notifications.Service, logger *slog.Logger, mode pipeline.Mode, interval time.Duration) (*Daemon, error) {
	if runner == nil {
		return nil, errors.New("daemon requires a cycle runner")
	}
	if interval <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "init", "interval must be positive", nil)
	}
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Daemon{
		runner:   runner,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		mode:     mode,
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then once per interval. It returns nil
// when ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	d.logger.Info("livemon daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("mode", string(d.mode)),
		logging.Duration("interval", d.interval),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.tick(ctx)
		select {
		case <-ctx.Done():
			d.logger.Info("livemon daemon stopped",
				logging.String(logging.FieldEventType, "daemon_stop"),
				logging.Int64("cycles", d.cycles.Load()),
				logging.Int64("skipped", d.skipped.Load()),
			)
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Daemon) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := d.runner.Run(ctx, d.mode)
	switch {
	case errors.Is(err, store.ErrLocked):
		d.skipped.Add(1)
		d.logger.Warn("cycle skipped; data directory is locked",
			logging.String(logging.FieldEventType, "cycle_skipped"),
			logging.String(logging.FieldImpact, "this interval produces no update"),
		)
		return
	case err != nil && ctx.Err() != nil:
		// shutdown interrupted the cycle
		return
	}

	d.cycles.Add(1)
	notifyCtx := context.WithoutCancel(ctx)
	var notifyErr error
	if err != nil {
		notifyErr = d.notifier.NotifyCycleFailed(notifyCtx, string(d.mode), err)
	} else {
		notifyErr = d.notifier.NotifyCycleCompleted(notifyCtx, summary.Notification())
	}
	if notifyErr != nil {
		logging.WarnWithContext(d.logger, "cycle notification failed", "notification_failed",
			logging.Error(notifyErr),
			logging.String(logging.FieldImpact, "the cycle result was not published"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic or run livemon test-notify"),
		)
	}
}

// Status reports whether the loop is running and how many cycles it ran.
func (d *Daemon) Status() Status {
	return Status{
		Running:  d.running.Load(),
		Cycles:   d.cycles.Load(),
		Skipped:  d.skipped.Load(),
		Interval: d.interval,
	}
}

package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"livemon/internal/catalog"
	"livemon/internal/config"
	"livemon/internal/logging"
	"livemon/internal/probe"
	"livemon/internal/services"
)

const componentName = "scheduler"

// Checker decides whether a single address is live.
type Checker interface {
	Check(ctx context.Context, address string) probe.Verdict
}

// Report summarizes one probe pass.
type Report struct {
	// Live holds every channel record whose address was judged live, in input order.
	Live      []*catalog.Channel `json:"-"`
	Verdicts  []probe.Verdict    `json:"-"`
	Total     int                `json:"total"`
	Probed    int                `json:"probed"`
	LiveCount int                `json:"live"`
	Batches   int                `json:"batches"`
	// Failures counts dead channel records by failure kind.
	Failures map[string]int `json:"failures,omitempty"`
	Elapsed  time.Duration  `json:"elapsed"`
}

// Scheduler runs a Checker over channel sets.
type Scheduler struct {
	workers   int
	batchSize int
	ceiling   time.Duration
	checker   Checker
	logger    *slog.Logger
}

// New builds a Scheduler from probe configuration.
func New(cfg config.Probe, checker Checker, logger *slog.Logger) *Scheduler {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		workers:   workers,
		batchSize: cfg.BatchSize,
		ceiling:   cfg.ChannelCeiling(),
		checker:   checker,
		logger:    logging.NewComponentLogger(logger, componentName),
	}
}

// Run probes channels and returns the live subset. It never fails: every
// per-address error degrades that address to dead and is counted by kind.
func (s *Scheduler) Run(ctx context.Context, channels []*catalog.Channel) Report {
	start := time.Now()
	ctx = services.WithPhase(ctx, "probe")
	logger := logging.WithContext(ctx, s.logger)

	addresses, owners := dedupe(channels)
	verdicts := make([]probe.Verdict, len(addresses))
	batches := partition(len(addresses), s.batchSize)

	logger.Info("probe pass starting",
		logging.String(logging.FieldEventType, "probe_start"),
		logging.Int("channels", len(channels)),
		logging.Int("unique", len(addresses)),
		logging.Int("batches", len(batches)),
		logging.Int("workers", s.workers),
	)

	for n, batch := range batches {
		if err := ctx.Err(); err != nil {
			// Remaining batches are reported as timeouts so every record
			// still receives a verdict.
			for i := batch.lo; i < len(addresses); i++ {
				verdicts[i] = timeoutVerdict(addresses[i], "", err)
			}
			break
		}
		var g errgroup.Group
		g.SetLimit(s.workers)
		for i := batch.lo; i < batch.hi; i++ {
			g.Go(func() error {
				verdicts[i] = s.checkWithCeiling(ctx, addresses[i])
				return nil
			})
		}
		_ = g.Wait()
		logger.Debug("probe batch settled",
			logging.Int("batch", n+1),
			logging.Int("size", batch.hi-batch.lo),
		)
	}

	report := Report{
		Verdicts: verdicts,
		Total:    len(channels),
		Probed:   len(addresses),
		Batches:  len(batches),
		Failures: map[string]int{},
	}
	live := make(map[string]bool, len(addresses))
	for i, v := range verdicts {
		if v.Live() {
			live[addresses[i]] = true
			continue
		}
		report.Failures[v.Kind()] += len(owners[i])
	}
	for _, ch := range channels {
		if ch != nil && live[ch.Address] {
			report.Live = append(report.Live, ch)
		}
	}
	report.LiveCount = len(report.Live)
	report.Elapsed = time.Since(start)

	logger.Info("probe pass complete",
		logging.String(logging.FieldEventType, "probe_complete"),
		logging.Int("channels", report.Total),
		logging.Int("probed", report.Probed),
		logging.Int("live", report.LiveCount),
		logging.Any("failures", report.Failures),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report
}

// checkWithCeiling runs one probe under the hard per-channel ceiling. When the
// ceiling expires the verdict is a timeout, but the worker slot stays held
// until the probe has released its socket or subprocess.
func (s *Scheduler) checkWithCeiling(ctx context.Context, address string) probe.Verdict {
	ctx = services.WithChannel(ctx, address)
	if s.ceiling <= 0 {
		return s.checker.Check(ctx, address)
	}
	cctx, cancel := context.WithTimeout(ctx, s.ceiling)
	defer cancel()

	start := time.Now()
	done := make(chan probe.Verdict, 1)
	go func() {
		done <- s.checker.Check(cctx, address)
	}()

	select {
	case v := <-done:
		// A verdict that lands after the ceiling counts as a timeout even
		// when the probe itself succeeded.
		if err := cctx.Err(); err != nil {
			timeout := timeoutVerdict(address, v.Tier, err)
			timeout.Elapsed = v.Elapsed
			return timeout
		}
		return v
	case <-cctx.Done():
		v := timeoutVerdict(address, "", cctx.Err())
		v.Elapsed = time.Since(start)
		late := <-done
		v.Tier = late.Tier
		return v
	}
}

func timeoutVerdict(address, tier string, cause error) probe.Verdict {
	return probe.Verdict{
		Address: address,
		State:   probe.StateDead,
		Tier:    tier,
		Err:     services.Wrap(services.ErrProbeTimeout, componentName, "channel ceiling", address, cause),
	}
}

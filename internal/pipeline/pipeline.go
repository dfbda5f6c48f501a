package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"livemon/internal/catalog"
	"livemon/internal/config"
	"livemon/internal/history"
	"livemon/internal/logging"
	"livemon/internal/probe"
	"livemon/internal/refresh"
	"livemon/internal/remote"
	"livemon/internal/scheduler"
	"livemon/internal/services"
	"livemon/internal/store"
)

const componentName = "pipeline"

// Mode selects which halves of a cycle run.
type Mode string

const (
	ModeRun     Mode = "run"
	ModeRefresh Mode = "refresh"
	ModeProbe   Mode = "probe"
)

func (m Mode) refreshes() bool { return m == ModeRun || m == ModeRefresh }
func (m Mode) probes() bool    { return m == ModeRun || m == ModeProbe }

// Summary is the user-visible outcome of a cycle.
type Summary struct {
	RunID     string            `json:"run_id"`
	Mode      Mode              `json:"mode"`
	StartedAt time.Time         `json:"started_at"`
	Refresh   *refresh.Report   `json:"refresh,omitempty"`
	Probe     *scheduler.Report `json:"probe,omitempty"`
	// Failures merges refresh and probe failure counts by kind.
	Failures map[string]int `json:"failures,omitempty"`
	TreePath string         `json:"tree_path"`
	LivePath string         `json:"live_path,omitempty"`
	Elapsed  time.Duration  `json:"elapsed"`
}

// SourcesFailed counts sources whose refresh failed this cycle.
func (s Summary) SourcesFailed() int {
	if s.Refresh == nil {
		return 0
	}
	n := 0
	for _, src := range s.Refresh.Sources {
		if src.Kind != "" {
			n++
		}
	}
	return n
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithFetcher replaces the remote catalogue fetcher.
func WithFetcher(f refresh.Fetcher) Option { return func(p *Pipeline) { p.fetcher = f } }

// WithChecker replaces the liveness checker.
func WithChecker(c scheduler.Checker) Option { return func(p *Pipeline) { p.checker = c } }

// WithHistory uses an already open history store. The pipeline does not
// close stores it did not open.
func WithHistory(h *history.Store) Option {
	return func(p *Pipeline) {
		p.history = h
		p.ownsHistory = false
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// Pipeline wires the cycle components together.
type Pipeline struct {
	cfg         *config.Config
	codec       *catalog.Codec
	gateway     *store.Gateway
	fetcher     refresh.Fetcher
	checker     scheduler.Checker
	history     *history.Store
	ownsHistory bool
	now         func() time.Time
	logger      *slog.Logger
}

// New builds a Pipeline from cfg. When history is enabled and no store is
// supplied, the history database is opened here and closed by Close.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, componentName, "init", "config is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	codec := catalog.NewCodec(cfg.Keys)
	p := &Pipeline{
		cfg:         cfg,
		codec:       codec,
		gateway:     store.New(cfg, codec),
		now:         time.Now,
		ownsHistory: true,
		logger:      logging.NewComponentLogger(logger, componentName),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.history == nil && p.ownsHistory && cfg.History.Enabled {
		h, err := history.Open(cfg.HistoryPath(), cfg.History.KeepRuns)
		if err != nil {
			logging.WarnWithContext(p.logger, "run history unavailable", "history_open_failed",
				logging.String("history_path", cfg.HistoryPath()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "cycles are not recorded and the fingerprint gate is off"),
				logging.String(logging.FieldErrorHint, "delete the history database or set history.enabled = false"),
			)
		} else {
			p.history = h
		}
	}

	if p.fetcher == nil {
		opts := remote.Options{
			Timeout:    cfg.Sources.RequestTimeoutDuration(),
			StaleAfter: cfg.Sources.StaleAfter(),
			UserAgent:  cfg.Sources.UserAgent,
			Now:        p.now,
		}
		if cfg.Sources.FingerprintGate && p.history != nil {
			opts.Ledger = p.history
		}
		p.fetcher = remote.NewClient(opts, logger)
	}
	if p.checker == nil {
		p.checker = probe.NewEngine(cfg.Probe, logger)
	}
	return p, nil
}

// Close releases the history database if the pipeline opened it.
func (p *Pipeline) Close() error {
	if p.ownsHistory && p.history != nil {
		return p.history.Close()
	}
	return nil
}

// Gateway exposes the persistence gateway.
func (p *Pipeline) Gateway() *store.Gateway { return p.gateway }

// History returns the run history store, or nil when disabled.
func (p *Pipeline) History() *history.Store { return p.history }

// Run executes one cycle in the given mode.
func (p *Pipeline) Run(ctx context.Context, mode Mode) (Summary, error) {
	start := p.now()
	summary := Summary{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: start,
		Failures:  map[string]int{},
		TreePath:  p.gateway.TreePath(),
	}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, p.logger)

	if err := p.gateway.Lock(); err != nil {
		return summary, err
	}
	defer func() {
		if err := p.gateway.Unlock(); err != nil {
			logger.Warn("failed to release data directory lock", logging.Error(err))
		}
	}()

	logger.Info("cycle starting",
		logging.String(logging.FieldEventType, "cycle_start"),
		logging.String("mode", string(mode)),
		logging.Int("roots", len(p.cfg.Sources.Roots)),
	)

	err := p.cycle(ctx, mode, &summary)
	summary.Elapsed = time.Since(start)
	p.record(ctx, summary, err)

	if err != nil {
		logging.ErrorWithContext(logger, "cycle failed", "cycle_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorCode, services.Kind(err)),
		)
		return summary, err
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "cycle_complete"),
		logging.String("mode", string(mode)),
		logging.Duration("elapsed", summary.Elapsed),
	}
	if summary.Probe != nil {
		attrs = append(attrs,
			logging.Int("channels", summary.Probe.Total),
			logging.Int("live", summary.Probe.LiveCount),
		)
	}
	if len(summary.Failures) > 0 {
		attrs = append(attrs, logging.Any("failures", summary.Failures))
	}
	logger.Info("cycle complete", logging.Args(attrs...)...)
	return summary, nil
}

func (p *Pipeline) cycle(ctx context.Context, mode Mode, summary *Summary) error {
	tree, err := p.loadTree(ctx)
	if err != nil {
		return err
	}

	if mode.refreshes() {
		svc := refresh.New(p.cfg, p.fetcher, p.codec, p.logger)
		var report refresh.Report
		tree, report = svc.Refresh(ctx, tree)
		summary.Refresh = &report
		mergeCounts(summary.Failures, report.Failures)
		if err := p.gateway.SaveTree(tree); err != nil {
			return err
		}
	}

	if mode.probes() {
		candidates := catalog.ProbeCandidates(tree)
		sched := scheduler.New(p.cfg.Probe, p.checker, p.logger)
		report := sched.Run(ctx, candidates)
		summary.Probe = &report
		mergeCounts(summary.Failures, report.Failures)
		// Every record sharing a live address is written, one entry per platform.
		if err := p.gateway.SaveLive(report.Live); err != nil {
			return err
		}
		summary.LivePath = p.gateway.LivePath()
	}
	return nil
}

// loadTree reads the persisted tree. A corrupt tree is replaced by an empty
// one so the cycle can rebuild it from the remote catalogues.
func (p *Pipeline) loadTree(ctx context.Context) ([]*catalog.Source, error) {
	tree, err := p.gateway.LoadTree()
	if err == nil {
		return tree, nil
	}
	if !errors.Is(err, services.ErrParse) {
		return nil, err
	}
	logging.WarnWithContext(logging.WithContext(ctx, p.logger), "source tree unreadable; starting empty", "tree_parse_failed",
		logging.String("tree_path", p.gateway.TreePath()),
		logging.Error(err),
		logging.String(logging.FieldImpact, "every source is refetched from scratch"),
		logging.String(logging.FieldErrorHint, "inspect or delete the tree file"),
	)
	return nil, nil
}

func (p *Pipeline) record(ctx context.Context, summary Summary, cycleErr error) {
	if p.history == nil {
		return
	}
	run := history.Run{
		RunID:     summary.RunID,
		Command:   string(summary.Mode),
		StartedAt: summary.StartedAt,
		Elapsed:   summary.Elapsed,
		Failures:  summary.Failures,
	}
	if summary.Refresh != nil {
		run.Sources = len(summary.Refresh.Sources)
		run.SourcesFailed = summary.SourcesFailed()
		run.Platforms = summary.Refresh.Platforms
		run.Channels = summary.Refresh.Channels
	}
	if summary.Probe != nil {
		run.Probed = summary.Probe.Probed
		run.Live = summary.Probe.LiveCount
		if summary.Refresh == nil {
			run.Channels = summary.Probe.Total
		}
	}
	if cycleErr != nil {
		run.Error = cycleErr.Error()
	}
	if err := p.history.Record(context.WithoutCancel(ctx), run); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "failed to record run history", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, fmt.Sprintf("run %s missing from history", summary.RunID)),
		)
	}
}

func mergeCounts(dst, src map[string]int) {
	for k, v := range src {
		dst[k] += v
	}
}

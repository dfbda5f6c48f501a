package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"livemon/internal/config"
	"livemon/internal/logging"
	"livemon/internal/media/ffprobe"
	"livemon/internal/services"
)

const componentName = "probe"

// State is a step of the per-channel escalation.
type State int

const (
	StateStart State = iota
	StateTier1
	StateTier2
	StateLive
	StateDead
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateTier1:
		return "tier1"
	case StateTier2:
		return "tier2"
	case StateLive:
		return "live"
	case StateDead:
		return "dead"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateLive || s == StateDead }

// Tier names recorded in verdicts.
const (
	TierRecording = "recording"
	TierRTMP      = "rtmp"
	TierTCP       = "tcp"
	TierHTTP      = "http"
	TierDemuxer   = "demuxer"
)

// Verdict is the outcome of probing one address.
type Verdict struct {
	Address string
	State   State
	// Tier is the last tier that ran, empty when none did.
	Tier    string
	Err     error
	Elapsed time.Duration
}

// Live reports whether the address ended in StateLive.
func (v Verdict) Live() bool { return v.State == StateLive }

// Kind returns the failure taxonomy label, empty for live verdicts.
func (v Verdict) Kind() string { return services.Kind(v.Err) }

// Option configures an Engine.
type Option func(*Engine)

// WithDialer replaces the transport dialer.
func WithDialer(d Dialer) Option { return func(e *Engine) { e.dialer = d } }

// WithHTTPClient replaces the HTTP client used by the range tier.
func WithHTTPClient(c *http.Client) Option { return func(e *Engine) { e.http = c } }

// WithDemuxer replaces the tier-2 demuxer.
func WithDemuxer(d Demuxer) Option { return func(e *Engine) { e.demuxer = d } }

// WithTLSConfig sets the client TLS configuration used for rtmps addresses.
func WithTLSConfig(c *tls.Config) Option { return func(e *Engine) { e.tlsConfig = c } }

// Engine runs the escalation state machine. It is safe for concurrent use.
type Engine struct {
	cfg       config.Probe
	dialer    Dialer
	http      *http.Client
	demuxer   Demuxer
	tlsConfig *tls.Config
	logger    *slog.Logger
}

// NewEngine builds an Engine from probe configuration.
func NewEngine(cfg config.Probe, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		dialer:    &net.Dialer{},
		http:      &http.Client{},
		demuxer:   ffprobe.New(cfg.DemuxerBinary),
		tlsConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		logger:    logging.NewComponentLogger(logger, componentName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type run struct {
	address string
	url     *url.URL
	tier    string
	err     error
}

// Check walks address through the escalation states and returns its verdict.
func (e *Engine) Check(ctx context.Context, address string) Verdict {
	start := time.Now()
	r := &run{address: strings.TrimSpace(address)}
	state := StateStart
	for !state.Terminal() {
		state = e.step(ctx, state, r)
	}
	if r.err != nil && ctx.Err() != nil && !errors.Is(r.err, services.ErrProbeTimeout) {
		r.err = services.Wrap(services.ErrProbeTimeout, componentName, r.tier, r.address, ctx.Err())
	}
	verdict := Verdict{Address: r.address, State: state, Tier: r.tier, Err: r.err, Elapsed: time.Since(start)}
	e.logger.Debug("probe verdict",
		logging.String(logging.FieldChannel, r.address),
		logging.String("outcome", state.String()),
		logging.String("tier", r.tier),
		logging.String(logging.FieldErrorCode, verdict.Kind()),
		logging.Duration("elapsed", verdict.Elapsed),
	)
	return verdict
}

func (e *Engine) step(ctx context.Context, state State, r *run) State {
	switch state {
	case StateStart:
		if hasRecordingSuffix(r.address, e.cfg.RecordingSuffixes) {
			r.tier = TierRecording
			return StateLive
		}
		u, err := url.Parse(r.address)
		if err != nil || u.Scheme == "" {
			if err == nil {
				err = errors.New("missing scheme")
			}
			r.err = services.Wrap(services.ErrProbeRejected, componentName, "parse address", r.address, err)
			return StateDead
		}
		u.Scheme = strings.ToLower(u.Scheme)
		r.url = u
		return StateTier1

	case StateTier1:
		scheme := r.url.Scheme
		var err error
		switch {
		case isRTMP(scheme):
			err = e.rtmpTier(ctx, r)
		case isHTTP(scheme):
			err = e.httpTier(ctx, r)
		case e.escalates(scheme):
			return StateTier2
		default:
			r.err = services.Wrap(services.ErrProbeRejected, componentName, "dispatch", r.address,
				fmt.Errorf("no probe for scheme %q with demuxer %s", scheme, e.cfg.Demuxer))
			return StateDead
		}
		if err != nil {
			r.err = services.Wrap(services.ErrProbeRejected, componentName, r.tier, r.address, err)
			return StateDead
		}
		if e.escalates(scheme) {
			return StateTier2
		}
		return StateLive

	case StateTier2:
		r.tier = TierDemuxer
		if err := e.demuxerTier(ctx, r); err != nil {
			r.err = services.Wrap(services.ErrProcessFailure, componentName, r.tier, r.address, err)
			return StateDead
		}
		return StateLive
	}
	return StateDead
}

// escalates reports whether addresses with scheme run the demuxer tier.
func (e *Engine) escalates(scheme string) bool {
	switch e.cfg.Demuxer {
	case config.DemuxerAll:
		return true
	case config.DemuxerRTMP:
		return !isHTTP(scheme)
	default:
		return false
	}
}

func (e *Engine) rtmpTier(ctx context.Context, r *run) error {
	ctx, cancel := withTimeout(ctx, e.cfg.TCPTimeoutDuration())
	defer cancel()
	hostport := HostPort(r.url)
	dialer := e.dialer
	if r.url.Scheme == "rtmps" {
		dialer = tlsDialer{inner: e.dialer, config: e.tlsConfig}
	}
	if e.cfg.RTMPHandshake {
		r.tier = TierRTMP
		return RTMPHandshake(ctx, dialer, hostport)
	}
	r.tier = TierTCP
	return DialTCP(ctx, dialer, hostport)
}

func (e *Engine) httpTier(ctx context.Context, r *run) error {
	r.tier = TierHTTP
	ctx, cancel := withTimeout(ctx, e.cfg.HTTPTimeoutDuration())
	defer cancel()
	return HTTPRange(ctx, e.http, r.address, e.cfg.UserAgent)
}

func (e *Engine) demuxerTier(ctx context.Context, r *run) error {
	ctx, cancel := withTimeout(ctx, e.cfg.DemuxerTimeoutDuration())
	defer cancel()
	result, err := e.demuxer.ProbeStream(ctx, r.address, ffprobe.StreamOptions{
		Capture:   e.cfg.CaptureDuration(),
		UserAgent: e.cfg.UserAgent,
	})
	if err != nil {
		return err
	}
	if result.StreamCount() == 0 {
		return errors.New("demuxer reported no streams")
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

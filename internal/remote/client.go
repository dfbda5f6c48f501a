package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"livemon/internal/logging"
	"livemon/internal/services"
)

const (
	componentName   = "remote"
	maxPayloadBytes = 32 << 20
)

// Payload is a fetched document that passed the freshness gates.
type Payload struct {
	URL          string
	Body         []byte
	LastModified time.Time
	Fingerprint  uint64
}

// FingerprintLedger remembers when a URL's body fingerprint last changed.
type FingerprintLedger interface {
	// ObserveFingerprint records fp for url at now and returns the time since
	// which url has served this same fingerprint.
	ObserveFingerprint(ctx context.Context, url string, fp uint64, now time.Time) (time.Time, error)
}

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	StaleAfter time.Duration
	UserAgent  string
	// Ledger enables the fingerprint gate when non-nil.
	Ledger FingerprintLedger
	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
	// Now overrides the wall clock (tests).
	Now func() time.Time
}

// Client fetches catalogue documents.
type Client struct {
	http       *http.Client
	timeout    time.Duration
	staleAfter time.Duration
	userAgent  string
	ledger     FingerprintLedger
	now        func() time.Time
	logger     *slog.Logger
}

// NewClient constructs a Client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		http:       httpClient,
		timeout:    opts.Timeout,
		staleAfter: opts.StaleAfter,
		userAgent:  opts.UserAgent,
		ledger:     opts.Ledger,
		now:        now,
		logger:     logging.NewComponentLogger(logger, componentName),
	}
}

// Fetch downloads url and applies the freshness gates. Network failures and
// non-2xx statuses are ErrFetch; stale payloads are ErrStale.
func (c *Client) Fetch(ctx context.Context, url string) (*Payload, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrFetch, componentName, "build request", url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrFetch, componentName, "get", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, services.Wrap(services.ErrFetch, componentName, "get", url, fmt.Errorf("unexpected status %s", resp.Status))
	}

	now := c.now()
	modified, err := c.checkLastModified(resp.Header.Get("Last-Modified"), now)
	if err != nil {
		return nil, services.Wrap(services.ErrStale, componentName, "freshness", url, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, services.Wrap(services.ErrFetch, componentName, "read body", url, err)
	}
	if len(body) > maxPayloadBytes {
		return nil, services.Wrap(services.ErrFetch, componentName, "read body", url, fmt.Errorf("payload exceeds %d bytes", maxPayloadBytes))
	}

	payload := &Payload{URL: url, Body: body, LastModified: modified, Fingerprint: xxh3.Hash(body)}
	if err := c.checkFingerprint(ctx, payload, now); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched payload",
		logging.String(logging.FieldEventType, "payload_fetched"),
		logging.String("url", url),
		logging.Int64("payload_bytes", int64(len(body))),
		logging.Duration("age", now.Sub(modified)),
	)
	return payload, nil
}

func (c *Client) checkLastModified(header string, now time.Time) (time.Time, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return time.Time{}, fmt.Errorf("missing Last-Modified")
	}
	modified, err := http.ParseTime(header)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable Last-Modified %q", header)
	}
	if c.staleAfter > 0 && now.Sub(modified) > c.staleAfter {
		return modified, fmt.Errorf("last modified %s ago", now.Sub(modified).Round(time.Minute))
	}
	return modified, nil
}

func (c *Client) checkFingerprint(ctx context.Context, payload *Payload, now time.Time) error {
	if c.ledger == nil || c.staleAfter <= 0 {
		return nil
	}
	since, err := c.ledger.ObserveFingerprint(ctx, payload.URL, payload.Fingerprint, now)
	if err != nil {
		logging.WarnWithContext(c.logger, "fingerprint ledger unavailable", "fingerprint_ledger_failed",
			logging.String("url", payload.URL),
			logging.Error(err),
			logging.String(logging.FieldImpact, "payload accepted without the unchanged-body check"),
			logging.String(logging.FieldErrorHint, "check history_db permissions"),
		)
		return nil
	}
	if unchanged := now.Sub(since); unchanged >= c.staleAfter {
		return services.Wrap(services.ErrStale, componentName, "fingerprint", payload.URL,
			fmt.Errorf("body unchanged for %s", unchanged.Round(time.Minute)))
	}
	return nil
}

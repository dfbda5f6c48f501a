package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"livemon/internal/config"
)

const userAgent = "livemon/0.1.0"

// CycleReport is the subset of a cycle summary worth announcing.
type CycleReport struct {
	RunID         string
	Mode          string
	Channels      int
	Probed        int
	Live          int
	SourcesFailed int
	Failures      map[string]int
	Elapsed       time.Duration
}

// Service defines the notification surface used by the CLI.
type Service interface {
	NotifyCycleCompleted(ctx context.Context, report CycleReport) error
	NotifyCycleFailed(ctx context.Context, mode string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		onComplete: cfg.Notifications.OnComplete,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	onComplete bool
}

func (n *ntfyService) NotifyCycleCompleted(ctx context.Context, report CycleReport) error {
	degraded := report.SourcesFailed > 0
	if !n.onComplete && !degraded {
		return nil
	}

	elapsed := report.Elapsed.Round(time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "%s cycle finished in %s", modeLabel(report.Mode), elapsed)
	if report.Probed > 0 || report.Mode != "refresh" {
		fmt.Fprintf(&builder, "\nLive: %d of %d channels (%d probed)", report.Live, report.Channels, report.Probed)
	} else {
		fmt.Fprintf(&builder, "\nChannels: %d", report.Channels)
	}
	if report.SourcesFailed > 0 {
		fmt.Fprintf(&builder, "\nSources failed: %d", report.SourcesFailed)
	}
	if failures := formatFailures(report.Failures); failures != "" {
		builder.WriteString("\nFailures: ")
		builder.WriteString(failures)
	}

	data := payload{
		title:   "livemon - Cycle Complete",
		message: builder.String(),
		tags:    []string{"livemon", report.Mode, "completed"},
	}
	if degraded {
		data.title = "livemon - Cycle Complete (with errors)"
		data.tags = []string{"livemon", report.Mode, "warning"}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCycleFailed(ctx context.Context, mode string, err error) error {
	var builder strings.Builder
	builder.WriteString(modeLabel(mode))
	builder.WriteString(" cycle failed: ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "livemon - Cycle Failed",
		message:  builder.String(),
		tags:     []string{"livemon", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "livemon - Test",
		message:  "Notification system test",
		tags:     []string{"livemon", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func modeLabel(mode string) string {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return "Unknown"
	}
	return strings.ToUpper(mode[:1]) + mode[1:]
}

func formatFailures(failures map[string]int) string {
	if len(failures) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(failures))
	for kind := range failures {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", kind, failures[kind]))
	}
	return strings.Join(parts, ", ")
}

type noopService struct{}

func (noopService) NotifyCycleCompleted(context.Context, CycleReport) error { return nil }
func (noopService) NotifyCycleFailed(context.Context, string, error) error  { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }

package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"livemon/internal/config"
	"livemon/internal/notifications"
)

type capture struct {
	mu       sync.Mutex
	calls    int
	title    string
	tags     string
	priority string
	body     string
}

func newTopic(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	got := &capture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		got.mu.Lock()
		got.calls++
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		got.body = string(body)
		got.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte("topic says no"))
	}))
	t.Cleanup(server.Close)
	return server, got
}

func serviceFor(topic string, onComplete bool) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.OnComplete = onComplete
	return notifications.NewService(&cfg)
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := serviceFor("", true)
	if err := svc.NotifyCycleFailed(context.Background(), "run", errors.New("boom")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("nil config should be a noop, got %v", err)
	}
}

func TestCycleCompletedFormatsSummary(t *testing.T) {
	server, got := newTopic(t, http.StatusOK)
	svc := serviceFor(server.URL, true)

	report := notifications.CycleReport{
		RunID:    "r1",
		Mode:     "run",
		Channels: 3,
		Probed:   3,
		Live:     2,
		Failures: map[string]int{"probe_timeout": 1, "fetch_error": 2},
		Elapsed:  1500 * time.Millisecond,
	}
	if err := svc.NotifyCycleCompleted(context.Background(), report); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if got.title != "livemon - Cycle Complete" {
		t.Fatalf("unexpected title %q", got.title)
	}
	want := "Run cycle finished in 2s\nLive: 2 of 3 channels (3 probed)\nFailures: fetch_error=2, probe_timeout=1"
	if got.body != want {
		t.Fatalf("expected message %q, got %q", want, got.body)
	}
	if got.tags != "livemon,run,completed" {
		t.Fatalf("unexpected tags %q", got.tags)
	}
	if got.priority != "" {
		t.Fatalf("unexpected priority %q", got.priority)
	}
}

func TestCycleCompletedSkipsQuietSuccess(t *testing.T) {
	server, got := newTopic(t, http.StatusOK)
	svc := serviceFor(server.URL, false)

	if err := svc.NotifyCycleCompleted(context.Background(), notifications.CycleReport{Mode: "probe", Channels: 1, Probed: 1, Live: 1}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.calls != 0 {
		t.Fatalf("quiet success should not publish, got %d calls", got.calls)
	}

	degraded := notifications.CycleReport{Mode: "refresh", Channels: 4, SourcesFailed: 1}
	if err := svc.NotifyCycleCompleted(context.Background(), degraded); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.calls != 1 {
		t.Fatalf("degraded cycle should publish, got %d calls", got.calls)
	}
	if got.title != "livemon - Cycle Complete (with errors)" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if got.body != "Refresh cycle finished in 0s\nChannels: 4\nSources failed: 1" {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestCycleFailedIsHighPriority(t *testing.T) {
	server, got := newTopic(t, http.StatusOK)
	svc := serviceFor(server.URL, false)

	if err := svc.NotifyCycleFailed(context.Background(), "run", errors.New("another livemon cycle holds the lock ")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.body != "Run cycle failed: another livemon cycle holds the lock" {
		t.Fatalf("unexpected body %q", got.body)
	}
	if got.priority != "high" || got.tags != "livemon,error,alert" {
		t.Fatalf("unexpected headers priority=%q tags=%q", got.priority, got.tags)
	}
}

func TestNonSuccessStatusIsError(t *testing.T) {
	server, _ := newTopic(t, http.StatusForbidden)
	svc := serviceFor(server.URL, true)

	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if want := "ntfy returned 403: topic says no"; err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

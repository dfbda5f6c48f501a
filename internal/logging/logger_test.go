package logging_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"livemon/internal/config"
	"livemon/internal/logging"
	"livemon/internal/services"
)

func TestNewFromConfigWritesDailyJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Debug("refresh started", logging.String(logging.FieldEventType, "refresh_started"))

	content, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"event_type":"refresh_started"`) {
		t.Fatalf("expected JSON record in log file, got %q", content)
	}
	if !strings.Contains(string(content), `"level":"debug"`) {
		t.Fatalf("expected lower-case level in log file, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleOutputShowsSubjectAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithPhase(context.Background(), "refresh")
	ctx = services.WithSource(ctx, "http://feeds.example/live/")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "refresh")).Info("source refreshed",
		logging.String(logging.FieldEventType, "source_refreshed"),
		logging.Int("channels", 12345),
		logging.Int64("payload_bytes", 2048),
		logging.String(logging.FieldRunID, "hidden-at-info"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(content)
	for _, want := range []string{
		"INFO [refresh] Refresh · feeds.example/live/ - source refreshed",
		"- Event: source_refreshed",
		"- Channels: 12,345",
		"- Payload: 2.0 kB",
		"+ 1 more field hidden",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in console output:\n%s", want, out)
		}
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "source payload stale", "source_stale",
		logging.String(logging.FieldImpact, "source skipped this cycle"),
	)
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(content)
	for _, want := range []string{`"event_type":"source_stale"`, `"error_hint":"check logs for details"`, `"impact":"source skipped this cycle"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestContextFields(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-7")
	ctx = services.WithChannel(ctx, "rtmp://a/live/x")
	fields := logging.ContextFields(ctx)
	got := map[string]string{}
	for _, f := range fields {
		got[f.Key] = f.Value.String()
	}
	if got[logging.FieldRunID] != "run-7" || got[logging.FieldChannel] != "rtmp://a/live/x" {
		t.Fatalf("unexpected context fields: %v", got)
	}
	if _, ok := got[logging.FieldSource]; ok {
		t.Fatal("source should be absent when not set")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewNop()
	logger.Error("nothing", logging.String("k", "v"))
	if buf.Len() != 0 {
		t.Fatal("nop logger wrote output")
	}
	if logging.NewNop().Enabled(context.Background(), 12) {
		t.Fatal("nop logger should never be enabled")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "livemon-20200101.log")
	current := filepath.Join(dir, "livemon-20200102.log")
	unrelated := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, current, unrelated} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		past := time.Now().AddDate(0, 0, -40)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	logging.CleanupOldLogs(logging.NewNop(), 30, logging.RetentionTarget{
		Dir:     dir,
		Pattern: config.LogFilePattern,
		Exclude: []string{current},
	})

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, keep := range []string{current, unrelated} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("expected %s kept: %v", keep, err)
		}
	}
}

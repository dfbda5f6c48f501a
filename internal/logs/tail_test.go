package logs_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"livemon/internal/logs"
)

const sample = `{"ts":"2026-01-02T03:04:05Z","level":"info","msg":"cycle_start","run_id":"aaaa-1"}
{"ts":"2026-01-02T03:04:06Z","level":"warn","msg":"source fetch failed","run_id":"aaaa-1"}
{"ts":"2026-01-02T03:05:00Z","level":"info","msg":"cycle_start","run_id":"bbbb-2"}
{"ts":"2026-01-02T03:05:01Z","level":"error","msg":"cycle_failed","run_id":"bbbb-2"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "livemon-20260102.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func messages(t *testing.T, lines []string) []string {
	t.Helper()
	var out []string
	for _, line := range lines {
		var e struct {
			Msg string `json:"msg"`
		}
		if err := jsonDecode(line, &e); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, e.Msg)
	}
	return out
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "c"}, result.Lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", result.Offset)
	}
}

func TestTailFilters(t *testing.T) {
	path := writeLog(t, sample)

	byRun, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10, Filter: logs.Filter{RunID: "bbbb"}})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if diff := cmp.Diff([]string{"cycle_start", "cycle_failed"}, messages(t, byRun.Lines)); diff != "" {
		t.Fatalf("run filter mismatch (-want +got):\n%s", diff)
	}

	byLevel, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10, Filter: logs.Filter{MinLevel: slog.LevelWarn, Levelled: true}})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if diff := cmp.Diff([]string{"source fetch failed", "cycle_failed"}, messages(t, byLevel.Lines)); diff != "" {
		t.Fatalf("level filter mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterRejectsPlainTextWhenActive(t *testing.T) {
	if (logs.Filter{RunID: "x"}).Match("not json") {
		t.Fatal("plain text should not match an active filter")
	}
	if !(logs.Filter{}).Match("not json") {
		t.Fatal("empty filter should match anything")
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "missing.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestTailLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "done\npart")
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if diff := cmp.Diff([]string{"done"}, result.Lines); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
	if result.Offset != 5 {
		t.Fatalf("expected offset after complete line, got %d", result.Offset)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan logs.TailResult, 1)
	go func(offset int64) {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		done <- res
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case res := <-done:
		if diff := cmp.Diff([]string{"later"}, res.Lines); diff != "" {
			t.Fatalf("follow lines mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestLatestPicksNewestDay(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"livemon-20260101.log", "livemon-20260103.log", "livemon-20260102.log", "other.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	got, err := logs.Latest(dir, "livemon-*.log")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if filepath.Base(got) != "livemon-20260103.log" {
		t.Fatalf("unexpected latest %s", got)
	}
	if _, err := logs.Latest(t.TempDir(), "livemon-*.log"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

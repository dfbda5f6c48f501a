package history_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"livemon/internal/history"
)

func openStore(t *testing.T, keep int) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"), keep)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openStore(t, 0)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	want := history.Run{
		RunID:         "run-1",
		Command:       "run",
		StartedAt:     started,
		Elapsed:       1500 * time.Millisecond,
		Sources:       2,
		SourcesFailed: 1,
		Platforms:     4,
		Channels:      300,
		Probed:        280,
		Live:          120,
		Failures:      map[string]int{"probe_rejected": 150, "probe_timeout": 10},
	}
	if err := store.Record(ctx, want); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, history.Run{RunID: "run-2", Command: "refresh", StartedAt: started.Add(time.Hour)}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-2" {
		t.Fatalf("expected newest first, got %+v", runs)
	}
	if diff := cmp.Diff(want, runs[1], cmpopts.EquateApproxTime(0)); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}
	if runs[0].Failures != nil {
		t.Fatalf("empty failures should decode as nil, got %v", runs[0].Failures)
	}
}

func TestRecordPrunesToKeepRuns(t *testing.T) {
	store := openStore(t, 3)
	ctx := context.Background()
	for i := range 5 {
		if err := store.Record(ctx, history.Run{RunID: fmt.Sprintf("run-%d", i), Command: "run", StartedAt: time.Now()}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}
	runs, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.RunID)
	}
	if diff := cmp.Diff([]string{"run-4", "run-3", "run-2"}, ids); diff != "" {
		t.Fatalf("retained runs (-want +got):\n%s", diff)
	}
}

func TestObserveFingerprint(t *testing.T) {
	store := openStore(t, 0)
	ctx := context.Background()
	url := "http://feeds.example/live/json.txt"
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	since, err := store.ObserveFingerprint(ctx, url, 0xfeedface, t0)
	if err != nil || !since.Equal(t0) {
		t.Fatalf("first observation = %v, %v", since, err)
	}
	since, err = store.ObserveFingerprint(ctx, url, 0xfeedface, t0.Add(7*time.Hour))
	if err != nil || !since.Equal(t0) {
		t.Fatalf("unchanged fingerprint should keep first_seen, got %v, %v", since, err)
	}
	changed := t0.Add(8 * time.Hour)
	since, err = store.ObserveFingerprint(ctx, url, 0xdeadbeef, changed)
	if err != nil || !since.Equal(changed) {
		t.Fatalf("changed fingerprint should restart the clock, got %v, %v", since, err)
	}
	// Values above MaxInt64 must round-trip.
	big := uint64(1<<63 + 5)
	if _, err := store.ObserveFingerprint(ctx, "http://other/", big, t0); err != nil {
		t.Fatalf("observe large fingerprint: %v", err)
	}
	since, err = store.ObserveFingerprint(ctx, "http://other/", big, changed)
	if err != nil || !since.Equal(t0) {
		t.Fatalf("large fingerprint lost, got %v, %v", since, err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := history.Open(path, 0); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

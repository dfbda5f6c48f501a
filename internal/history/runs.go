package history

import (
	"context"
	"fmt"
	"time"
)

// Run is one recorded cycle.
type Run struct {
	RunID         string         `json:"run_id"`
	Command       string         `json:"command"`
	StartedAt     time.Time      `json:"started_at"`
	Elapsed       time.Duration  `json:"elapsed"`
	Sources       int            `json:"sources"`
	SourcesFailed int            `json:"sources_failed"`
	Platforms     int            `json:"platforms"`
	Channels      int            `json:"channels"`
	Probed        int            `json:"probed"`
	Live          int            `json:"live"`
	Failures      map[string]int `json:"failures,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Record stores run and prunes runs beyond the retention limit.
func (s *Store) Record(ctx context.Context, run Run) error {
	failures := run.Failures
	if failures == nil {
		failures = map[string]int{}
	}
	encoded, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}
	err = s.exec(ctx, `INSERT INTO runs (
		run_id, command, started_at, elapsed_ms, sources, sources_failed,
		platforms, channels, probed, live, failures, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Command, formatTime(run.StartedAt), run.Elapsed.Milliseconds(),
		run.Sources, run.SourcesFailed, run.Platforms, run.Channels,
		run.Probed, run.Live, string(encoded), run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if s.keepRuns > 0 {
		if err := s.exec(ctx,
			"DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)",
			s.keepRuns,
		); err != nil {
			return fmt.Errorf("prune runs: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		run_id, command, started_at, elapsed_ms, sources, sources_failed,
		platforms, channels, probed, live, failures, error
	FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			startedAt string
			elapsedMS int64
			failures  string
		)
		if err := rows.Scan(
			&run.RunID, &run.Command, &startedAt, &elapsedMS, &run.Sources, &run.SourcesFailed,
			&run.Platforms, &run.Channels, &run.Probed, &run.Live, &failures, &run.Error,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(startedAt)
		run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if failures != "" && failures != "{}" {
			if err := json.Unmarshal([]byte(failures), &run.Failures); err != nil {
				return nil, fmt.Errorf("decode failures for run %s: %w", run.RunID, err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

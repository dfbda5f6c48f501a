package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ObserveFingerprint records fp for url at now and returns the time since
// which url has served this same fingerprint. A new or changed fingerprint
// restarts the clock at now.
func (s *Store) ObserveFingerprint(ctx context.Context, url string, fp uint64, now time.Time) (time.Time, error) {
	encoded := formatFingerprint(fp)
	var stored, firstSeen string
	err := s.db.QueryRowContext(ctx,
		"SELECT fingerprint, first_seen FROM fingerprints WHERE url = ?", url,
	).Scan(&stored, &firstSeen)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return time.Time{}, fmt.Errorf("read fingerprint: %w", err)
	case stored == encoded:
		if err := s.exec(ctx, "UPDATE fingerprints SET last_seen = ? WHERE url = ?", formatTime(now), url); err != nil {
			return time.Time{}, fmt.Errorf("touch fingerprint: %w", err)
		}
		if since := parseTime(firstSeen); !since.IsZero() {
			return since, nil
		}
	}

	err = s.exec(ctx, `INSERT INTO fingerprints (url, fingerprint, first_seen, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen`,
		url, encoded, formatTime(now), formatTime(now),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("store fingerprint: %w", err)
	}
	return now, nil
}

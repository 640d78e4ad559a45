package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"
)

// ExpiredReason is recorded on attempts cut short by instance expiry.
const ExpiredReason = "instance expired"

// SweepExpired marks every non-terminal instance whose TTL has elapsed as
// expired and closes any attempt still open on it. A worker finishing such
// an attempt later sees stale state and abandons the result. Returns the
// number of instances expired.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ctx = ensureContext(ctx)
	now = now.UTC()

	candidates, err := s.expiredCandidates(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range candidates {
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(
				ctx,
				`UPDATE workflow_instances SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
				StatusExpired, formatTime(now), id, StatusPending, StatusInProgress,
			)
			if err != nil {
				return fmt.Errorf("expire instance: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return nil
			}
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE stage_records SET finished_at = ?, outcome = ?, message = ? WHERE instance_id = ? AND outcome IS NULL`,
				formatTime(now), OutcomeRetryable, ExpiredReason, id,
			); err != nil {
				return fmt.Errorf("close expired attempts: %w", err)
			}
			expired++
			return nil
		})
		if err != nil {
			return expired, err
		}
	}
	return expired, nil
}

// expiredCandidates selects non-terminal instances past their expiry.
// Timestamps are stored as RFC 3339 strings with variable subsecond
// precision, so the comparison happens here rather than in SQL.
func (s *Store) expiredCandidates(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, expires_at FROM workflow_instances WHERE status IN (?, ?)`,
		StatusPending, StatusInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("select expiry candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, expiresRaw string
		if err := rows.Scan(&id, &expiresRaw); err != nil {
			return nil, err
		}
		expires, err := parseTimeString(expiresRaw)
		if err != nil {
			continue
		}
		if !expires.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// ReclaimStaleAttempts recovers attempts orphaned by a crash or a stalled
// worker. Any attempt still open past the cutoff is closed as a retryable
// failure, and the instance proceeds through the normal transition: retry
// when budget remains, fail otherwise. Returns the ids of the instances
// whose attempts were reclaimed; ones returned to pending need a fresh
// driver, so callers are expected to re-dispatch them.
func (s *Store) ReclaimStaleAttempts(ctx context.Context, cutoff time.Time) ([]string, error) {
	ctx = ensureContext(ctx)

	type staleAttempt struct {
		instanceID string
		stage      Stage
		attempt    int
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT r.instance_id, r.stage, r.attempt, r.started_at
           FROM stage_records r
           JOIN workflow_instances i ON i.id = r.instance_id
          WHERE r.outcome IS NULL AND i.status = ?`,
		StatusInProgress,
	)
	if err != nil {
		return nil, fmt.Errorf("select stale attempts: %w", err)
	}

	var stale []staleAttempt
	for rows.Next() {
		var candidate staleAttempt
		var startedRaw string
		if err := rows.Scan(&candidate.instanceID, &candidate.stage, &candidate.attempt, &startedRaw); err != nil {
			rows.Close()
			return nil, err
		}
		started, err := parseTimeString(startedRaw)
		if err != nil {
			continue
		}
		if started.Before(cutoff) {
			stale = append(stale, candidate)
		}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	var reclaimed []string
	for _, candidate := range stale {
		_, err := s.FinishStage(ctx, candidate.instanceID, StageResult{
			Stage:   candidate.stage,
			Attempt: candidate.attempt,
			Outcome: OutcomeRetryable,
			Message: InterruptedReason,
		})
		if errors.Is(err, ErrStaleState) || errors.Is(err, ErrNotFound) {
			// The original worker finished after all.
			continue
		}
		if err != nil {
			return reclaimed, err
		}
		reclaimed = append(reclaimed, candidate.instanceID)
	}
	return reclaimed, nil
}

// CheckHealth probes the database file and reports diagnostics.
func (s *Store) CheckHealth(ctx context.Context) DatabaseHealth {
	ctx = ensureContext(ctx)
	health := DatabaseHealth{DBPath: s.path}

	if _, err := os.Stat(s.path); err != nil {
		health.Error = fmt.Sprintf("database file: %v", err)
		return health
	}
	health.DatabaseExists = true

	if err := s.db.PingContext(ctx); err != nil {
		health.Error = fmt.Sprintf("ping: %v", err)
		return health
	}
	health.DatabaseReadable = true

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = fmt.Sprintf("integrity check: %v", err)
		return health
	}
	health.IntegrityCheck = integrity == "ok"
	if !health.IntegrityCheck {
		health.Error = fmt.Sprintf("integrity check: %s", integrity)
		return health
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM workflow_instances").Scan(&health.TotalInstances); err != nil {
		health.Error = fmt.Sprintf("count instances: %v", err)
		return health
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM stage_records WHERE outcome IS NULL").Scan(&health.OpenAttempts); err != nil {
		health.Error = fmt.Sprintf("count open attempts: %v", err)
	}
	return health
}

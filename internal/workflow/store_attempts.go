package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// StageResult carries the finalized outcome of a stage attempt into
// FinishStage.
type StageResult struct {
	Stage   Stage
	Attempt int
	Outcome Outcome
	Message string
	// Update is the stage's structured output, stored in the instance
	// context on advance transitions.
	Update json.RawMessage
}

// BeginStage opens a stage attempt. It moves the instance from pending to
// in_progress, bumps the stage's retry count, and inserts an open stage
// record. The update is fenced on the instance still being pending at the
// expected stage; a concurrent writer that moved it first causes
// ErrStaleState, and the caller must abandon the attempt.
func (s *Store) BeginStage(ctx context.Context, id string, stage Stage) (int, error) {
	ctx = ensureContext(ctx)
	var attempt int

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		inst, err := loadInstance(ctx, tx, id)
		if err != nil {
			return err
		}
		if inst.Status != StatusPending || inst.CurrentStage != stage {
			return fmt.Errorf("%w: instance %s is %s at %s", ErrStaleState, id, inst.Status, inst.CurrentStage)
		}

		attempt = inst.RetryCounts[stage] + 1
		if inst.RetryCounts == nil {
			inst.RetryCounts = make(map[Stage]int)
		}
		inst.RetryCounts[stage] = attempt

		now := time.Now().UTC()
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO stage_records (instance_id, stage, attempt, started_at) VALUES (?, ?, ?, ?)`,
			id, stage, attempt, formatTime(now),
		)
		if isUniqueViolation(err) {
			// Another worker already opened this attempt.
			return fmt.Errorf("%w: attempt %d at %s already open", ErrStaleState, attempt, stage)
		}
		if err != nil {
			return fmt.Errorf("insert stage record: %w", err)
		}

		_, retryJSON, _, err := marshalInstanceJSON(inst)
		if err != nil {
			return err
		}
		updated, err := tx.ExecContext(
			ctx,
			`UPDATE workflow_instances
               SET status = ?, retry_counts_json = ?, updated_at = ?
             WHERE id = ? AND status = ? AND current_stage = ?`,
			StatusInProgress, nullableString(retryJSON), formatTime(now),
			id, StatusPending, stage,
		)
		if err != nil {
			return fmt.Errorf("mark in progress: %w", err)
		}
		return requireOneRow(updated, id)
	})
	if err != nil {
		return 0, err
	}
	return attempt, nil
}

// FinishStage closes an open stage attempt and applies the resulting
// transition atomically. The write is fenced on the instance still being
// in_progress at the attempt's stage with the record still open; any
// mismatch yields ErrStaleState and leaves the instance untouched, so a
// late or duplicate finisher cannot clobber newer state.
func (s *Store) FinishStage(ctx context.Context, id string, result StageResult) (Transition, error) {
	ctx = ensureContext(ctx)
	var transition Transition

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		inst, err := loadInstance(ctx, tx, id)
		if err != nil {
			return err
		}
		if inst.Status != StatusInProgress || inst.CurrentStage != result.Stage {
			return fmt.Errorf("%w: instance %s is %s at %s", ErrStaleState, id, inst.Status, inst.CurrentStage)
		}

		now := time.Now().UTC()
		closed, err := tx.ExecContext(
			ctx,
			`UPDATE stage_records
               SET finished_at = ?, outcome = ?, message = ?
             WHERE instance_id = ? AND stage = ? AND attempt = ? AND outcome IS NULL`,
			formatTime(now), result.Outcome, nullableString(result.Message),
			id, result.Stage, result.Attempt,
		)
		if err != nil {
			return fmt.Errorf("close stage record: %w", err)
		}
		if n, _ := closed.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: attempt %d at %s is not open", ErrStaleState, result.Attempt, result.Stage)
		}

		transition, err = Next(result.Stage, result.Outcome, result.Attempt, s.policy.MaxAttempts(result.Stage))
		if err != nil {
			return err
		}

		switch transition.Kind {
		case TransitionAdvance:
			if len(result.Update) > 0 {
				if inst.Context == nil {
					inst.Context = make(map[Stage]json.RawMessage)
				}
				inst.Context[result.Stage] = result.Update
			}
			inst.CurrentStage = transition.To
			inst.ProgressPercent = ProgressPercent(transition.To)
			if transition.To == StageCompleted {
				inst.Status = StatusCompleted
			} else {
				inst.Status = StatusPending
			}
		case TransitionRetry:
			inst.Status = StatusPending
		case TransitionTerminate:
			inst.Status = StatusFailed
			inst.Errors = append(inst.Errors, FailureRecord{
				Stage:      result.Stage,
				Attempt:    result.Attempt,
				Reason:     result.Message,
				OccurredAt: now,
			})
		}

		contextJSON, _, errorsJSON, err := marshalInstanceJSON(inst)
		if err != nil {
			return err
		}
		updated, err := tx.ExecContext(
			ctx,
			`UPDATE workflow_instances
               SET current_stage = ?, status = ?, progress_percent = ?,
                   context_json = ?, errors_json = ?, updated_at = ?
             WHERE id = ? AND status = ? AND current_stage = ?`,
			inst.CurrentStage, inst.Status, inst.ProgressPercent,
			nullableString(contextJSON), nullableString(errorsJSON), formatTime(now),
			id, StatusInProgress, result.Stage,
		)
		if err != nil {
			return fmt.Errorf("apply transition: %w", err)
		}
		return requireOneRow(updated, id)
	})
	if err != nil {
		return Transition{}, err
	}
	return transition, nil
}

// Terminate fails an instance at a stage boundary, recording the given
// reason. It is used for cancellation and for retry exhaustion detected
// outside a live attempt. The write is fenced on the expected current stage
// and a non-terminal status.
func (s *Store) Terminate(ctx context.Context, id string, expectedStage Stage, reason string) error {
	ctx = ensureContext(ctx)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		inst, err := loadInstance(ctx, tx, id)
		if err != nil {
			return err
		}
		if inst.Status.IsTerminal() || inst.CurrentStage != expectedStage {
			return fmt.Errorf("%w: instance %s is %s at %s", ErrStaleState, id, inst.Status, inst.CurrentStage)
		}

		now := time.Now().UTC()
		inst.Errors = append(inst.Errors, FailureRecord{
			Stage:      expectedStage,
			Attempt:    inst.RetryCounts[expectedStage],
			Reason:     reason,
			OccurredAt: now,
		})
		_, _, errorsJSON, err := marshalInstanceJSON(inst)
		if err != nil {
			return err
		}

		updated, err := tx.ExecContext(
			ctx,
			`UPDATE workflow_instances
               SET status = ?, errors_json = ?, updated_at = ?
             WHERE id = ? AND current_stage = ? AND status IN (?, ?)`,
			StatusFailed, nullableString(errorsJSON), formatTime(now),
			id, expectedStage, StatusPending, StatusInProgress,
		)
		if err != nil {
			return fmt.Errorf("terminate instance: %w", err)
		}
		return requireOneRow(updated, id)
	})
}

// RequestCancel flags an instance for cancellation. The flag takes effect at
// the next stage boundary; the in-flight attempt is allowed to finish.
func (s *Store) RequestCancel(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		inst, err := loadInstance(ctx, tx, id)
		if err != nil {
			return err
		}
		if inst.Status.IsTerminal() {
			return fmt.Errorf("%w: instance %s is already %s", ErrStaleState, id, inst.Status)
		}
		updated, err := tx.ExecContext(
			ctx,
			`UPDATE workflow_instances SET cancel_requested = 1, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
			formatTime(time.Now().UTC()), id, StatusPending, StatusInProgress,
		)
		if err != nil {
			return fmt.Errorf("request cancel: %w", err)
		}
		return requireOneRow(updated, id)
	})
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: instance %s changed concurrently", ErrStaleState, id)
	}
	return nil
}

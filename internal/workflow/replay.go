package workflow

import "fmt"

// Replay folds a stage record history through the transition table and
// returns the stage and status the instance must be in afterwards. It is the
// consistency check behind the stored current stage: for any valid history the
// replayed stage equals the persisted one.
func Replay(records []StageRecord, policy Policy) (Stage, Status, error) {
	current := StageFormSubmitted
	status := StatusPending

	for idx, rec := range records {
		if status.IsTerminal() {
			return "", "", fmt.Errorf("record %d: attempt at %q after terminal status %q", idx, rec.Stage, status)
		}
		if rec.Stage != current {
			return "", "", fmt.Errorf("record %d: attempt at %q while current stage is %q", idx, rec.Stage, current)
		}
		if rec.Open() {
			if idx != len(records)-1 {
				return "", "", fmt.Errorf("record %d: open attempt is not the last record", idx)
			}
			return current, StatusInProgress, nil
		}

		transition, err := Next(rec.Stage, rec.Outcome, rec.Attempt, policy.MaxAttempts(rec.Stage))
		if err != nil {
			return "", "", fmt.Errorf("record %d: %w", idx, err)
		}
		switch transition.Kind {
		case TransitionAdvance:
			current = transition.To
			if current == StageCompleted {
				status = StatusCompleted
			}
		case TransitionRetry:
			// Same stage, next attempt.
		case TransitionTerminate:
			status = StatusFailed
		}
	}

	return current, status, nil
}

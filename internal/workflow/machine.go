package workflow

import (
	"fmt"
	"time"

	"caseflow/internal/config"
)

// TransitionKind classifies the state machine's response to a stage outcome.
type TransitionKind string

const (
	TransitionAdvance   TransitionKind = "advance"
	TransitionRetry     TransitionKind = "retry"
	TransitionTerminate TransitionKind = "terminate"
)

// Transition describes the next move for an instance after a stage attempt.
type Transition struct {
	Kind TransitionKind
	// To is the destination stage for advance transitions.
	To Stage
}

// Policy carries the configurable retry and backoff parameters.
type Policy struct {
	defaultAttempts int
	overrides       map[Stage]int
	backoffBase     time.Duration
	backoffCap      time.Duration
}

// NewPolicy builds a Policy from configuration.
func NewPolicy(cfg *config.Config) Policy {
	policy := Policy{
		defaultAttempts: cfg.Workflow.MaxAttempts,
		backoffBase:     time.Duration(cfg.Workflow.BackoffBaseSeconds) * time.Second,
		backoffCap:      time.Duration(cfg.Workflow.BackoffCapSeconds) * time.Second,
	}
	if len(cfg.Workflow.StageAttemptOverrides) > 0 {
		policy.overrides = make(map[Stage]int, len(cfg.Workflow.StageAttemptOverrides))
		for name, attempts := range cfg.Workflow.StageAttemptOverrides {
			if stage, ok := ParseStage(name); ok {
				policy.overrides[stage] = attempts
			}
		}
	}
	return policy
}

// MaxAttempts returns the retry budget for a stage.
func (p Policy) MaxAttempts(stage Stage) int {
	if attempts, ok := p.overrides[stage]; ok {
		return attempts
	}
	if p.defaultAttempts > 0 {
		return p.defaultAttempts
	}
	return 1
}

// Backoff returns the delay before re-attempting a stage after a retryable
// failure: base * 2^(attempt-1), capped.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.backoffBase
	if base <= 0 {
		base = 2 * time.Second
	}
	cap := p.backoffCap
	if cap < base {
		cap = base
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}

// StageIndex returns the position of a stage in the pipeline. StageCompleted
// maps past the last executable stage.
func StageIndex(stage Stage) (int, bool) {
	for idx, s := range pipeline {
		if s == stage {
			return idx, true
		}
	}
	if stage == StageCompleted {
		return len(pipeline), true
	}
	return 0, false
}

// NextStage returns the stage following the given one in pipeline order.
func NextStage(stage Stage) (Stage, bool) {
	idx, ok := StageIndex(stage)
	if !ok || stage == StageCompleted {
		return "", false
	}
	if idx == len(pipeline)-1 {
		return StageCompleted, true
	}
	return pipeline[idx+1], true
}

// ProgressPercent maps a stage to its completion percentage, rounded down.
func ProgressPercent(stage Stage) int {
	idx, ok := StageIndex(stage)
	if !ok {
		return 0
	}
	return idx * 100 / len(pipeline)
}

// Next computes the transition for a stage attempt. attempt is the 1-based
// number of attempts made at the stage so far, including this one. The
// function is pure: given the same inputs it always returns the same
// transition.
func Next(stage Stage, outcome Outcome, attempt, maxAttempts int) (Transition, error) {
	if _, ok := StageIndex(stage); !ok || stage == StageCompleted {
		return Transition{}, fmt.Errorf("no transition from stage %q", stage)
	}
	switch outcome {
	case OutcomeSuccess:
		to, _ := NextStage(stage)
		return Transition{Kind: TransitionAdvance, To: to}, nil
	case OutcomeRetryable:
		if attempt < maxAttempts {
			return Transition{Kind: TransitionRetry}, nil
		}
		return Transition{Kind: TransitionTerminate}, nil
	case OutcomeFatal:
		return Transition{Kind: TransitionTerminate}, nil
	default:
		return Transition{}, fmt.Errorf("unknown outcome %q", outcome)
	}
}

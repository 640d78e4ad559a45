package stage

import (
	"encoding/json"

	"caseflow/internal/services"
	"caseflow/internal/workflow"
)

// Result is the finalized outcome of one stage attempt.
type Result struct {
	Outcome workflow.Outcome
	Message string
	// Update is the stage's structured output, persisted in the instance
	// context when the attempt advances the workflow.
	Update json.RawMessage
}

// Success builds an advancing result carrying the stage's output.
func Success(update json.RawMessage) Result {
	return Result{Outcome: workflow.OutcomeSuccess, Update: update}
}

// Retryable builds a result for a transient failure worth retrying.
func Retryable(message string) Result {
	return Result{Outcome: workflow.OutcomeRetryable, Message: message}
}

// Fatal builds a result for a failure no retry can fix.
func Fatal(message string) Result {
	return Result{Outcome: workflow.OutcomeFatal, Message: message}
}

// Failure classifies err through the service error markers: validation and
// configuration errors are fatal, everything else is retryable.
func Failure(err error) Result {
	if err == nil {
		return Success(nil)
	}
	if services.IsFatal(err) {
		return Fatal(err.Error())
	}
	return Retryable(err.Error())
}

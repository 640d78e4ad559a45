package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"caseflow/internal/services"
	"caseflow/internal/workflow"
)

// Executor describes the contract the orchestrator needs from each stage.
// Execute must be side-effect safe to abandon: when the surrounding
// compare-and-update write loses, the result is discarded and the attempt
// may run again elsewhere.
type Executor interface {
	Execute(context.Context, Request) Result
	HealthCheck(context.Context) Health
}

// Request carries everything a stage needs for one attempt.
type Request struct {
	InstanceID    string
	ApplicationID string
	Stage         workflow.Stage
	Attempt       int

	// Context holds the accumulated outputs of earlier stages.
	Context map[workflow.Stage]json.RawMessage
}

// Input returns the stored output of an earlier stage, decoded into out.
// A missing entry is a validation error: the pipeline order guarantees the
// producing stage ran first, so absence means corrupted state, not a race.
func (r Request) Input(stage workflow.Stage, out any) error {
	raw, ok := r.Context[stage]
	if !ok {
		return services.Wrap(
			services.ErrValidation, string(r.Stage), "read stage input",
			fmt.Sprintf("missing %s output in workflow context", stage), nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return services.Wrap(
			services.ErrValidation, string(r.Stage), "decode stage input",
			fmt.Sprintf("corrupted %s output in workflow context", stage), err)
	}
	return nil
}

// ExecutorSet maps each executable pipeline stage to its executor.
type ExecutorSet map[workflow.Stage]Executor

// Validate confirms every pipeline stage has an executor registered.
func (s ExecutorSet) Validate() error {
	for _, st := range workflow.Stages() {
		if _, ok := s[st]; !ok {
			return fmt.Errorf("no executor registered for stage %s", st)
		}
	}
	return nil
}

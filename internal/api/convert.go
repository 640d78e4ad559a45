package api

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"caseflow/internal/stage"
	"caseflow/internal/workflow"
)

var titleCaser = cases.Title(language.English)

// StageLabel humanizes a stage name for display: "scanning_documents"
// becomes "Scanning Documents".
func StageLabel(s workflow.Stage) string {
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

// FromInstance converts an instance snapshot into its transport view.
// defaultStageSeconds seeds the remaining-time estimate before any stage has
// finished successfully.
func FromInstance(inst *workflow.Instance, defaultStageSeconds int) InstanceView {
	if inst == nil {
		return InstanceView{}
	}

	view := InstanceView{
		ID:                inst.ID,
		ApplicationID:     inst.ApplicationID,
		Status:            string(inst.Status),
		CurrentStage:      string(inst.CurrentStage),
		CurrentStageLabel: StageLabel(inst.CurrentStage),
		ProgressPercent:   inst.ProgressPercent,
		CancelRequested:   inst.CancelRequested,
		CreatedAt:         formatAPITime(inst.CreatedAt),
		UpdatedAt:         formatAPITime(inst.UpdatedAt),
		ExpiresAt:         formatAPITime(inst.ExpiresAt),
	}

	for _, rec := range inst.History {
		step := StepView{
			Stage:           string(rec.Stage),
			Label:           StageLabel(rec.Stage),
			Attempt:         rec.Attempt,
			Outcome:         string(rec.Outcome),
			Message:         rec.Message,
			StartedAt:       formatAPITime(rec.StartedAt),
			DurationSeconds: rec.Duration().Seconds(),
		}
		if rec.FinishedAt != nil {
			step.FinishedAt = formatAPITime(*rec.FinishedAt)
		}
		view.Steps = append(view.Steps, step)
	}

	for _, failure := range inst.Errors {
		view.Errors = append(view.Errors, FailureView{
			Stage:      string(failure.Stage),
			Attempt:    failure.Attempt,
			Reason:     failure.Reason,
			OccurredAt: formatAPITime(failure.OccurredAt),
		})
	}

	if len(inst.Context) > 0 {
		view.Outputs = make(map[string]json.RawMessage, len(inst.Context))
		for s, raw := range inst.Context {
			view.Outputs[string(s)] = raw
		}
	}

	view.EstimatedSecondsRemaining = estimateRemaining(inst, defaultStageSeconds)
	return view
}

// estimateRemaining projects the time left from the mean duration of
// successful attempts so far. Terminal instances report zero; before any
// stage has succeeded the configured default per-stage duration applies.
func estimateRemaining(inst *workflow.Instance, defaultStageSeconds int) int64 {
	if inst.Status.IsTerminal() {
		return 0
	}
	idx, ok := workflow.StageIndex(inst.CurrentStage)
	if !ok {
		return 0
	}
	remaining := len(workflow.Stages()) - idx
	if remaining <= 0 {
		return 0
	}

	perStage := time.Duration(defaultStageSeconds) * time.Second
	var total time.Duration
	var succeeded int
	for _, rec := range inst.History {
		if rec.Outcome == workflow.OutcomeSuccess {
			total += rec.Duration()
			succeeded++
		}
	}
	if succeeded > 0 {
		perStage = total / time.Duration(succeeded)
	}
	return int64((perStage * time.Duration(remaining)).Seconds())
}

// StageHealthSlice converts health checks preserving pipeline order.
func StageHealthSlice(checks []stage.Health) []StageHealthView {
	if len(checks) == 0 {
		return nil
	}
	views := make([]StageHealthView, len(checks))
	for i, check := range checks {
		views[i] = StageHealthView{
			Name:   check.Name,
			Ready:  check.Ready,
			Detail: check.Detail,
		}
	}
	return views
}

// FromDatabaseHealth converts database diagnostics into their transport view.
func FromDatabaseHealth(health workflow.DatabaseHealth) *DatabaseHealthView {
	return &DatabaseHealthView{
		Path:           health.DBPath,
		Exists:         health.DatabaseExists,
		Readable:       health.DatabaseReadable,
		IntegrityOK:    health.IntegrityCheck,
		TotalInstances: health.TotalInstances,
		OpenAttempts:   health.OpenAttempts,
		Error:          health.Error,
	}
}

func formatAPITime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

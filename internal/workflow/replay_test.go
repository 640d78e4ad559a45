package workflow_test

import (
	"testing"
	"time"

	"caseflow/internal/config"
	"caseflow/internal/workflow"
)

func testPolicy(t *testing.T) workflow.Policy {
	t.Helper()
	cfg := config.Default()
	cfg.Workflow.MaxAttempts = 3
	return workflow.NewPolicy(&cfg)
}

func closedRecord(stage workflow.Stage, attempt int, outcome workflow.Outcome) workflow.StageRecord {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(time.Second)
	return workflow.StageRecord{
		Stage:      stage,
		Attempt:    attempt,
		StartedAt:  started,
		FinishedAt: &finished,
		Outcome:    outcome,
	}
}

func TestReplayHappyPath(t *testing.T) {
	var records []workflow.StageRecord
	for _, stage := range workflow.Stages() {
		records = append(records, closedRecord(stage, 1, workflow.OutcomeSuccess))
	}

	stage, status, err := workflow.Replay(records, testPolicy(t))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if stage != workflow.StageCompleted || status != workflow.StatusCompleted {
		t.Fatalf("replayed to %s/%s, want completed/completed", stage, status)
	}
}

func TestReplayRetriesThenFailure(t *testing.T) {
	records := []workflow.StageRecord{
		closedRecord(workflow.StageFormSubmitted, 1, workflow.OutcomeSuccess),
		closedRecord(workflow.StageDocumentsUploaded, 1, workflow.OutcomeRetryable),
		closedRecord(workflow.StageDocumentsUploaded, 2, workflow.OutcomeRetryable),
		closedRecord(workflow.StageDocumentsUploaded, 3, workflow.OutcomeRetryable),
	}

	stage, status, err := workflow.Replay(records, testPolicy(t))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if stage != workflow.StageDocumentsUploaded || status != workflow.StatusFailed {
		t.Fatalf("replayed to %s/%s, want documents_uploaded/failed", stage, status)
	}
}

func TestReplayOpenRecordMeansInProgress(t *testing.T) {
	records := []workflow.StageRecord{
		closedRecord(workflow.StageFormSubmitted, 1, workflow.OutcomeSuccess),
		{
			Stage:     workflow.StageDocumentsUploaded,
			Attempt:   1,
			StartedAt: time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC),
		},
	}

	stage, status, err := workflow.Replay(records, testPolicy(t))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if stage != workflow.StageDocumentsUploaded || status != workflow.StatusInProgress {
		t.Fatalf("replayed to %s/%s, want documents_uploaded/in_progress", stage, status)
	}
}

func TestReplayRejectsMalformedHistories(t *testing.T) {
	tests := []struct {
		name    string
		records []workflow.StageRecord
	}{
		{
			name: "attempt at wrong stage",
			records: []workflow.StageRecord{
				closedRecord(workflow.StageDocumentsUploaded, 1, workflow.OutcomeSuccess),
			},
		},
		{
			name: "open record not last",
			records: []workflow.StageRecord{
				{Stage: workflow.StageFormSubmitted, Attempt: 1, StartedAt: time.Now()},
				closedRecord(workflow.StageFormSubmitted, 2, workflow.OutcomeSuccess),
			},
		},
		{
			name: "attempt after terminal failure",
			records: []workflow.StageRecord{
				closedRecord(workflow.StageFormSubmitted, 1, workflow.OutcomeFatal),
				closedRecord(workflow.StageFormSubmitted, 2, workflow.OutcomeSuccess),
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := workflow.Replay(tc.records, testPolicy(t)); err == nil {
				t.Fatal("expected replay error")
			}
		})
	}
}

func TestReplayEmptyHistory(t *testing.T) {
	stage, status, err := workflow.Replay(nil, testPolicy(t))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if stage != workflow.StageFormSubmitted || status != workflow.StatusPending {
		t.Fatalf("replayed to %s/%s, want form_submitted/pending", stage, status)
	}
}

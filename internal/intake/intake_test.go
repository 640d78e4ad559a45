package intake_test

import (
	"context"
	"encoding/json"
	"testing"

	"caseflow/internal/intake"
	"caseflow/internal/stage"
	"caseflow/internal/workflow"
)

func request(form string) stage.Request {
	return stage.Request{
		InstanceID:    "inst-1",
		ApplicationID: "app-1",
		Stage:         workflow.StageFormSubmitted,
		Attempt:       1,
		Context: map[workflow.Stage]json.RawMessage{
			workflow.StageFormSubmitted: json.RawMessage(form),
		},
	}
}

func TestExecuteAcceptsValidForm(t *testing.T) {
	executor := intake.New(nil)
	result := executor.Execute(context.Background(), request(
		`{"applicant_name":"  Ada Lovelace ","monthly_income":1850,"dependents":2,"document_refs":["payslip.pdf"," bank.pdf ",""]}`,
	))

	if result.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s: %s", result.Outcome, result.Message)
	}
	var form intake.Form
	if err := json.Unmarshal(result.Update, &form); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if form.ApplicantName != "Ada Lovelace" {
		t.Fatalf("name = %q, want trimmed", form.ApplicantName)
	}
	if len(form.DocumentRefs) != 2 {
		t.Fatalf("refs = %v, want blank entries dropped", form.DocumentRefs)
	}
}

func TestExecuteRejectsBadForms(t *testing.T) {
	tests := []struct {
		name string
		form string
	}{
		{"missing name", `{"monthly_income":1850,"dependents":0,"document_refs":["a.pdf"]}`},
		{"negative income", `{"applicant_name":"Ada","monthly_income":-1,"dependents":0,"document_refs":["a.pdf"]}`},
		{"negative dependents", `{"applicant_name":"Ada","monthly_income":1850,"dependents":-2,"document_refs":["a.pdf"]}`},
		{"no documents", `{"applicant_name":"Ada","monthly_income":1850,"dependents":0,"document_refs":["  "]}`},
		{"malformed payload", `{"applicant_name":`},
	}

	executor := intake.New(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := executor.Execute(context.Background(), request(tc.form))
			if result.Outcome != workflow.OutcomeFatal {
				t.Fatalf("outcome = %s, want fatal (%s)", result.Outcome, result.Message)
			}
		})
	}
}

func TestExecuteMissingContextEntry(t *testing.T) {
	executor := intake.New(nil)
	result := executor.Execute(context.Background(), stage.Request{
		Stage:   workflow.StageFormSubmitted,
		Attempt: 1,
	})
	if result.Outcome != workflow.OutcomeFatal {
		t.Fatalf("outcome = %s, want fatal", result.Outcome)
	}
}

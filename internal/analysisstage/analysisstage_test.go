package analysisstage_test

import (
	"context"
	"encoding/json"
	"testing"

	"caseflow/internal/analysisstage"
	"caseflow/internal/services"
	"caseflow/internal/services/analysis"
	"caseflow/internal/stage"
	"caseflow/internal/workflow"
)

type fakeAnalyzer struct {
	findings analysis.Findings
	err      error
	got      analysis.Input
}

func (f *fakeAnalyzer) Analyze(_ context.Context, input analysis.Input) (analysis.Findings, error) {
	f.got = input
	return f.findings, f.err
}

func (f *fakeAnalyzer) Ready() bool { return true }

func request(t *testing.T) stage.Request {
	t.Helper()
	form, _ := json.Marshal(map[string]any{
		"applicant_name": "Ada",
		"monthly_income": 1850.0,
		"dependents":     1,
	})
	extracted, _ := json.Marshal(map[string]any{"combined_text": "NET PAY 1850.00"})
	return stage.Request{
		InstanceID: "inst-1",
		Stage:      workflow.StageAnalyzingContent,
		Attempt:    1,
		Context: map[workflow.Stage]json.RawMessage{
			workflow.StageFormSubmitted:     form,
			workflow.StageScanningDocuments: extracted,
		},
	}
}

func TestExecutePassesFormAndText(t *testing.T) {
	analyzer := &fakeAnalyzer{findings: analysis.Findings{
		VerifiedMonthlyIncome: 1850,
		IncomeMatchesDeclared: true,
		Confidence:            0.9,
		Summary:               "payslip matches",
	}}
	executor := analysisstage.New(analyzer, nil)

	result := executor.Execute(context.Background(), request(t))
	if result.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s: %s", result.Outcome, result.Message)
	}
	if analyzer.got.ApplicantName != "Ada" || analyzer.got.DeclaredMonthlyIncome != 1850 {
		t.Fatalf("analyzer input = %+v", analyzer.got)
	}
	if analyzer.got.DocumentText != "NET PAY 1850.00" {
		t.Fatalf("document text = %q", analyzer.got.DocumentText)
	}

	var output analysisstage.Output
	if err := json.Unmarshal(result.Update, &output); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if output.Confidence != 0.9 || !output.IncomeMatchesDeclared {
		t.Fatalf("output = %+v", output)
	}
}

func TestExecuteModelOutageRetries(t *testing.T) {
	analyzer := &fakeAnalyzer{
		err: services.Wrap(services.ErrTransient, "analysis", "analyze", "http 429", nil),
	}
	executor := analysisstage.New(analyzer, nil)

	result := executor.Execute(context.Background(), request(t))
	if result.Outcome != workflow.OutcomeRetryable {
		t.Fatalf("outcome = %s, want retryable", result.Outcome)
	}
}

func TestExecuteMissingUpstreamOutputIsFatal(t *testing.T) {
	executor := analysisstage.New(&fakeAnalyzer{}, nil)

	req := request(t)
	delete(req.Context, workflow.StageScanningDocuments)
	result := executor.Execute(context.Background(), req)
	if result.Outcome != workflow.OutcomeFatal {
		t.Fatalf("outcome = %s, want fatal", result.Outcome)
	}
}

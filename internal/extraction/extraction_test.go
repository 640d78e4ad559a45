package extraction_test

import (
	"context"
	"encoding/json"
	"testing"

	"caseflow/internal/extraction"
	"caseflow/internal/services"
	"caseflow/internal/stage"
	"caseflow/internal/workflow"
)

type fakeRecognizer struct {
	texts    map[string]string
	err      error
	checkErr error
}

func (f *fakeRecognizer) Extract(_ context.Context, filename string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[filename], nil
}

func (f *fakeRecognizer) Check(context.Context) error { return f.checkErr }

type fakeFetcher struct{}

func (fakeFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	return []byte("raw " + ref), nil
}

func request(refs ...string) stage.Request {
	docs := make([]map[string]string, 0, len(refs))
	for _, ref := range refs {
		docs = append(docs, map[string]string{"ref": ref})
	}
	ingested, _ := json.Marshal(map[string]any{"documents": docs})
	return stage.Request{
		InstanceID: "inst-1",
		Stage:      workflow.StageScanningDocuments,
		Attempt:    1,
		Context: map[workflow.Stage]json.RawMessage{
			workflow.StageDocumentsUploaded: ingested,
		},
	}
}

func TestExecuteCombinesText(t *testing.T) {
	recognizer := &fakeRecognizer{texts: map[string]string{
		"payslip.pdf": "NET PAY 1850.00",
		"bank.pdf":    "BALANCE 320.00",
	}}
	executor := extraction.New(recognizer, fakeFetcher{}, nil)

	result := executor.Execute(context.Background(), request("payslip.pdf", "bank.pdf"))
	if result.Outcome != workflow.OutcomeSuccess {
		t.Fatalf("outcome = %s: %s", result.Outcome, result.Message)
	}

	var output extraction.Output
	if err := json.Unmarshal(result.Update, &output); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if len(output.Documents) != 2 {
		t.Fatalf("documents = %d, want 2", len(output.Documents))
	}
	if output.CombinedText != "NET PAY 1850.00\n\nBALANCE 320.00" {
		t.Fatalf("combined = %q", output.CombinedText)
	}
}

func TestExecuteUnreadableDocumentIsFatal(t *testing.T) {
	recognizer := &fakeRecognizer{
		err: services.Wrap(services.ErrUnreadable, "ocr", "extract", "blurred scan", nil),
	}
	executor := extraction.New(recognizer, fakeFetcher{}, nil)

	result := executor.Execute(context.Background(), request("payslip.pdf"))
	if result.Outcome != workflow.OutcomeFatal {
		t.Fatalf("outcome = %s, want fatal", result.Outcome)
	}
}

func TestExecuteServiceOutageRetries(t *testing.T) {
	recognizer := &fakeRecognizer{
		err: services.Wrap(services.ErrTransient, "ocr", "extract", "http 503", nil),
	}
	executor := extraction.New(recognizer, fakeFetcher{}, nil)

	result := executor.Execute(context.Background(), request("payslip.pdf"))
	if result.Outcome != workflow.OutcomeRetryable {
		t.Fatalf("outcome = %s, want retryable", result.Outcome)
	}
}

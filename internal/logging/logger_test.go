package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"caseflow/internal/logging"
	"caseflow/internal/services"
)

func TestNewJSONLoggerEmitsStandardKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("workflow advanced", logging.String(logging.FieldStage, "scanning_documents"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	if payload["msg"] != "workflow advanced" {
		t.Fatalf("unexpected msg field: %v", payload["msg"])
	}
	if payload["level"] != "info" {
		t.Fatalf("unexpected level field: %v", payload["level"])
	}
	if payload[logging.FieldStage] != "scanning_documents" {
		t.Fatalf("stage attribute missing: %v", payload)
	}
}

func TestConsoleLoggerIncludesComponent(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Options{Level: "debug", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger := logging.NewComponentLogger(base, "orchestrator")
	logger.Debug("stage dispatched", logging.Int(logging.FieldAttempt, 2))

	out := buf.String()
	if !strings.Contains(out, "[orchestrator]") {
		t.Fatalf("expected component tag in output: %q", out)
	}
	if !strings.Contains(out, "attempt=2") {
		t.Fatalf("expected attempt attribute in output: %q", out)
	}
}

func TestWithContextAddsDerivedFields(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := services.WithInstanceID(context.Background(), "wf-123")
	ctx = services.WithStage(ctx, "making_decision")

	logging.WithContext(ctx, base).Info("decision recorded")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if payload[logging.FieldInstanceID] != "wf-123" {
		t.Fatalf("instance id missing: %v", payload)
	}
	if payload[logging.FieldStage] != "making_decision" {
		t.Fatalf("stage missing: %v", payload)
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

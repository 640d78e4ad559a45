package testsupport

import (
	"context"
	"encoding/json"
	"testing"

	"caseflow/internal/config"
	"caseflow/internal/workflow"
)

// MustOpenStore opens a workflow.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *workflow.Store {
	t.Helper()

	store, err := workflow.Open(cfg)
	if err != nil {
		t.Fatalf("workflow.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewInstance creates a workflow instance for tests using the provided store.
func NewInstance(t testing.TB, store *workflow.Store, applicationID string, form json.RawMessage) *workflow.Instance {
	t.Helper()

	if form == nil {
		form = json.RawMessage(`{"applicant_name":"Test Applicant","monthly_income":1200,"dependents":1}`)
	}
	inst, err := store.Create(context.Background(), applicationID, form)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return inst
}

package docstore_test

import (
	"context"
	"errors"
	"testing"

	"caseflow/internal/services"
	"caseflow/internal/services/docstore"
	"caseflow/internal/testsupport"
)

func TestFetch(t *testing.T) {
	dir := t.TempDir()
	ref := testsupport.WriteDocument(t, dir, "payslips/march.pdf", []byte("income data"))

	store, err := docstore.New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data, err := store.Fetch(context.Background(), ref)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "income data" {
		t.Fatalf("data = %q", data)
	}
}

func TestFetchMissingDocument(t *testing.T) {
	store, err := docstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = store.Fetch(context.Background(), "nope.pdf")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFetchRejectsEscapes(t *testing.T) {
	store, err := docstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, ref := range []string{"", "../secret", "/etc/passwd", "a/../../b"} {
		if _, err := store.Fetch(context.Background(), ref); !errors.Is(err, services.ErrValidation) {
			t.Errorf("Fetch(%q) = %v, want ErrValidation", ref, err)
		}
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	store, err := docstore.New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}

	missing, err := docstore.New(dir + "/gone")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := missing.Check(); err == nil {
		t.Fatal("expected check failure for missing root")
	}
}

package services_test

import (
	"errors"
	"strings"
	"testing"

	"caseflow/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection refused")
	err := services.Wrap(services.ErrTransient, "scanning_documents", "extract text", "ocr unavailable", base)

	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause: %v", err)
	}
	if !strings.Contains(err.Error(), "scanning_documents: extract text: ocr unavailable") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient default: %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected generic detail: %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		name   string
		marker error
		fatal  bool
	}{
		{"validation", services.ErrValidation, true},
		{"configuration", services.ErrConfiguration, true},
		{"not_found", services.ErrNotFound, true},
		{"unreadable", services.ErrUnreadable, true},
		{"timeout", services.ErrTimeout, false},
		{"transient", services.ErrTransient, false},
		{"external", services.ErrExternalTool, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := services.Wrap(tc.marker, "stage", "op", "msg", nil)
			if got := services.IsFatal(err); got != tc.fatal {
				t.Fatalf("IsFatal(%v) = %v, want %v", tc.marker, got, tc.fatal)
			}
		})
	}
}

package ocr_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"caseflow/internal/services"
	"caseflow/internal/services/ocr"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestExtract(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/extract" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Filename string `json:"filename"`
			Content  string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Filename != "march.pdf" || req.Content == "" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "NET PAY 1850.00"})
	})

	client, err := ocr.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	text, err := client.Extract(context.Background(), "march.pdf", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "NET PAY 1850.00" {
		t.Fatalf("text = %q", text)
	}
}

func TestExtractErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		marker error
	}{
		{"unprocessable document is unreadable", http.StatusUnprocessableEntity, `{"error":"blurred scan"}`, services.ErrUnreadable},
		{"server error is transient", http.StatusBadGateway, "upstream down", services.ErrTransient},
		{"bad request is validation", http.StatusBadRequest, `{"error":"unsupported format"}`, services.ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			client, err := ocr.NewClient(server.URL)
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			_, err = client.Extract(context.Background(), "doc.pdf", []byte("data"))
			if !errors.Is(err, tc.marker) {
				t.Fatalf("err = %v, want %v", err, tc.marker)
			}
		})
	}
}

func TestExtractEmptyTextIsUnreadable(t *testing.T) {
	server := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "   "})
	})
	client, err := ocr.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Extract(context.Background(), "doc.pdf", []byte("data"))
	if !errors.Is(err, services.ErrUnreadable) {
		t.Fatalf("err = %v, want ErrUnreadable", err)
	}
}

func TestExtractConnectionFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := ocr.NewClient(url)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Extract(context.Background(), "doc.pdf", []byte("data"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := ocr.NewClient("  "); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

// Package ingestion fetches and fingerprints the documents referenced by a
// validated application.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"caseflow/internal/logging"
	"caseflow/internal/stage"
	"caseflow/internal/workflow"
)

// Fetcher retrieves document contents by reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
	Check() error
}

// Document is one ingested document with its integrity fingerprint.
type Document struct {
	Ref       string `json:"ref"`
	SHA256    string `json:"sha256"`
	SizeBytes int    `json:"size_bytes"`
}

// Output is the stage's contribution to the workflow context.
type Output struct {
	Documents []Document `json:"documents"`
}

// Ingestion verifies every referenced document is present and readable.
type Ingestion struct {
	store  Fetcher
	logger *slog.Logger
}

// New constructs the ingestion stage executor.
func New(store Fetcher, logger *slog.Logger) *Ingestion {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ingestion{store: store, logger: logging.NewComponentLogger(logger, "ingestion")}
}

func (g *Ingestion) Execute(ctx context.Context, req stage.Request) stage.Result {
	logger := logging.WithContext(ctx, g.logger)

	var form struct {
		DocumentRefs []string `json:"document_refs"`
	}
	if err := req.Input(workflow.StageFormSubmitted, &form); err != nil {
		return stage.Failure(err)
	}

	output := Output{Documents: make([]Document, 0, len(form.DocumentRefs))}
	for _, ref := range form.DocumentRefs {
		data, err := g.store.Fetch(ctx, ref)
		if err != nil {
			logger.Warn("document fetch failed",
				logging.String("ref", ref),
				logging.Error(err))
			return stage.Failure(err)
		}
		sum := sha256.Sum256(data)
		output.Documents = append(output.Documents, Document{
			Ref:       ref,
			SHA256:    hex.EncodeToString(sum[:]),
			SizeBytes: len(data),
		})
	}

	update, err := json.Marshal(output)
	if err != nil {
		return stage.Failure(fmt.Errorf("encode ingestion output: %w", err))
	}
	logger.Info("documents ingested", logging.Int("count", len(output.Documents)))
	return stage.Success(update)
}

func (g *Ingestion) HealthCheck(context.Context) stage.Health {
	if err := g.store.Check(); err != nil {
		return stage.Unhealthy("ingestion", err.Error())
	}
	return stage.Healthy("ingestion")
}

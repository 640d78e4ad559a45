// Package extraction runs OCR over the ingested documents and assembles the
// recognized text for analysis.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"caseflow/internal/logging"
	"caseflow/internal/stage"
	"caseflow/internal/workflow"
)

// Recognizer extracts text from a document.
type Recognizer interface {
	Extract(ctx context.Context, filename string, content []byte) (string, error)
	Check(ctx context.Context) error
}

// Fetcher retrieves document contents by reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// DocumentText is the recognized text of one document.
type DocumentText struct {
	Ref  string `json:"ref"`
	Text string `json:"text"`
}

// Output is the stage's contribution to the workflow context.
type Output struct {
	Documents    []DocumentText `json:"documents"`
	CombinedText string         `json:"combined_text"`
}

// Extraction converts ingested documents to text via the OCR service.
type Extraction struct {
	recognizer Recognizer
	store      Fetcher
	logger     *slog.Logger
}

// New constructs the extraction stage executor.
func New(recognizer Recognizer, store Fetcher, logger *slog.Logger) *Extraction {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extraction{
		recognizer: recognizer,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "extraction"),
	}
}

func (e *Extraction) Execute(ctx context.Context, req stage.Request) stage.Result {
	logger := logging.WithContext(ctx, e.logger)

	var ingested struct {
		Documents []struct {
			Ref string `json:"ref"`
		} `json:"documents"`
	}
	if err := req.Input(workflow.StageDocumentsUploaded, &ingested); err != nil {
		return stage.Failure(err)
	}

	output := Output{Documents: make([]DocumentText, 0, len(ingested.Documents))}
	var combined strings.Builder
	for _, doc := range ingested.Documents {
		data, err := e.store.Fetch(ctx, doc.Ref)
		if err != nil {
			return stage.Failure(err)
		}
		text, err := e.recognizer.Extract(ctx, doc.Ref, data)
		if err != nil {
			logger.Warn("text extraction failed",
				logging.String("ref", doc.Ref),
				logging.Error(err))
			return stage.Failure(err)
		}
		output.Documents = append(output.Documents, DocumentText{Ref: doc.Ref, Text: text})
		if combined.Len() > 0 {
			combined.WriteString("\n\n")
		}
		combined.WriteString(text)
	}
	output.CombinedText = combined.String()

	update, err := json.Marshal(output)
	if err != nil {
		return stage.Failure(fmt.Errorf("encode extraction output: %w", err))
	}
	logger.Info("text extracted",
		logging.Int("documents", len(output.Documents)),
		logging.Int("characters", len(output.CombinedText)))
	return stage.Success(update)
}

func (e *Extraction) HealthCheck(ctx context.Context) stage.Health {
	if err := e.recognizer.Check(ctx); err != nil {
		return stage.Unhealthy("extraction", err.Error())
	}
	return stage.Healthy("extraction")
}

package main

import (
	"net/http"
	"time"

	"log/slog"

	"caseflow/internal/analysisstage"
	"caseflow/internal/config"
	"caseflow/internal/decision"
	"caseflow/internal/extraction"
	"caseflow/internal/ingestion"
	"caseflow/internal/intake"
	"caseflow/internal/services/analysis"
	"caseflow/internal/services/docstore"
	"caseflow/internal/services/ocr"
	"caseflow/internal/stage"
	"caseflow/internal/workflow"
)

// buildExecutors wires the external service clients into one executor per
// pipeline stage.
func buildExecutors(cfg *config.Config, logger *slog.Logger) (stage.ExecutorSet, error) {
	documents, err := docstore.New(cfg.DocumentsDir)
	if err != nil {
		return nil, err
	}

	recognizer, err := ocr.NewClient(cfg.OCR.BaseURL,
		ocr.WithTimeout(time.Duration(cfg.OCR.TimeoutSeconds)*time.Second))
	if err != nil {
		return nil, err
	}

	analyzerOpts := []analysis.Option{
		analysis.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second}),
	}
	if cfg.LLM.BaseURL != "" {
		analyzerOpts = append(analyzerOpts, analysis.WithBaseURL(cfg.LLM.BaseURL))
	}
	if cfg.LLM.Model != "" {
		analyzerOpts = append(analyzerOpts, analysis.WithModel(cfg.LLM.Model))
	}
	analyzer := analysis.NewClient(cfg.LLM.APIKey, analyzerOpts...)

	return stage.ExecutorSet{
		workflow.StageFormSubmitted:     intake.New(logger),
		workflow.StageDocumentsUploaded: ingestion.New(documents, logger),
		workflow.StageScanningDocuments: extraction.New(recognizer, documents, logger),
		workflow.StageAnalyzingContent:  analysisstage.New(analyzer, logger),
		workflow.StageMakingDecision:    decision.New(cfg, logger),
	}, nil
}

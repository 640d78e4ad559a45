package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"caseflow/internal/analysisstage"
	"caseflow/internal/config"
	"caseflow/internal/daemon"
	"caseflow/internal/decision"
	"caseflow/internal/extraction"
	"caseflow/internal/ingestion"
	"caseflow/internal/intake"
	"caseflow/internal/logging"
	"caseflow/internal/orchestrator"
	"caseflow/internal/services/analysis"
	"caseflow/internal/services/docstore"
	"caseflow/internal/services/ocr"
	"caseflow/internal/stage"
	"caseflow/internal/telemetry"
	"caseflow/internal/workflow"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:          "start",
		Short:        "Run the caseflow daemon in the foreground",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.LogDir, "caseflow.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := workflow.Open(cfg)
	if err != nil {
		logger.Error("open workflow store", logging.Error(err))
		return err
	}
	defer store.Close()

	executors, err := buildExecutors(cfg, logger)
	if err != nil {
		return fmt.Errorf("build stage executors: %w", err)
	}

	metrics := telemetry.New(prometheus.NewRegistry())
	orch, err := orchestrator.New(cfg, store, executors, logger, metrics)
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	d, err := daemon.New(cfg, store, orch, logger, metrics)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("caseflow daemon shutting down")
	return nil
}

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

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

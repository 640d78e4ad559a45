package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"caseflow/internal/config"
	"caseflow/internal/daemon"
	"caseflow/internal/logging"
	"caseflow/internal/orchestrator"
	"caseflow/internal/telemetry"
	"caseflow/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := workflow.Open(cfg)
	if err != nil {
		log.Fatalf("open workflow store: %v", err)
	}

	executors, err := buildExecutors(cfg, logger)
	if err != nil {
		logger.Error("build stage executors", logging.Error(err))
		return
	}

	metrics := telemetry.New(prometheus.NewRegistry())
	orch, err := orchestrator.New(cfg, store, executors, logger, metrics)
	if err != nil {
		logger.Error("create orchestrator", logging.Error(err))
		return
	}

	d, err := daemon.New(cfg, store, orch, logger, metrics)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("caseflowd shutting down")
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"caseflow/internal/config"
	"caseflow/internal/daemon"
	"caseflow/internal/logging"
	"caseflow/internal/orchestrator"
	"caseflow/internal/stage"
	"caseflow/internal/telemetry"
	"caseflow/internal/testsupport"
	"caseflow/internal/workflow"
)

const cliTestToken = "cli-test-token"

type noopExecutor struct {
	name string
}

func (e noopExecutor) Execute(context.Context, stage.Request) stage.Result {
	return stage.Success(json.RawMessage(`{"ok":true}`))
}

func (e noopExecutor) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(e.name)
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *workflow.Store
	daemon     *daemon.Daemon
	addr       string
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	opts = append([]testsupport.ConfigOption{testsupport.WithAPIToken(cliTestToken)}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)

	executors := make(stage.ExecutorSet)
	for _, st := range workflow.Stages() {
		executors[st] = noopExecutor{name: string(st)}
	}

	metrics := telemetry.NewNop()
	orch, err := orchestrator.New(cfg, store, executors, logging.NewNop(), metrics)
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	d, err := daemon.New(cfg, store, orch, logging.NewNop(), metrics)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		orch.Close()
	})

	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg, d.APIAddr())

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		addr:       d.APIAddr(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--addr", env.addr, "--token", cliTestToken, "--config", env.configPath}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, addr string) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\ndocuments_dir = %q\napi_bind = %q\napi_token = %q\n",
		cfg.DataDir,
		cfg.LogDir,
		cfg.DocumentsDir,
		addr,
		cliTestToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeFormFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write form: %v", err)
	}
	return path
}

func waitForInstanceStatus(t *testing.T, env *cliTestEnv, id string, want workflow.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		inst, err := env.store.Snapshot(context.Background(), id)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if inst.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("instance %s never reached %s", id, want)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

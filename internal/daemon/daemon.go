package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"caseflow/internal/api"
	"caseflow/internal/config"
	"caseflow/internal/logging"
	"caseflow/internal/orchestrator"
	"caseflow/internal/telemetry"
	"caseflow/internal/workflow"
)

// Daemon coordinates the background engine and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *workflow.Store
	orch     *orchestrator.Orchestrator
	progress *api.ProgressService
	metrics  *telemetry.Metrics

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	sweeper *sweeper

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *workflow.Store, orch *orchestrator.Orchestrator, logger *slog.Logger, metrics *telemetry.Metrics) (*Daemon, error) {
	if cfg == nil || store == nil || orch == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, orchestrator, and logger")
	}

	lockPath := filepath.Join(cfg.LogDir, "caseflowd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		orch:     orch,
		progress: api.NewProgressService(store, cfg.DefaultStageSeconds),
		metrics:  metrics,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	d.sweeper = newSweeper(cfg, store, metrics, logger, orch.Enqueue)
	return d, nil
}

// Start acquires the daemon lock, resumes interrupted work, and launches the
// sweeper and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another caseflow daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.resumePending(d.ctx); err != nil {
		d.teardownStart()
		return fmt.Errorf("resume pending work: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.teardownStart()
		return fmt.Errorf("start api server: %w", err)
	}
	d.sweeper.start(d.ctx)

	d.running.Store(true)
	d.logger.Info("caseflow daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) teardownStart() {
	_ = d.lock.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
}

// resumePending recovers from an unclean shutdown. The lock guarantees no
// other process holds open attempts, so any open attempt is interrupted and
// every pending instance can be re-dispatched.
func (d *Daemon) resumePending(ctx context.Context) error {
	reclaimed, err := d.store.ReclaimStaleAttempts(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(reclaimed) > 0 {
		d.metrics.ObserveReclaim(len(reclaimed))
		d.logger.Info("reclaimed interrupted attempts", logging.Int("count", len(reclaimed)))
	}

	pending, err := d.store.List(ctx, workflow.StatusPending)
	if err != nil {
		return err
	}
	for _, inst := range pending {
		if err := d.orch.Enqueue(ctx, inst.ID); err != nil {
			return fmt.Errorf("enqueue %s: %w", inst.ID, err)
		}
	}
	if len(pending) > 0 {
		d.logger.Info("resumed pending instances", logging.Int("count", len(pending)))
	}
	return nil
}

// APIAddr returns the listen address of the HTTP API, or an empty string
// when the server is not running.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.sweeper.stop()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("caseflow daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.orch.Close()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Submit creates a workflow instance for an application and dispatches its
// first stage.
func (d *Daemon) Submit(ctx context.Context, applicationID string, form json.RawMessage) (*workflow.Instance, error) {
	inst, err := d.store.Create(ctx, applicationID, form)
	if err != nil {
		return nil, err
	}
	if err := d.orch.Enqueue(ctx, inst.ID); err != nil {
		return nil, fmt.Errorf("dispatch instance %s: %w", inst.ID, err)
	}
	d.logger.Info("application submitted",
		logging.String("instance", inst.ID),
		logging.String("application", applicationID))
	return inst, nil
}

// Cancel flags an instance for cancellation. The identifier may be an
// instance id or an application id.
func (d *Daemon) Cancel(ctx context.Context, id string) (*workflow.Instance, error) {
	inst, err := d.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.store.RequestCancel(ctx, inst.ID); err != nil {
		return nil, err
	}
	// A pending instance has no driver to observe the flag, so dispatch one.
	if err := d.orch.Enqueue(ctx, inst.ID); err != nil {
		d.logger.Warn("failed to dispatch cancel",
			logging.String("instance", inst.ID), logging.Error(err))
	}
	return d.store.Snapshot(ctx, inst.ID)
}

// Progress returns the progress view for an instance or application id.
func (d *Daemon) Progress(ctx context.Context, id string) (*api.InstanceView, error) {
	inst, err := d.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.progress.Report(ctx, inst.ID)
}

// ProgressList returns instance views filtered by optional statuses.
func (d *Daemon) ProgressList(ctx context.Context, statuses ...workflow.Status) ([]api.InstanceView, error) {
	return d.progress.List(ctx, statuses...)
}

// Sweep runs one maintenance pass immediately.
func (d *Daemon) Sweep(ctx context.Context) (expired, reclaimed int, err error) {
	return d.sweeper.runOnce(ctx)
}

// Status returns the current engine status including stage executor health
// and database diagnostics.
func (d *Daemon) Status(ctx context.Context) api.EngineStatus {
	status := api.EngineStatus{
		Running:     d.running.Load(),
		StageHealth: api.StageHealthSlice(d.orch.Health(ctx)),
	}
	if stats, err := d.progress.Stats(ctx); err == nil {
		status.ByStatus = stats
		for _, count := range stats {
			status.Total += count
		}
	}
	health := d.store.CheckHealth(ctx)
	status.Database = api.FromDatabaseHealth(health)
	return status
}

func (d *Daemon) resolve(ctx context.Context, id string) (*workflow.Instance, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty identifier", workflow.ErrNotFound)
	}
	inst, err := d.store.Snapshot(ctx, trimmed)
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, workflow.ErrNotFound) {
		return nil, err
	}
	return d.store.FindByApplication(ctx, trimmed)
}

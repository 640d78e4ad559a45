package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/config"
	"caseflow/internal/logging"
	"caseflow/internal/services"
	"caseflow/internal/stage"
	"caseflow/internal/telemetry"
	"caseflow/internal/workflow"
)

// Orchestrator executes workflow instances against registered stage executors.
type Orchestrator struct {
	store        *workflow.Store
	executors    stage.ExecutorSet
	policy       workflow.Policy
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	pool         *Pool
	stageTimeout time.Duration

	// ctx bounds background drives so Close can stop them at the next
	// stage boundary instead of waiting out entire workflows.
	ctx    context.Context
	cancel context.CancelFunc

	// sleep waits between retry attempts. Tests replace it to skip backoff.
	sleep func(context.Context, time.Duration) error
}

// New builds an orchestrator with a running worker pool.
func New(cfg *config.Config, store *workflow.Store, executors stage.ExecutorSet, logger *slog.Logger, metrics *telemetry.Metrics) (*Orchestrator, error) {
	if err := executors.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:        store,
		executors:    executors,
		policy:       workflow.NewPolicy(cfg),
		logger:       logging.NewComponentLogger(logger, "orchestrator"),
		metrics:      metrics,
		pool:         NewPool(cfg.Workflow.Workers, cfg.Workflow.QueueDepth),
		stageTimeout: time.Duration(cfg.Workflow.StageTimeoutSeconds) * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		sleep:        sleepContext,
	}, nil
}

// Close interrupts background drives and drains the worker pool. In-flight
// attempts are cut short; their open records are reclaimed as interrupted on
// the next start or sweep.
func (o *Orchestrator) Close() {
	o.cancel()
	o.pool.Close()
}

// Enqueue hands an instance to the worker pool for driving. It blocks when
// the queue is full until space frees up or ctx ends. The background drive
// itself runs under the orchestrator's lifetime, not the caller's ctx.
func (o *Orchestrator) Enqueue(ctx context.Context, instanceID string) error {
	err := o.pool.Submit(ctx, func() {
		o.metrics.WorkerStarted()
		defer o.metrics.WorkerFinished()
		driveErr := o.Drive(o.ctx, instanceID)
		if driveErr != nil && !errors.Is(driveErr, context.Canceled) {
			o.logger.Error("drive failed",
				logging.String(logging.FieldInstanceID, instanceID),
				logging.Error(driveErr))
		}
	})
	if err != nil {
		return fmt.Errorf("enqueue instance %s: %w", instanceID, err)
	}
	o.metrics.SetQueuedJobs(o.pool.Depth())
	return nil
}

// Drive advances an instance until it reaches a terminal status, another
// worker takes it over, or ctx ends. Driving a terminal instance is a no-op.
func (o *Orchestrator) Drive(ctx context.Context, instanceID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap, err := o.store.Snapshot(ctx, instanceID)
		if err != nil {
			return err
		}
		if snap.Status.IsTerminal() {
			return nil
		}

		if snap.CancelRequested {
			err := o.store.Terminate(ctx, instanceID, snap.CurrentStage, workflow.CancelledReason)
			if errors.Is(err, workflow.ErrStaleState) {
				continue
			}
			if err != nil {
				return err
			}
			o.instanceLogger(snap).Info("workflow cancelled",
				logging.String(logging.FieldEventType, "workflow_cancelled"))
			return nil
		}

		transition, attempt, err := o.runStage(ctx, snap)
		if errors.Is(err, workflow.ErrStaleState) {
			// Another worker owns the instance now.
			o.metrics.ObserveStaleWrite()
			return nil
		}
		if err != nil {
			return err
		}

		switch transition.Kind {
		case workflow.TransitionAdvance:
			if transition.To == workflow.StageCompleted {
				o.instanceLogger(snap).Info("workflow completed",
					logging.String(logging.FieldEventType, "workflow_completed"))
				return nil
			}
		case workflow.TransitionRetry:
			delay := o.policy.Backoff(attempt)
			if err := o.sleep(ctx, delay); err != nil {
				return err
			}
		case workflow.TransitionTerminate:
			o.instanceLogger(snap).Warn("workflow failed",
				logging.String(logging.FieldStage, string(snap.CurrentStage)),
				logging.String(logging.FieldEventType, "workflow_failed"))
			return nil
		}
	}
}

// runStage executes one attempt at the instance's current stage and applies
// the outcome. The returned attempt number feeds the backoff curve.
func (o *Orchestrator) runStage(ctx context.Context, snap *workflow.Instance) (workflow.Transition, int, error) {
	current := snap.CurrentStage
	executor, ok := o.executors[current]
	if !ok {
		return workflow.Transition{}, 0, fmt.Errorf("no executor for stage %s", current)
	}

	attempt, err := o.store.BeginStage(ctx, snap.ID, current)
	if err != nil {
		return workflow.Transition{}, 0, err
	}

	attemptCtx := ctx
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}

	stageCtx := services.WithInstanceID(attemptCtx, snap.ID)
	stageCtx = services.WithApplicationID(stageCtx, snap.ApplicationID)
	stageCtx = services.WithStage(stageCtx, string(current))
	stageCtx = services.WithRequestID(stageCtx, uuid.NewString())
	stageLogger := logging.WithContext(stageCtx, o.logger)

	stageLogger.Info("stage started",
		logging.Int(logging.FieldAttempt, attempt),
		logging.String(logging.FieldEventType, "stage_start"))

	started := time.Now()
	result := executor.Execute(stageCtx, stage.Request{
		InstanceID:    snap.ID,
		ApplicationID: snap.ApplicationID,
		Stage:         current,
		Attempt:       attempt,
		Context:       snap.Context,
	})
	duration := time.Since(started)
	o.metrics.ObserveAttempt(current, result.Outcome, duration)

	transition, err := o.store.FinishStage(ctx, snap.ID, workflow.StageResult{
		Stage:   current,
		Attempt: attempt,
		Outcome: result.Outcome,
		Message: result.Message,
		Update:  result.Update,
	})
	if err != nil {
		return workflow.Transition{}, attempt, err
	}

	stageLogger.Info("stage finished",
		logging.Int(logging.FieldAttempt, attempt),
		logging.String(logging.FieldOutcome, string(result.Outcome)),
		logging.Duration("duration", duration),
		logging.String(logging.FieldEventType, "stage_finish"))

	return transition, attempt, nil
}

// Health reports executor readiness in pipeline order.
func (o *Orchestrator) Health(ctx context.Context) []stage.Health {
	var checks []stage.Health
	for _, st := range workflow.Stages() {
		executor, ok := o.executors[st]
		if !ok {
			checks = append(checks, stage.Unhealthy(string(st), "no executor registered"))
			continue
		}
		checks = append(checks, executor.HealthCheck(ctx))
	}
	return checks
}

func (o *Orchestrator) instanceLogger(snap *workflow.Instance) *slog.Logger {
	return o.logger.With(
		logging.String(logging.FieldInstanceID, snap.ID),
		logging.String(logging.FieldApplicationID, snap.ApplicationID),
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

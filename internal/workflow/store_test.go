package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"caseflow/internal/testsupport"
	"caseflow/internal/workflow"
)

func TestCreateAndSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	form := json.RawMessage(`{"applicant_name":"Ada","monthly_income":2100,"dependents":2}`)
	inst, err := store.Create(ctx, "app-100", form)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inst.ID == "" {
		t.Fatal("expected generated instance id")
	}

	snap, err := store.Snapshot(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != workflow.StatusPending {
		t.Fatalf("status = %s, want pending", snap.Status)
	}
	if snap.CurrentStage != workflow.StageFormSubmitted {
		t.Fatalf("stage = %s, want form_submitted", snap.CurrentStage)
	}
	if snap.ProgressPercent != 0 {
		t.Fatalf("progress = %d, want 0", snap.ProgressPercent)
	}
	seeded, ok := snap.ContextEntry(workflow.StageFormSubmitted)
	if !ok {
		t.Fatal("expected seeded form context entry")
	}
	var decoded map[string]any
	if err := json.Unmarshal(seeded, &decoded); err != nil {
		t.Fatalf("decode seeded form: %v", err)
	}
	if decoded["applicant_name"] != "Ada" {
		t.Fatalf("seeded form = %v", decoded)
	}

	wantExpiry := snap.CreatedAt.Add(time.Duration(cfg.Workflow.TTLDays) * 24 * time.Hour)
	if diff := snap.ExpiresAt.Sub(wantExpiry); diff < -time.Second || diff > time.Second {
		t.Fatalf("expires_at = %s, want about %s", snap.ExpiresAt, wantExpiry)
	}
}

func TestSnapshotUnknownInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Snapshot(context.Background(), "missing"); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateRejectsActiveDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	inst := testsupport.NewInstance(t, store, "app-dup", nil)

	if _, err := store.Create(ctx, "app-dup", nil); !errors.Is(err, workflow.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}

	// A terminal instance stops blocking new submissions.
	if err := store.Terminate(ctx, inst.ID, workflow.StageFormSubmitted, "withdrawn"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if _, err := store.Create(ctx, "app-dup", nil); err != nil {
		t.Fatalf("Create after terminal: %v", err)
	}
}

func runStage(t *testing.T, store *workflow.Store, id string, stage workflow.Stage, outcome workflow.Outcome, message string, update json.RawMessage) workflow.Transition {
	t.Helper()
	ctx := context.Background()

	attempt, err := store.BeginStage(ctx, id, stage)
	if err != nil {
		t.Fatalf("BeginStage(%s): %v", stage, err)
	}
	transition, err := store.FinishStage(ctx, id, workflow.StageResult{
		Stage:   stage,
		Attempt: attempt,
		Outcome: outcome,
		Message: message,
		Update:  update,
	})
	if err != nil {
		t.Fatalf("FinishStage(%s): %v", stage, err)
	}
	return transition
}

func TestHappyPathToCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	inst := testsupport.NewInstance(t, store, "app-happy", nil)

	for _, stage := range workflow.Stages() {
		update := json.RawMessage(fmt.Sprintf(`{"stage":%q,"ok":true}`, stage))
		runStage(t, store, inst.ID, stage, workflow.OutcomeSuccess, "", update)
	}

	snap, err := store.Snapshot(context.Background(), inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != workflow.StatusCompleted {
		t.Fatalf("status = %s, want completed", snap.Status)
	}
	if snap.CurrentStage != workflow.StageCompleted {
		t.Fatalf("stage = %s, want completed", snap.CurrentStage)
	}
	if snap.ProgressPercent != 100 {
		t.Fatalf("progress = %d, want 100", snap.ProgressPercent)
	}
	if len(snap.Errors) != 0 {
		t.Fatalf("errors = %v, want none", snap.Errors)
	}
	if len(snap.History) != len(workflow.Stages()) {
		t.Fatalf("history length = %d, want %d", len(snap.History), len(workflow.Stages()))
	}
	for _, stage := range workflow.Stages() {
		if _, ok := snap.ContextEntry(stage); !ok {
			t.Fatalf("missing context entry for %s", stage)
		}
	}

	stage, status, err := workflow.Replay(snap.History, store.Policy())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if stage != snap.CurrentStage || status != snap.Status {
		t.Fatalf("replay %s/%s disagrees with stored %s/%s", stage, status, snap.CurrentStage, snap.Status)
	}
}

func TestRetriesExhaustedRecordsSingleFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(3))
	store := testsupport.MustOpenStore(t, cfg)
	inst := testsupport.NewInstance(t, store, "app-retries", nil)

	runStage(t, store, inst.ID, workflow.StageFormSubmitted, workflow.OutcomeSuccess, "", nil)

	for attempt := 1; attempt <= 3; attempt++ {
		transition := runStage(t, store, inst.ID, workflow.StageDocumentsUploaded, workflow.OutcomeRetryable, "upload service unavailable", nil)
		wantKind := workflow.TransitionRetry
		if attempt == 3 {
			wantKind = workflow.TransitionTerminate
		}
		if transition.Kind != wantKind {
			t.Fatalf("attempt %d: kind = %s, want %s", attempt, transition.Kind, wantKind)
		}
	}

	snap, err := store.Snapshot(context.Background(), inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != workflow.StatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
	if snap.CurrentStage != workflow.StageDocumentsUploaded {
		t.Fatalf("stage = %s, want documents_uploaded", snap.CurrentStage)
	}
	if snap.ProgressPercent != 20 {
		t.Fatalf("progress = %d, want 20", snap.ProgressPercent)
	}
	if len(snap.Errors) != 1 {
		t.Fatalf("errors length = %d, want 1: %v", len(snap.Errors), snap.Errors)
	}
	failure := snap.Errors[0]
	if failure.Stage != workflow.StageDocumentsUploaded || failure.Attempt != 3 {
		t.Fatalf("failure = %+v", failure)
	}
	if failure.Reason != "upload service unavailable" {
		t.Fatalf("reason = %q", failure.Reason)
	}
	if snap.RetryCounts[workflow.StageDocumentsUploaded] != 3 {
		t.Fatalf("retry count = %d, want 3", snap.RetryCounts[workflow.StageDocumentsUploaded])
	}

	// Terminal instances accept no further attempts.
	if _, err := store.BeginStage(context.Background(), inst.ID, workflow.StageDocumentsUploaded); !errors.Is(err, workflow.ErrStaleState) {
		t.Fatalf("BeginStage after failure: %v, want ErrStaleState", err)
	}
}

func TestFatalFailureSkipsRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(3))
	store := testsupport.MustOpenStore(t, cfg)
	inst := testsupport.NewInstance(t, store, "app-fatal", nil)

	transition := runStage(t, store, inst.ID, workflow.StageFormSubmitted, workflow.OutcomeFatal, "income field missing", nil)
	if transition.Kind != workflow.TransitionTerminate {
		t.Fatalf("kind = %s, want terminate", transition.Kind)
	}

	snap, err := store.Snapshot(context.Background(), inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != workflow.StatusFailed || len(snap.Errors) != 1 || len(snap.History) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.ProgressPercent != 0 {
		t.Fatalf("progress = %d, want 0 (frozen at failing stage)", snap.ProgressPercent)
	}
}

func TestBeginStageFences(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	inst := testsupport.NewInstance(t, store, "app-fence", nil)
	ctx := context.Background()

	// Wrong stage loses the fence.
	if _, err := store.BeginStage(ctx, inst.ID, workflow.StageMakingDecision); !errors.Is(err, workflow.ErrStaleState) {
		t.Fatalf("wrong stage: %v, want ErrStaleState", err)
	}

	// Second begin while an attempt is open loses too.
	if _, err := store.BeginStage(ctx, inst.ID, workflow.StageFormSubmitted); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}
	if _, err := store.BeginStage(ctx, inst.ID, workflow.StageFormSubmitted); !errors.Is(err, workflow.ErrStaleState) {
		t.Fatalf("double begin: %v, want ErrStaleState", err)
	}
}

func TestFinishStageIsSingleWinner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	inst := testsupport.NewInstance(t, store, "app-winner", nil)
	ctx := context.Background()

	attempt, err := store.BeginStage(ctx, inst.ID, workflow.StageFormSubmitted)
	if err != nil {
		t.Fatalf("BeginStage: %v", err)
	}

	result := workflow.StageResult{
		Stage:   workflow.StageFormSubmitted,
		Attempt: attempt,
		Outcome: workflow.OutcomeSuccess,
		Update:  json.RawMessage(`{"valid":true}`),
	}

	const finishers = 8
	var wg sync.WaitGroup
	errs := make([]error, finishers)
	for i := 0; i < finishers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = store.FinishStage(ctx, inst.ID, result)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, workflow.ErrStaleState):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}

	snap, err := store.Snapshot(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.CurrentStage != workflow.StageDocumentsUploaded || snap.Status != workflow.StatusPending {
		t.Fatalf("instance at %s/%s after race", snap.CurrentStage, snap.Status)
	}
	if len(snap.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(snap.History))
	}
}

func TestStageOverwritesOwnContextEntryOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	form := json.RawMessage(`{"applicant_name":"Ada"}`)
	inst := testsupport.NewInstance(t, store, "app-ctx", form)

	update := json.RawMessage(`{"applicant_name":"Ada","validated":true}`)
	runStage(t, store, inst.ID, workflow.StageFormSubmitted, workflow.OutcomeSuccess, "", update)
	runStage(t, store, inst.ID, workflow.StageDocumentsUploaded, workflow.OutcomeSuccess, "", json.RawMessage(`{"documents":2}`))

	snap, err := store.Snapshot(context.Background(), inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	raw, ok := snap.ContextEntry(workflow.StageFormSubmitted)
	if !ok {
		t.Fatal("missing form_submitted entry")
	}
	if string(raw) != string(update) {
		t.Fatalf("form_submitted entry = %s, want the stage's own update", raw)
	}
	if _, ok := snap.ContextEntry(workflow.StageDocumentsUploaded); !ok {
		t.Fatal("missing documents_uploaded entry")
	}
}

func TestRequestCancelThenBoundaryTerminate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	inst := testsupport.NewInstance(t, store, "app-cancel", nil)
	ctx := context.Background()

	runStage(t, store, inst.ID, workflow.StageFormSubmitted, workflow.OutcomeSuccess, "", nil)

	if err := store.RequestCancel(ctx, inst.ID); err != nil {
		t.Fatalf("RequestCancel: %v", err)
	}
	snap, err := store.Snapshot(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !snap.CancelRequested {
		t.Fatal("cancel_requested not set")
	}

	if err := store.Terminate(ctx, inst.ID, snap.CurrentStage, workflow.CancelledReason); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	snap, err = store.Snapshot(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != workflow.StatusFailed {
		t.Fatalf("status = %s, want failed", snap.Status)
	}
	if len(snap.Errors) != 1 || snap.Errors[0].Reason != workflow.CancelledReason {
		t.Fatalf("errors = %v", snap.Errors)
	}

	if err := store.RequestCancel(ctx, inst.ID); !errors.Is(err, workflow.ErrStaleState) {
		t.Fatalf("cancel of terminal instance: %v, want ErrStaleState", err)
	}
}

func TestSweepExpired(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTTLDays(0))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	inst := testsupport.NewInstance(t, store, "app-expired", nil)
	if _, err := store.BeginStage(ctx, inst.ID, workflow.StageFormSubmitted); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}
	if _, err := store.Create(ctx, "app-other", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	count, err := store.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if count != 2 {
		t.Fatalf("swept = %d, want 2 (both zero-TTL instances)", count)
	}

	snap, err := store.Snapshot(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != workflow.StatusExpired {
		t.Fatalf("status = %s, want expired", snap.Status)
	}
	if rec, open := snap.OpenRecord(); open {
		t.Fatalf("open record survived sweep: %+v", rec)
	}

	// Expiry beats in-flight work: the worker's late result is stale.
	if _, err := store.FinishStage(ctx, inst.ID, workflow.StageResult{
		Stage:   workflow.StageFormSubmitted,
		Attempt: 1,
		Outcome: workflow.OutcomeSuccess,
	}); !errors.Is(err, workflow.ErrStaleState) {
		t.Fatalf("late finish: %v, want ErrStaleState", err)
	}
}

func TestSweepExpiredLeavesUnexpiredAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTTLDays(7))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	inst := testsupport.NewInstance(t, store, "app-alive", nil)

	count, err := store.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if count != 0 {
		t.Fatalf("swept = %d, want 0", count)
	}
	snap, err := store.Snapshot(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != workflow.StatusPending {
		t.Fatalf("status = %s, want pending", snap.Status)
	}
}

func TestReclaimStaleAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(2))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	inst := testsupport.NewInstance(t, store, "app-stale", nil)
	if _, err := store.BeginStage(ctx, inst.ID, workflow.StageFormSubmitted); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}

	// First reclaim consumes the interrupted attempt and re-queues the stage.
	reclaimed, err := store.ReclaimStaleAttempts(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleAttempts: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0] != inst.ID {
		t.Fatalf("reclaimed = %v, want [%s]", reclaimed, inst.ID)
	}
	snap, err := store.Snapshot(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != workflow.StatusPending || snap.CurrentStage != workflow.StageFormSubmitted {
		t.Fatalf("instance at %s/%s after first reclaim", snap.CurrentStage, snap.Status)
	}
	if snap.History[0].Message != workflow.InterruptedReason {
		t.Fatalf("record message = %q", snap.History[0].Message)
	}

	// Second interrupted attempt exhausts the budget.
	if _, err := store.BeginStage(ctx, inst.ID, workflow.StageFormSubmitted); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}
	if _, err := store.ReclaimStaleAttempts(ctx, time.Now().UTC().Add(time.Minute)); err != nil {
		t.Fatalf("ReclaimStaleAttempts: %v", err)
	}
	snap, err = store.Snapshot(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Status != workflow.StatusFailed {
		t.Fatalf("status = %s, want failed after budget exhausted", snap.Status)
	}

	// Attempts still inside the window are untouched.
	other := testsupport.NewInstance(t, store, "app-recent", nil)
	if _, err := store.BeginStage(ctx, other.ID, workflow.StageFormSubmitted); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}
	reclaimed, err = store.ReclaimStaleAttempts(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleAttempts: %v", err)
	}
	if len(reclaimed) != 0 {
		t.Fatalf("reclaimed = %v, want none", reclaimed)
	}
}

func TestFindByApplicationAndList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewInstance(t, store, "app-list-1", nil)
	second := testsupport.NewInstance(t, store, "app-list-2", nil)
	runStage(t, store, second.ID, workflow.StageFormSubmitted, workflow.OutcomeFatal, "bad form", nil)

	found, err := store.FindByApplication(ctx, "app-list-1")
	if err != nil {
		t.Fatalf("FindByApplication: %v", err)
	}
	if found.ID != first.ID {
		t.Fatalf("found %s, want %s", found.ID, first.ID)
	}
	if _, err := store.FindByApplication(ctx, "app-none"); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("list length = %d, want 2", len(all))
	}

	failed, err := store.List(ctx, workflow.StatusFailed)
	if err != nil {
		t.Fatalf("List(failed): %v", err)
	}
	if len(failed) != 1 || failed[0].ID != second.ID {
		t.Fatalf("failed list = %v", failed)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[workflow.StatusPending] != 1 || stats[workflow.StatusFailed] != 1 {
		t.Fatalf("stats = %v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Failed != 1 {
		t.Fatalf("health = %+v", health)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.NewInstance(t, store, "app-health", nil)

	health := store.CheckHealth(context.Background())
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("health = %+v", health)
	}
	if health.TotalInstances != 1 {
		t.Fatalf("total instances = %d, want 1", health.TotalInstances)
	}
	if health.Error != "" {
		t.Fatalf("unexpected error: %s", health.Error)
	}
}

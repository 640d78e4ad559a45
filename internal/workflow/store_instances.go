package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const instanceColumns = "id, application_id, current_stage, status, progress_percent, created_at, updated_at, expires_at, cancel_requested, context_json, retry_counts_json, errors_json"

const recordColumns = "id, stage, attempt, started_at, finished_at, outcome, message"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a new workflow instance for an application. The submitted
// form payload seeds the form_submitted context entry so the intake stage can
// validate it. Returns ErrAlreadyExists when the application already has an
// active instance.
func (s *Store) Create(ctx context.Context, applicationID string, form json.RawMessage) (*Instance, error) {
	applicationID = trimID(applicationID)
	if applicationID == "" {
		return nil, errors.New("application id is required")
	}

	now := time.Now().UTC()
	inst := &Instance{
		ID:              uuid.NewString(),
		ApplicationID:   applicationID,
		CurrentStage:    StageFormSubmitted,
		Status:          StatusPending,
		ProgressPercent: 0,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}
	if len(form) > 0 {
		inst.Context = map[Stage]json.RawMessage{StageFormSubmitted: form}
	}

	contextJSON, retryJSON, errorsJSON, err := marshalInstanceJSON(inst)
	if err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(
			ctx,
			`INSERT INTO workflow_instances (
                id, application_id, current_stage, status, progress_percent,
                created_at, updated_at, expires_at, cancel_requested,
                context_json, retry_counts_json, errors_json
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
			inst.ID,
			inst.ApplicationID,
			inst.CurrentStage,
			inst.Status,
			inst.ProgressPercent,
			formatTime(inst.CreatedAt),
			formatTime(inst.UpdatedAt),
			formatTime(inst.ExpiresAt),
			nullableString(contextJSON),
			nullableString(retryJSON),
			nullableString(errorsJSON),
		)
		if isUniqueViolation(execErr) {
			return fmt.Errorf("%w: application %s", ErrAlreadyExists, applicationID)
		}
		return execErr
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("insert instance: %w", err)
	}
	return inst.Clone(), nil
}

// Snapshot returns a by-value copy of an instance with its full stage history.
// The returned value never aliases store state; concurrent readers each get
// their own copy.
func (s *Store) Snapshot(ctx context.Context, id string) (*Instance, error) {
	ctx = ensureContext(ctx)
	inst, err := loadInstance(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := loadHistory(ctx, s.db, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// FindByApplication returns the most recent instance for an application.
func (s *Store) FindByApplication(ctx context.Context, applicationID string) (*Instance, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+instanceColumns+` FROM workflow_instances WHERE application_id = ? ORDER BY created_at DESC LIMIT 1`,
		trimID(applicationID),
	)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: application %s", ErrNotFound, applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("find by application: %w", err)
	}
	if err := loadHistory(ctx, s.db, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// List returns instance summaries filtered by status set (or all instances
// when no status is provided). Histories are not loaded.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Instance, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + instanceColumns + ` FROM workflow_instances`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// Stats returns a count of instances grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM workflow_instances GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("instance stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates instance state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusInProgress:
			health.InProgress += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		case StatusExpired:
			health.Expired += count
		}
	}
	return health, nil
}

func trimID(id string) string {
	return strings.TrimSpace(id)
}

func loadInstance(ctx context.Context, q querier, id string) (*Instance, error) {
	row := q.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM workflow_instances WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	return inst, nil
}

func loadHistory(ctx context.Context, q querier, inst *Instance) error {
	rows, err := q.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM stage_records WHERE instance_id = ? ORDER BY id`,
		inst.ID,
	)
	if err != nil {
		return fmt.Errorf("load stage records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		inst.History = append(inst.History, rec)
	}
	return rows.Err()
}

func scanInstance(scanner interface{ Scan(dest ...any) error }) (*Instance, error) {
	var (
		id              string
		applicationID   string
		currentStage    string
		statusStr       string
		progressPercent int
		createdRaw      string
		updatedRaw      string
		expiresRaw      string
		cancelRequested int
		contextJSON     sql.NullString
		retryJSON       sql.NullString
		errorsJSON      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&applicationID,
		&currentStage,
		&statusStr,
		&progressPercent,
		&createdRaw,
		&updatedRaw,
		&expiresRaw,
		&cancelRequested,
		&contextJSON,
		&retryJSON,
		&errorsJSON,
	); err != nil {
		return nil, err
	}

	inst := &Instance{
		ID:              id,
		ApplicationID:   applicationID,
		CurrentStage:    Stage(currentStage),
		Status:          Status(statusStr),
		ProgressPercent: progressPercent,
		CancelRequested: cancelRequested != 0,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		inst.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		inst.UpdatedAt = updated
	}
	if expires, err := parseTimeString(expiresRaw); err == nil {
		inst.ExpiresAt = expires
	}
	if err := unmarshalInstanceJSON(inst, contextJSON.String, retryJSON.String, errorsJSON.String); err != nil {
		return nil, err
	}
	return inst, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (StageRecord, error) {
	var (
		id          int64
		stage       string
		attempt     int
		startedRaw  string
		finishedRaw sql.NullString
		outcome     sql.NullString
		message     sql.NullString
	)
	if err := scanner.Scan(&id, &stage, &attempt, &startedRaw, &finishedRaw, &outcome, &message); err != nil {
		return StageRecord{}, err
	}

	rec := StageRecord{
		ID:      id,
		Stage:   Stage(stage),
		Attempt: attempt,
		Outcome: Outcome(outcome.String),
		Message: message.String,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		rec.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			rec.FinishedAt = &finished
		}
	}
	return rec, nil
}

func marshalInstanceJSON(inst *Instance) (contextJSON, retryJSON, errorsJSON string, err error) {
	if len(inst.Context) > 0 {
		data, marshalErr := json.Marshal(inst.Context)
		if marshalErr != nil {
			return "", "", "", fmt.Errorf("marshal context: %w", marshalErr)
		}
		contextJSON = string(data)
	}
	if len(inst.RetryCounts) > 0 {
		data, marshalErr := json.Marshal(inst.RetryCounts)
		if marshalErr != nil {
			return "", "", "", fmt.Errorf("marshal retry counts: %w", marshalErr)
		}
		retryJSON = string(data)
	}
	if len(inst.Errors) > 0 {
		data, marshalErr := json.Marshal(inst.Errors)
		if marshalErr != nil {
			return "", "", "", fmt.Errorf("marshal errors: %w", marshalErr)
		}
		errorsJSON = string(data)
	}
	return contextJSON, retryJSON, errorsJSON, nil
}

func unmarshalInstanceJSON(inst *Instance, contextJSON, retryJSON, errorsJSON string) error {
	if contextJSON != "" {
		if err := json.Unmarshal([]byte(contextJSON), &inst.Context); err != nil {
			return fmt.Errorf("unmarshal context: %w", err)
		}
	}
	if retryJSON != "" {
		if err := json.Unmarshal([]byte(retryJSON), &inst.RetryCounts); err != nil {
			return fmt.Errorf("unmarshal retry counts: %w", err)
		}
	}
	if errorsJSON != "" {
		if err := json.Unmarshal([]byte(errorsJSON), &inst.Errors); err != nil {
			return fmt.Errorf("unmarshal errors: %w", err)
		}
	}
	return nil
}

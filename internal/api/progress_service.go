package api

import (
	"context"

	"caseflow/internal/workflow"
)

// InstanceReader abstracts workflow persistence interactions needed for API
// queries.
type InstanceReader interface {
	Snapshot(ctx context.Context, id string) (*workflow.Instance, error)
	FindByApplication(ctx context.Context, applicationID string) (*workflow.Instance, error)
	List(ctx context.Context, statuses ...workflow.Status) ([]*workflow.Instance, error)
	Stats(ctx context.Context) (map[workflow.Status]int, error)
}

// ProgressService exposes read-only workflow progress as API DTOs.
type ProgressService struct {
	store               InstanceReader
	defaultStageSeconds int
}

// NewProgressService constructs a ProgressService around the provided reader.
func NewProgressService(store InstanceReader, defaultStageSeconds int) *ProgressService {
	if store == nil {
		return nil
	}
	return &ProgressService{store: store, defaultStageSeconds: defaultStageSeconds}
}

// Report returns the progress view for an instance.
func (s *ProgressService) Report(ctx context.Context, id string) (*InstanceView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	inst, err := s.store.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	view := FromInstance(inst, s.defaultStageSeconds)
	return &view, nil
}

// ReportByApplication returns the progress view for an application's most
// recent instance.
func (s *ProgressService) ReportByApplication(ctx context.Context, applicationID string) (*InstanceView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	inst, err := s.store.FindByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	view := FromInstance(inst, s.defaultStageSeconds)
	return &view, nil
}

// List returns instance views filtered by status. Histories are omitted.
func (s *ProgressService) List(ctx context.Context, statuses ...workflow.Status) ([]InstanceView, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	instances, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	views := make([]InstanceView, 0, len(instances))
	for _, inst := range instances {
		views = append(views, FromInstance(inst, s.defaultStageSeconds))
	}
	return views, nil
}

// Stats returns instance counts keyed by status string.
func (s *ProgressService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]int, len(stats))
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged, nil
}

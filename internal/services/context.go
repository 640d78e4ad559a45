package services

import "context"

type contextKey string

const (
	instanceIDKey    contextKey = "instance_id"
	applicationIDKey contextKey = "application_id"
	stageKey         contextKey = "stage"
	requestIDKey     contextKey = "request_id"
)

// WithInstanceID annotates context with the workflow instance identifier.
func WithInstanceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, instanceIDKey, id)
}

// InstanceIDFromContext extracts the workflow instance identifier if present.
func InstanceIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(instanceIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithApplicationID annotates context with the benefit application identifier.
func WithApplicationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, applicationIDKey, id)
}

// ApplicationIDFromContext extracts the application identifier if present.
func ApplicationIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(applicationIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

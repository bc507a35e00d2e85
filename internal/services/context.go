package services

import "context"

type contextKey int

const (
	pullRequestKey contextKey = iota
	stageKey
	requestIDKey
)

func lookup[T comparable](ctx context.Context, key contextKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	if !ok || v == zero {
		return zero, false
	}
	return v, true
}

// WithPullRequest records the submission pull request being ingested.
func WithPullRequest(ctx context.Context, number int) context.Context {
	if number <= 0 {
		return ctx
	}
	return context.WithValue(ctx, pullRequestKey, number)
}

func PullRequestFromContext(ctx context.Context) (int, bool) {
	return lookup[int](ctx, pullRequestKey)
}

// WithStage records the ingestion stage (fetch, validate, place, ...).
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return lookup[string](ctx, stageKey)
}

// WithRequestID records the correlation identifier shared by every log line of one run.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return lookup[string](ctx, requestIDKey)
}

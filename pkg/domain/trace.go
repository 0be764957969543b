package domain

import "context"

// TraceStore is the durable execution trace. PersistRun and PersistNodeRuns are
// called once per run, after it reaches a terminal state.
type TraceStore interface {
	PersistRun(ctx context.Context, run ExecutionRun) error
	PersistNodeRuns(ctx context.Context, runID string, nodeRuns []NodeRun) error
	GetRun(ctx context.Context, runID string) (ExecutionRun, error)
	ListNodeRuns(ctx context.Context, runID string) ([]NodeRun, error)
}

// RunStore holds active and recently finished runs for polling.
type RunStore interface {
	Save(ctx context.Context, run ExecutionRun) error
	Get(ctx context.Context, runID string) (ExecutionRun, error)
	List(ctx context.Context, limit int) ([]ExecutionRun, error)
}

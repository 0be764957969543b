package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

// EventBroadcaster forwards run progress to the live event sink.
type EventBroadcaster struct {
	sink domain.EventSink
}

func NewEventBroadcaster(sink domain.EventSink) *EventBroadcaster {
	return &EventBroadcaster{
		sink: sink,
	}
}

func (b *EventBroadcaster) HandleEvent(ctx context.Context, event ExecutionEvent) error {
	if b.sink == nil {
		return nil
	}

	run := event.GetRun()

	switch e := event.(type) {
	case RunStartedEvent:
		b.sink.RunStart(ctx, run.ExecutionID, run.FlowID)
	case NodeStartedEvent:
		b.sink.NodeStart(ctx, run.ExecutionID, e.NodeID)
	case NodeCompletedEvent:
		b.sink.NodeComplete(ctx, run.ExecutionID, e.NodeRun.NodeID, e.NodeRun.Output)
	case NodeFailedEvent:
		b.sink.NodeError(ctx, run.ExecutionID, e.NodeRun.NodeID, e.NodeRun.Error)
	case RunCompletedEvent:
		b.sink.RunComplete(ctx, run.ExecutionID, run.Result)
	case RunFailedEvent:
		b.sink.RunError(ctx, run.ExecutionID, run.Error)
	}

	return nil
}

// RunStateRecorder keeps the polling view of a run current.
type RunStateRecorder struct {
	store domain.RunStore
}

func NewRunStateRecorder(store domain.RunStore) *RunStateRecorder {
	return &RunStateRecorder{
		store: store,
	}
}

func (r *RunStateRecorder) HandleEvent(ctx context.Context, event ExecutionEvent) error {
	if r.store == nil {
		return nil
	}

	if err := r.store.Save(ctx, event.GetRun()); err != nil {
		return fmt.Errorf("failed to save run snapshot: %w", err)
	}

	return nil
}

type Metrics interface {
	RunStarted(flowID string)
	RunFinished(status domain.RunStatus, duration time.Duration)
	NodeFinished(nodeType domain.NodeType, status domain.NodeRunStatus, duration time.Duration)
}

// MetricsCollector turns lifecycle events into metric observations.
type MetricsCollector struct {
	metrics Metrics
}

func NewMetricsCollector(metrics Metrics) *MetricsCollector {
	return &MetricsCollector{
		metrics: metrics,
	}
}

func (c *MetricsCollector) HandleEvent(ctx context.Context, event ExecutionEvent) error {
	if c.metrics == nil {
		return nil
	}

	switch e := event.(type) {
	case RunStartedEvent:
		c.metrics.RunStarted(e.Run.FlowID)
	case NodeCompletedEvent:
		c.metrics.NodeFinished(e.NodeRun.Type, e.NodeRun.Status, nodeRunDuration(e.NodeRun))
	case NodeFailedEvent:
		c.metrics.NodeFinished(e.NodeRun.Type, e.NodeRun.Status, nodeRunDuration(e.NodeRun))
	case RunCompletedEvent:
		c.metrics.RunFinished(e.Run.Status, runDuration(e.Run))
	case RunFailedEvent:
		c.metrics.RunFinished(e.Run.Status, runDuration(e.Run))
	}

	return nil
}

func nodeRunDuration(nodeRun domain.NodeRun) time.Duration {
	if nodeRun.EndTime == nil {
		return 0
	}
	return nodeRun.EndTime.Sub(nodeRun.StartTime)
}

func runDuration(run domain.ExecutionRun) time.Duration {
	if run.EndTime == nil {
		return 0
	}
	return run.EndTime.Sub(run.StartTime)
}

package executor

import (
	"context"
	"errors"
	"time"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

type ExecutionEventType string

const (
	ExecutionEventTypeRunStarted    ExecutionEventType = "run_started"
	ExecutionEventTypeNodeStarted   ExecutionEventType = "node_started"
	ExecutionEventTypeNodeCompleted ExecutionEventType = "node_completed"
	ExecutionEventTypeNodeFailed    ExecutionEventType = "node_failed"
	ExecutionEventTypeRunCompleted  ExecutionEventType = "run_completed"
	ExecutionEventTypeRunFailed     ExecutionEventType = "run_failed"
)

// ExecutionEvent carries a snapshot of the run at the moment it was emitted.
type ExecutionEvent interface {
	GetEventType() ExecutionEventType
	GetRun() domain.ExecutionRun
}

type RunStartedEvent struct {
	Run       domain.ExecutionRun
	Timestamp time.Time
}

func (RunStartedEvent) GetEventType() ExecutionEventType { return ExecutionEventTypeRunStarted }
func (e RunStartedEvent) GetRun() domain.ExecutionRun    { return e.Run }

type NodeStartedEvent struct {
	Run       domain.ExecutionRun
	NodeID    string
	NodeType  domain.NodeType
	Timestamp time.Time
}

func (NodeStartedEvent) GetEventType() ExecutionEventType { return ExecutionEventTypeNodeStarted }
func (e NodeStartedEvent) GetRun() domain.ExecutionRun    { return e.Run }

type NodeCompletedEvent struct {
	Run     domain.ExecutionRun
	NodeRun domain.NodeRun
}

func (NodeCompletedEvent) GetEventType() ExecutionEventType { return ExecutionEventTypeNodeCompleted }
func (e NodeCompletedEvent) GetRun() domain.ExecutionRun    { return e.Run }

type NodeFailedEvent struct {
	Run     domain.ExecutionRun
	NodeRun domain.NodeRun
}

func (NodeFailedEvent) GetEventType() ExecutionEventType { return ExecutionEventTypeNodeFailed }
func (e NodeFailedEvent) GetRun() domain.ExecutionRun    { return e.Run }

type RunCompletedEvent struct {
	Run domain.ExecutionRun
}

func (RunCompletedEvent) GetEventType() ExecutionEventType { return ExecutionEventTypeRunCompleted }
func (e RunCompletedEvent) GetRun() domain.ExecutionRun    { return e.Run }

type RunFailedEvent struct {
	Run domain.ExecutionRun
}

func (RunFailedEvent) GetEventType() ExecutionEventType { return ExecutionEventTypeRunFailed }
func (e RunFailedEvent) GetRun() domain.ExecutionRun    { return e.Run }

type ExecutionEventHandler interface {
	HandleEvent(ctx context.Context, event ExecutionEvent) error
}

type ExecutionObserver struct {
	handlers []ExecutionEventHandler
}

func NewExecutionObserver() *ExecutionObserver {
	return &ExecutionObserver{
		handlers: []ExecutionEventHandler{},
	}
}

func (o *ExecutionObserver) Subscribe(handler ExecutionEventHandler) {
	o.handlers = append(o.handlers, handler)
}

// Notify delivers the event to every handler, even when an earlier one fails.
func (o *ExecutionObserver) Notify(ctx context.Context, event ExecutionEvent) error {
	var errs []error

	for _, handler := range o.handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

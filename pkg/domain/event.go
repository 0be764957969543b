package domain

import (
	"context"
	"sync"
)

// EventSink receives live run progress. Calls are fire-and-forget: an
// implementation logs its own failures instead of returning them.
type EventSink interface {
	RunStart(ctx context.Context, runID, flowID string)
	NodeStart(ctx context.Context, runID, nodeID string)
	NodeComplete(ctx context.Context, runID, nodeID string, output any)
	NodeError(ctx context.Context, runID, nodeID string, errorMessage string)
	RunComplete(ctx context.Context, runID string, result any)
	RunError(ctx context.Context, runID string, errorMessage string)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, event Event) error
}

type EventOrderContextKey struct{}

type EventOrderContext struct {
	mtx   sync.Mutex
	order int
}

func NewContextWithEventOrder(ctx context.Context) context.Context {
	return context.WithValue(ctx, EventOrderContextKey{}, &EventOrderContext{})
}

func GetEventOrderContext(ctx context.Context) (*EventOrderContext, bool) {
	order, ok := ctx.Value(EventOrderContextKey{}).(*EventOrderContext)
	if !ok {
		return nil, false
	}

	return order, true
}

func (c *EventOrderContext) GetNextOrder() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.order++
	return c.order
}

type Event interface {
	GetType() EventType
	GetRunID() string
}

type OrderedEvent interface {
	Event
	GetEventOrder() int
	SetEventOrder(order int)
}

type EventType string

const (
	RunStarted    EventType = "run_started"
	NodeStarted   EventType = "node_started"
	NodeCompleted EventType = "node_completed"
	NodeFailed    EventType = "node_failed"
	RunCompleted  EventType = "run_completed"
	RunFailed     EventType = "run_failed"
)

type RunStartedEvent struct {
	RunID      string `json:"run_id"`
	FlowID     string `json:"flow_id"`
	Timestamp  int64  `json:"timestamp"`
	EventOrder int    `json:"event_order"`
}

func (e *RunStartedEvent) GetType() EventType      { return RunStarted }
func (e *RunStartedEvent) GetRunID() string        { return e.RunID }
func (e *RunStartedEvent) GetEventOrder() int      { return e.EventOrder }
func (e *RunStartedEvent) SetEventOrder(order int) { e.EventOrder = order }

type NodeStartedEvent struct {
	RunID      string `json:"run_id"`
	NodeID     string `json:"node_id"`
	Timestamp  int64  `json:"timestamp"`
	EventOrder int    `json:"event_order"`
}

func (e *NodeStartedEvent) GetType() EventType      { return NodeStarted }
func (e *NodeStartedEvent) GetRunID() string        { return e.RunID }
func (e *NodeStartedEvent) GetEventOrder() int      { return e.EventOrder }
func (e *NodeStartedEvent) SetEventOrder(order int) { e.EventOrder = order }

type NodeCompletedEvent struct {
	RunID      string `json:"run_id"`
	NodeID     string `json:"node_id"`
	Output     any    `json:"output"`
	Timestamp  int64  `json:"timestamp"`
	EventOrder int    `json:"event_order"`
}

func (e *NodeCompletedEvent) GetType() EventType      { return NodeCompleted }
func (e *NodeCompletedEvent) GetRunID() string        { return e.RunID }
func (e *NodeCompletedEvent) GetEventOrder() int      { return e.EventOrder }
func (e *NodeCompletedEvent) SetEventOrder(order int) { e.EventOrder = order }

type NodeFailedEvent struct {
	RunID      string `json:"run_id"`
	NodeID     string `json:"node_id"`
	Error      string `json:"error"`
	Timestamp  int64  `json:"timestamp"`
	EventOrder int    `json:"event_order"`
}

func (e *NodeFailedEvent) GetType() EventType      { return NodeFailed }
func (e *NodeFailedEvent) GetRunID() string        { return e.RunID }
func (e *NodeFailedEvent) GetEventOrder() int      { return e.EventOrder }
func (e *NodeFailedEvent) SetEventOrder(order int) { e.EventOrder = order }

type RunCompletedEvent struct {
	RunID      string `json:"run_id"`
	Result     any    `json:"result"`
	Timestamp  int64  `json:"timestamp"`
	EventOrder int    `json:"event_order"`
}

func (e *RunCompletedEvent) GetType() EventType      { return RunCompleted }
func (e *RunCompletedEvent) GetRunID() string        { return e.RunID }
func (e *RunCompletedEvent) GetEventOrder() int      { return e.EventOrder }
func (e *RunCompletedEvent) SetEventOrder(order int) { e.EventOrder = order }

type RunFailedEvent struct {
	RunID      string `json:"run_id"`
	Error      string `json:"error"`
	Timestamp  int64  `json:"timestamp"`
	EventOrder int    `json:"event_order"`
}

func (e *RunFailedEvent) GetType() EventType      { return RunFailed }
func (e *RunFailedEvent) GetRunID() string        { return e.RunID }
func (e *RunFailedEvent) GetEventOrder() int      { return e.EventOrder }
func (e *RunFailedEvent) SetEventOrder(order int) { e.EventOrder = order }

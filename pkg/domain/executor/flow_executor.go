package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const tracerName = "github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain/executor"

// FlowExecutor drives one run at a time per call: nodes are dispatched
// strictly in planned order and the first failure ends the run. Separate
// calls share nothing but the read-only registry and may run concurrently.
type FlowExecutor struct {
	registry        *domain.ExecutorRegistry
	traceStore      domain.TraceStore
	artifactManager domain.ArtifactManager
	observer        *ExecutionObserver
	tracer          trace.Tracer
	now             func() time.Time
}

type FlowExecutorDeps struct {
	Registry        *domain.ExecutorRegistry
	EventSink       domain.EventSink
	TraceStore      domain.TraceStore
	RunStore        domain.RunStore
	ArtifactManager domain.ArtifactManager
	Metrics         Metrics
	Clock           func() time.Time
}

func NewFlowExecutor(deps FlowExecutorDeps) *FlowExecutor {
	observer := NewExecutionObserver()

	observer.Subscribe(NewRunStateRecorder(deps.RunStore))
	observer.Subscribe(NewEventBroadcaster(deps.EventSink))
	observer.Subscribe(NewMetricsCollector(deps.Metrics))

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &FlowExecutor{
		registry:        deps.Registry,
		traceStore:      deps.TraceStore,
		artifactManager: deps.ArtifactManager,
		observer:        observer,
		tracer:          otel.Tracer(tracerName),
		now:             clock,
	}
}

type ExecuteParams struct {
	RunID     string
	Flow      domain.FlowDefinition
	Input     any
	StartTime time.Time
}

// Execute runs the flow to a terminal state and returns the final run. The
// run and its node runs are persisted once, after the run has finished.
func (e *FlowExecutor) Execute(ctx context.Context, params ExecuteParams) domain.ExecutionRun {
	runID := params.RunID
	if runID == "" {
		runID = xid.New().String()
	}

	startTime := params.StartTime
	if startTime.IsZero() {
		startTime = e.now()
	}

	ctx = domain.NewContextWithEventOrder(ctx)
	ctx, span := e.tracer.Start(ctx, "flow.run", trace.WithAttributes(
		attribute.String("flow.id", params.Flow.ID),
		attribute.String("run.id", runID),
		attribute.Int("flow.nodes", len(params.Flow.Nodes)),
	))
	defer span.End()

	run := domain.ExecutionRun{
		ExecutionID: runID,
		FlowID:      params.Flow.ID,
		Status:      domain.RunStatusRunning,
		StartTime:   startTime,
		NodeRuns:    []domain.NodeRun{},
	}

	log.Info().
		Str("run_id", runID).
		Str("flow_id", params.Flow.ID).
		Int("nodes", len(params.Flow.Nodes)).
		Msg("Starting flow run")

	e.notify(ctx, RunStartedEvent{Run: run.Clone(), Timestamp: startTime})

	nodesByID := make(map[string]domain.Node, len(params.Flow.Nodes))
	for _, node := range params.Flow.Nodes {
		if _, exists := nodesByID[node.ID]; !exists {
			nodesByID[node.ID] = node
		}
	}

	executionContext := &domain.ExecutionContext{
		ExecutionID: runID,
		FlowID:      params.Flow.ID,
		Results: map[string]any{
			"input": params.Input,
		},
	}

	input := params.Input
	var lastOutput any

	for _, nodeID := range BuildExecutionOrder(params.Flow.Nodes, params.Flow.Edges) {
		nodeRun := e.executeNode(ctx, &run, nodesByID[nodeID], input, executionContext)

		if nodeRun.Status != domain.NodeRunStatusSuccess {
			return e.finish(ctx, span, run, domain.RunStatusFailed, nil, nodeRun.Error)
		}

		executionContext.Results[nodeRun.NodeID] = nodeRun.Output
		input = nodeRun.Output
		lastOutput = nodeRun.Output
	}

	return e.finish(ctx, span, run, domain.RunStatusCompleted, lastOutput, "")
}

func (e *FlowExecutor) executeNode(
	ctx context.Context,
	run *domain.ExecutionRun,
	node domain.Node,
	input any,
	executionContext *domain.ExecutionContext,
) domain.NodeRun {
	ctx, span := e.tracer.Start(ctx, "flow.node", trace.WithAttributes(
		attribute.String("node.id", node.ID),
		attribute.String("node.type", string(node.Type)),
	))
	defer span.End()

	nodeRun := domain.NodeRun{
		ExecutionID: run.ExecutionID,
		NodeID:      node.ID,
		Type:        node.Type,
		Input:       input,
		Status:      domain.NodeRunStatusPending,
		StartTime:   e.now(),
	}

	run.NodeRuns = append(run.NodeRuns, nodeRun)
	index := len(run.NodeRuns) - 1

	e.notify(ctx, NodeStartedEvent{
		Run:       run.Clone(),
		NodeID:    node.ID,
		NodeType:  node.Type,
		Timestamp: nodeRun.StartTime,
	})

	resolved, nodeExecutor, err := e.lookupExecutor(node)
	if err != nil {
		log.Error().
			Err(err).
			Str("run_id", run.ExecutionID).
			Str("node_id", node.ID).
			Msg("Aborting run on configuration error")

		nodeRun = e.completeNodeRun(nodeRun, domain.ExecutionOutput{Error: err.Error()})
		run.NodeRuns[index] = nodeRun

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		e.notify(ctx, NodeFailedEvent{Run: run.Clone(), NodeRun: nodeRun})
		return nodeRun
	}

	nodeRun.Type = resolved.Type
	nodeRun.Status = domain.NodeRunStatusRunning
	run.NodeRuns[index] = nodeRun
	span.SetAttributes(attribute.String("node.resolved_type", string(resolved.Type)))

	log.Debug().
		Str("run_id", run.ExecutionID).
		Str("node_id", node.ID).
		Str("node_type", string(resolved.Type)).
		Msg("Dispatching node")

	output := e.dispatch(ctx, nodeExecutor, domain.ExecutionInput{
		NodeID:   node.ID,
		NodeType: resolved.Type,
		Data:     resolved.Data,
		Input:    input,
		Context:  executionContext,
	})

	nodeRun = e.completeNodeRun(nodeRun, output)
	run.NodeRuns[index] = nodeRun

	if nodeRun.Status == domain.NodeRunStatusError {
		failure := &domain.ExecutorFailure{NodeID: node.ID, Message: nodeRun.Error}

		log.Error().
			Err(failure).
			Str("run_id", run.ExecutionID).
			Str("node_type", string(resolved.Type)).
			Msg("Node execution failed")

		span.RecordError(failure)
		span.SetStatus(codes.Error, nodeRun.Error)

		e.notify(ctx, NodeFailedEvent{Run: run.Clone(), NodeRun: nodeRun})
		return nodeRun
	}

	e.notify(ctx, NodeCompletedEvent{Run: run.Clone(), NodeRun: nodeRun})
	return nodeRun
}

func (e *FlowExecutor) lookupExecutor(node domain.Node) (domain.Node, domain.NodeExecutor, error) {
	resolved, err := domain.ResolveNodeType(node)
	if err != nil {
		return domain.Node{}, nil, err
	}

	nodeExecutor, err := e.registry.Get(resolved.Type)
	if err != nil {
		var configErr *domain.ConfigurationError
		if errors.As(err, &configErr) {
			configErr.NodeID = node.ID
		}
		return domain.Node{}, nil, err
	}

	return resolved, nodeExecutor, nil
}

func (e *FlowExecutor) dispatch(ctx context.Context, nodeExecutor domain.NodeExecutor, input domain.ExecutionInput) (output domain.ExecutionOutput) {
	defer func() {
		if r := recover(); r != nil {
			output = domain.ExecutionOutput{
				Success: false,
				Error:   fmt.Sprintf("node executor panicked: %v", r),
			}
		}
	}()

	return nodeExecutor.Execute(ctx, input)
}

func (e *FlowExecutor) completeNodeRun(nodeRun domain.NodeRun, output domain.ExecutionOutput) domain.NodeRun {
	endTime := e.now()
	nodeRun.EndTime = &endTime

	if output.Success {
		nodeRun.Status = domain.NodeRunStatusSuccess
		nodeRun.Output = output.Output
		return nodeRun
	}

	nodeRun.Status = domain.NodeRunStatusError
	nodeRun.Output = output.Output
	nodeRun.Error = output.Error
	if nodeRun.Error == "" {
		nodeRun.Error = "node execution failed"
	}

	return nodeRun
}

func (e *FlowExecutor) finish(
	ctx context.Context,
	span trace.Span,
	run domain.ExecutionRun,
	status domain.RunStatus,
	result any,
	errorMessage string,
) domain.ExecutionRun {
	endTime := e.now()

	run.Status = status
	run.EndTime = &endTime
	run.Result = result
	run.Error = errorMessage

	if e.artifactManager != nil {
		artifacts, err := e.artifactManager.ListArtifacts(ctx, run.ExecutionID)
		if err != nil {
			log.Warn().Err(err).Str("run_id", run.ExecutionID).Msg("Failed to list run artifacts")
		} else {
			run.Artifacts = artifacts
		}
	}

	e.persist(ctx, run)

	logEvent := log.Info()
	if status == domain.RunStatusFailed {
		span.SetStatus(codes.Error, errorMessage)
		logEvent = log.Warn().Str("error", errorMessage)
		e.notify(ctx, RunFailedEvent{Run: run.Clone()})
	} else {
		span.SetStatus(codes.Ok, "")
		e.notify(ctx, RunCompletedEvent{Run: run.Clone()})
	}

	logEvent.
		Str("run_id", run.ExecutionID).
		Str("status", string(status)).
		Int("node_runs", len(run.NodeRuns)).
		Dur("duration", endTime.Sub(run.StartTime)).
		Msg("Flow run finished")

	return run
}

func (e *FlowExecutor) persist(ctx context.Context, run domain.ExecutionRun) {
	if e.traceStore == nil {
		return
	}

	if err := e.traceStore.PersistRun(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", run.ExecutionID).Msg("Failed to persist run")
		return
	}

	if err := e.traceStore.PersistNodeRuns(ctx, run.ExecutionID, run.NodeRuns); err != nil {
		log.Error().Err(err).Str("run_id", run.ExecutionID).Msg("Failed to persist node runs")
	}
}

func (e *FlowExecutor) notify(ctx context.Context, event ExecutionEvent) {
	if err := e.observer.Notify(ctx, event); err != nil {
		log.Warn().
			Err(err).
			Str("event_type", string(event.GetEventType())).
			Msg("Execution event handler failed")
	}
}

package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

type FlowExecutorService interface {
	RunFlow(ctx context.Context, params RunFlowParams) (string, error)
	ExecuteFlow(ctx context.Context, params RunFlowParams) (domain.ExecutionRun, error)
	GetRun(ctx context.Context, runID string) (domain.ExecutionRun, error)
	ListRuns(ctx context.Context, limit int) ([]domain.ExecutionRun, error)
	DeleteArtifact(ctx context.Context, artifactID string) error
	NodeTypes() []domain.NodeType
	Shutdown(ctx context.Context) error
}

type RunFlowParams struct {
	FlowID string
	Flow   domain.FlowDefinition
	Input  any
}

type flowExecutorService struct {
	executor        *FlowExecutor
	registry        *domain.ExecutorRegistry
	runStore        domain.RunStore
	traceStore      domain.TraceStore
	artifactManager domain.ArtifactManager

	inFlight sync.WaitGroup
}

type FlowExecutorServiceDependencies struct {
	Registry        *domain.ExecutorRegistry
	EventSink       domain.EventSink
	TraceStore      domain.TraceStore
	RunStore        domain.RunStore
	ArtifactManager domain.ArtifactManager
	Metrics         Metrics
}

func NewFlowExecutorService(deps FlowExecutorServiceDependencies) FlowExecutorService {
	return &flowExecutorService{
		executor: NewFlowExecutor(FlowExecutorDeps{
			Registry:        deps.Registry,
			EventSink:       deps.EventSink,
			TraceStore:      deps.TraceStore,
			RunStore:        deps.RunStore,
			ArtifactManager: deps.ArtifactManager,
			Metrics:         deps.Metrics,
		}),
		registry:        deps.Registry,
		runStore:        deps.RunStore,
		traceStore:      deps.TraceStore,
		artifactManager: deps.ArtifactManager,
	}
}

// RunFlow validates the flow, registers a running run and executes it in the
// background. The returned id can be polled immediately. The run is detached
// from ctx: cancelling the caller does not stop it.
func (s *flowExecutorService) RunFlow(ctx context.Context, params RunFlowParams) (string, error) {
	flow, err := s.prepareFlow(params)
	if err != nil {
		return "", err
	}

	runID := xid.New().String()
	startTime := time.Now()

	if s.runStore != nil {
		err := s.runStore.Save(ctx, domain.ExecutionRun{
			ExecutionID: runID,
			FlowID:      flow.ID,
			Status:      domain.RunStatusRunning,
			StartTime:   startTime,
		})
		if err != nil {
			return "", fmt.Errorf("failed to register run: %w", err)
		}
	}

	runCtx := context.WithoutCancel(ctx)

	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()

		s.executor.Execute(runCtx, ExecuteParams{
			RunID:     runID,
			Flow:      flow,
			Input:     params.Input,
			StartTime: startTime,
		})
	}()

	return runID, nil
}

func (s *flowExecutorService) ExecuteFlow(ctx context.Context, params RunFlowParams) (domain.ExecutionRun, error) {
	flow, err := s.prepareFlow(params)
	if err != nil {
		return domain.ExecutionRun{}, err
	}

	return s.executor.Execute(context.WithoutCancel(ctx), ExecuteParams{
		Flow:  flow,
		Input: params.Input,
	}), nil
}

func (s *flowExecutorService) prepareFlow(params RunFlowParams) (domain.FlowDefinition, error) {
	flow := params.Flow
	if params.FlowID != "" {
		flow.ID = params.FlowID
	}

	if err := domain.ValidateFlow(flow); err != nil {
		return domain.FlowDefinition{}, err
	}

	return flow, nil
}

// GetRun prefers the live run table and falls back to the durable trace for
// runs that have already been evicted.
func (s *flowExecutorService) GetRun(ctx context.Context, runID string) (domain.ExecutionRun, error) {
	if s.runStore != nil {
		run, err := s.runStore.Get(ctx, runID)
		if err == nil {
			return s.withArtifacts(ctx, run), nil
		}

		if !errors.Is(err, domain.ErrRunNotFound) {
			return domain.ExecutionRun{}, err
		}
	}

	if s.traceStore == nil {
		return domain.ExecutionRun{}, domain.ErrRunNotFound
	}

	run, err := s.traceStore.GetRun(ctx, runID)
	if err != nil {
		return domain.ExecutionRun{}, err
	}

	nodeRuns, err := s.traceStore.ListNodeRuns(ctx, runID)
	if err != nil {
		return domain.ExecutionRun{}, fmt.Errorf("failed to load node runs: %w", err)
	}

	run.NodeRuns = nodeRuns

	return s.withArtifacts(ctx, run), nil
}

func (s *flowExecutorService) withArtifacts(ctx context.Context, run domain.ExecutionRun) domain.ExecutionRun {
	if s.artifactManager == nil {
		return run
	}

	artifacts, err := s.artifactManager.ListArtifacts(ctx, run.ExecutionID)
	if err != nil {
		log.Warn().Err(err).Str("run_id", run.ExecutionID).Msg("Failed to list run artifacts")
		return run
	}

	run.Artifacts = artifacts
	return run
}

func (s *flowExecutorService) ListRuns(ctx context.Context, limit int) ([]domain.ExecutionRun, error) {
	if s.runStore == nil {
		return []domain.ExecutionRun{}, nil
	}

	return s.runStore.List(ctx, limit)
}

func (s *flowExecutorService) DeleteArtifact(ctx context.Context, artifactID string) error {
	if s.artifactManager == nil {
		return domain.ErrArtifactNotFound
	}

	return s.artifactManager.DeleteArtifact(ctx, artifactID)
}

func (s *flowExecutorService) NodeTypes() []domain.NodeType {
	return s.registry.Types()
}

// Shutdown waits for background runs to reach a terminal state.
func (s *flowExecutorService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runs still in flight: %w", ctx.Err())
	}
}

package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) record(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf(format, args...))
}

func (s *recordingSink) RunStart(ctx context.Context, runID, flowID string) {
	s.record("runStart:%s", flowID)
}

func (s *recordingSink) NodeStart(ctx context.Context, runID, nodeID string) {
	s.record("nodeStart:%s", nodeID)
}

func (s *recordingSink) NodeComplete(ctx context.Context, runID, nodeID string, output any) {
	s.record("nodeComplete:%s", nodeID)
}

func (s *recordingSink) NodeError(ctx context.Context, runID, nodeID string, errorMessage string) {
	s.record("nodeError:%s", nodeID)
}

func (s *recordingSink) RunComplete(ctx context.Context, runID string, result any) {
	s.record("runComplete")
}

func (s *recordingSink) RunError(ctx context.Context, runID string, errorMessage string) {
	s.record("runError")
}

func (s *recordingSink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

type recordingTraceStore struct {
	mu               sync.Mutex
	runs             map[string]domain.ExecutionRun
	nodeRuns         map[string][]domain.NodeRun
	persistRunCalls  int
	persistNodeCalls int
}

func newRecordingTraceStore() *recordingTraceStore {
	return &recordingTraceStore{
		runs:     map[string]domain.ExecutionRun{},
		nodeRuns: map[string][]domain.NodeRun{},
	}
}

func (s *recordingTraceStore) PersistRun(ctx context.Context, run domain.ExecutionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistRunCalls++
	s.runs[run.ExecutionID] = run
	return nil
}

func (s *recordingTraceStore) PersistNodeRuns(ctx context.Context, runID string, nodeRuns []domain.NodeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistNodeCalls++
	s.nodeRuns[runID] = nodeRuns
	return nil
}

func (s *recordingTraceStore) GetRun(ctx context.Context, runID string) (domain.ExecutionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return domain.ExecutionRun{}, domain.ErrRunNotFound
	}
	return run, nil
}

func (s *recordingTraceStore) ListNodeRuns(ctx context.Context, runID string) ([]domain.NodeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodeRuns[runID], nil
}

type mapRunStore struct {
	mu   sync.Mutex
	runs map[string]domain.ExecutionRun
}

func newMapRunStore() *mapRunStore {
	return &mapRunStore{runs: map[string]domain.ExecutionRun{}}
}

func (s *mapRunStore) Save(ctx context.Context, run domain.ExecutionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ExecutionID] = run
	return nil
}

func (s *mapRunStore) Get(ctx context.Context, runID string) (domain.ExecutionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return domain.ExecutionRun{}, domain.ErrRunNotFound
	}
	return run, nil
}

func (s *mapRunStore) List(ctx context.Context, limit int) ([]domain.ExecutionRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := make([]domain.ExecutionRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	return runs, nil
}

type countingRunner struct {
	mu     sync.Mutex
	calls  int
	inputs []domain.RunInput
	run    func(input domain.RunInput) (any, error)
}

func (r *countingRunner) Run(ctx context.Context, input domain.RunInput) (any, error) {
	r.mu.Lock()
	r.calls++
	r.inputs = append(r.inputs, input)
	r.mu.Unlock()

	if r.run == nil {
		return input.Input, nil
	}
	return r.run(input)
}

func (r *countingRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type panickingExecutor struct{}

func (panickingExecutor) Execute(ctx context.Context, input domain.ExecutionInput) domain.ExecutionOutput {
	panic("kaboom")
}

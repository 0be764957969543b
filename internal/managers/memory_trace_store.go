package managers

import (
	"context"
	"sync"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

// MemoryTraceStore is the trace store used when no database is configured.
// Traces live as long as the process.
type MemoryTraceStore struct {
	mtx      sync.RWMutex
	runs     map[string]domain.ExecutionRun
	nodeRuns map[string][]domain.NodeRun
}

func NewMemoryTraceStore() *MemoryTraceStore {
	return &MemoryTraceStore{
		runs:     make(map[string]domain.ExecutionRun),
		nodeRuns: make(map[string][]domain.NodeRun),
	}
}

func (s *MemoryTraceStore) PersistRun(ctx context.Context, run domain.ExecutionRun) error {
	run = run.Clone()
	run.NodeRuns = nil
	run.Artifacts = nil

	s.mtx.Lock()
	s.runs[run.ExecutionID] = run
	s.mtx.Unlock()

	return nil
}

func (s *MemoryTraceStore) PersistNodeRuns(ctx context.Context, runID string, nodeRuns []domain.NodeRun) error {
	stored := make([]domain.NodeRun, len(nodeRuns))
	copy(stored, nodeRuns)

	s.mtx.Lock()
	s.nodeRuns[runID] = stored
	s.mtx.Unlock()

	return nil
}

func (s *MemoryTraceStore) GetRun(ctx context.Context, runID string) (domain.ExecutionRun, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return domain.ExecutionRun{}, domain.ErrRunNotFound
	}

	return run.Clone(), nil
}

func (s *MemoryTraceStore) ListNodeRuns(ctx context.Context, runID string) ([]domain.NodeRun, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	nodeRuns := make([]domain.NodeRun, len(s.nodeRuns[runID]))
	copy(nodeRuns, s.nodeRuns[runID])

	return nodeRuns, nil
}

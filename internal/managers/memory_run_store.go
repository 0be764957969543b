package managers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const (
	DefaultRunTTL             = time.Hour
	DefaultRunCleanupInterval = time.Minute
)

type runEntry struct {
	run       domain.ExecutionRun
	expiresAt time.Time
}

// MemoryRunStore keeps runs in process. Running runs never expire; a run is
// evicted TTL after the save that moved it to a terminal state.
type MemoryRunStore struct {
	mtx     sync.RWMutex
	entries map[string]runEntry

	ttl  time.Duration
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

type MemoryRunStoreDependencies struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	Clock           func() time.Time
}

func NewMemoryRunStore(deps MemoryRunStoreDependencies) *MemoryRunStore {
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}

	interval := deps.CleanupInterval
	if interval <= 0 {
		interval = DefaultRunCleanupInterval
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	store := &MemoryRunStore{
		entries: make(map[string]runEntry),
		ttl:     ttl,
		now:     clock,
		stop:    make(chan struct{}),
	}

	go store.janitor(interval)

	return store
}

func (s *MemoryRunStore) Save(ctx context.Context, run domain.ExecutionRun) error {
	entry := runEntry{run: run.Clone()}
	if run.Status.IsTerminal() {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mtx.Lock()
	s.entries[run.ExecutionID] = entry
	s.mtx.Unlock()

	return nil
}

func (s *MemoryRunStore) Get(ctx context.Context, runID string) (domain.ExecutionRun, error) {
	s.mtx.RLock()
	entry, ok := s.entries[runID]
	s.mtx.RUnlock()

	if !ok || s.expired(entry) {
		return domain.ExecutionRun{}, domain.ErrRunNotFound
	}

	return entry.run.Clone(), nil
}

// List returns the most recently started runs first, without node runs.
func (s *MemoryRunStore) List(ctx context.Context, limit int) ([]domain.ExecutionRun, error) {
	s.mtx.RLock()
	runs := make([]domain.ExecutionRun, 0, len(s.entries))
	for _, entry := range s.entries {
		if s.expired(entry) {
			continue
		}

		run := entry.run
		run.NodeRuns = nil
		run.Artifacts = nil
		runs = append(runs, run)
	}
	s.mtx.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

// EvictExpired drops every expired run and reports how many were removed.
func (s *MemoryRunStore) EvictExpired() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	evicted := 0
	for id, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, id)
			evicted++
		}
	}

	return evicted
}

func (s *MemoryRunStore) Close() {
	s.once.Do(func() {
		close(s.stop)
	})
}

func (s *MemoryRunStore) expired(entry runEntry) bool {
	return !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt)
}

func (s *MemoryRunStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if evicted := s.EvictExpired(); evicted > 0 {
				log.Debug().Int("evicted", evicted).Msg("Evicted expired runs")
			}
		}
	}
}

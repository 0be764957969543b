package managers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const (
	DefaultRedisRunPrefix = "flowengine:run:"
	// runningRunTTL bounds how long a run that never finished (process crash)
	// lingers in redis.
	runningRunTTL = 24 * time.Hour
)

// RedisRunStore stores each run as a JSON string with key expiry and keeps a
// sorted set of run ids scored by start time for listing.
type RedisRunStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	clock  func() time.Time
}

type RedisRunStoreDependencies struct {
	Client redis.UniversalClient
	Prefix string
	TTL    time.Duration
	Clock  func() time.Time
}

func NewRedisRunStore(deps RedisRunStoreDependencies) *RedisRunStore {
	prefix := deps.Prefix
	if prefix == "" {
		prefix = DefaultRedisRunPrefix
	}

	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &RedisRunStore{
		client: deps.Client,
		prefix: prefix,
		ttl:    ttl,
		clock:  clock,
	}
}

func (s *RedisRunStore) key(runID string) string {
	return s.prefix + runID
}

func (s *RedisRunStore) indexKey() string {
	return s.prefix + "index"
}

func (s *RedisRunStore) Save(ctx context.Context, run domain.ExecutionRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	ttl := runningRunTTL
	if run.Status.IsTerminal() {
		ttl = s.ttl
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(run.ExecutionID), payload, ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(run.StartTime.UnixNano()),
		Member: run.ExecutionID,
	})
	pipe.ZRemRangeByScore(ctx, s.indexKey(), "-inf", s.pruneBefore(s.clock()))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ExecutionID, err)
	}

	return nil
}

// pruneBefore is the index score below which every run key has expired: a run
// stays running for at most runningRunTTL and is then kept for ttl.
func (s *RedisRunStore) pruneBefore(now time.Time) string {
	cutoff := now.Add(-(runningRunTTL + s.ttl)).UnixNano()
	return "(" + strconv.FormatInt(cutoff, 10)
}

func (s *RedisRunStore) Get(ctx context.Context, runID string) (domain.ExecutionRun, error) {
	payload, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ExecutionRun{}, domain.ErrRunNotFound
		}
		return domain.ExecutionRun{}, fmt.Errorf("failed to get run %s: %w", runID, err)
	}

	var run domain.ExecutionRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return domain.ExecutionRun{}, fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}

	return run, nil
}

// List reads the newest ids from the index. Ids whose run key has already
// expired are pruned and the window is read again until limit runs are found
// or the index is exhausted.
func (s *RedisRunStore) List(ctx context.Context, limit int) ([]domain.ExecutionRun, error) {
	for {
		runs, stale, err := s.readWindow(ctx, limit)
		if err != nil {
			return nil, err
		}

		if len(stale) == 0 {
			return runs, nil
		}

		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune run index: %w", err)
		}
	}
}

func (s *RedisRunStore) readWindow(ctx context.Context, limit int) ([]domain.ExecutionRun, []any, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read run index: %w", err)
	}

	runs := make([]domain.ExecutionRun, 0, len(ids))
	if len(ids) == 0 {
		return runs, nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read runs: %w", err)
	}

	var stale []any
	for i, value := range values {
		payload, ok := value.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}

		var run domain.ExecutionRun
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal run %s: %w", ids[i], err)
		}

		run.NodeRuns = nil
		run.Artifacts = nil
		runs = append(runs, run)
	}

	return runs, stale, nil
}

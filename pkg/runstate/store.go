package runstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/upmind-client-export/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrNoRun indicates no run summary has been recorded yet.
	ErrNoRun = errors.New("no export run recorded")

	// ErrInvalidSummary indicates the stored summary is corrupted.
	ErrInvalidSummary = errors.New("invalid run summary")
)

// releaseScript deletes the lock only if it is still owned by the caller.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Store persists run state in Redis.
type Store struct {
	redis   *redis.Client
	lockTTL time.Duration
	logger  zerolog.Logger
}

// NewStore creates a new run state store with Redis backend.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Store{
		redis:   redisClient,
		lockTTL: DefaultLockTTL,
		logger:  logging.NewLogger("runstate"),
	}
}

// NewRedisClient builds a Redis client from either a redis:// URL or a bare
// host:port address.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if !strings.Contains(redisURL, "://") {
		return redis.NewClient(&redis.Options{Addr: redisURL}), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// SetLockTTL overrides the lock expiry.
func (s *Store) SetLockTTL(ttl time.Duration) {
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// Acquire takes the run lock for runID. It returns false if another run
// holds it.
func (s *Store) Acquire(ctx context.Context, runID string) (bool, error) {
	ok, err := s.redis.SetNX(ctx, RedisKeyLock, runID, s.lockTTL).Result()
	if err != nil {
		StoreErrors.WithLabelValues("lock").Inc()
		return false, fmt.Errorf("acquire run lock: %w", err)
	}

	if !ok {
		LockContended.Inc()
		holder, _ := s.redis.Get(ctx, RedisKeyLock).Result()
		s.logger.Warn().
			Str("run_id", runID).
			Str("holder", holder).
			Msg("Run lock already held")
		return false, nil
	}

	s.logger.Debug().
		Str("run_id", runID).
		Dur("ttl", s.lockTTL).
		Msg("Run lock acquired")
	return true, nil
}

// Release drops the run lock if runID still owns it.
func (s *Store) Release(ctx context.Context, runID string) error {
	if err := releaseScript.Run(ctx, s.redis, []string{RedisKeyLock}, runID).Err(); err != nil {
		StoreErrors.WithLabelValues("unlock").Inc()
		return fmt.Errorf("release run lock: %w", err)
	}

	s.logger.Debug().Str("run_id", runID).Msg("Run lock released")
	return nil
}

// Record stores the summary as the most recent run.
func (s *Store) Record(ctx context.Context, summary Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		StoreErrors.WithLabelValues("record").Inc()
		return fmt.Errorf("marshal run summary: %w", err)
	}

	if err := s.redis.Set(ctx, RedisKeyLastRun, data, 0).Err(); err != nil {
		StoreErrors.WithLabelValues("record").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// LastRun returns the most recently recorded summary.
// Returns ErrNoRun if nothing has been recorded.
func (s *Store) LastRun(ctx context.Context) (*Summary, error) {
	data, err := s.redis.Get(ctx, RedisKeyLastRun).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoRun
		}
		StoreErrors.WithLabelValues("last_run").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		StoreErrors.WithLabelValues("last_run").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidSummary, err)
	}

	return &summary, nil
}

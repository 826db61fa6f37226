package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	redisOpDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "license_offline_cache_redis_duration_ms",
		Help:    "Latency of offline cache operations against redis in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
	}, []string{"op"})
)

// DefaultRedisPrefix namespaces cache records in a shared redis.
const DefaultRedisPrefix = "license:offline:"

// RedisStore keeps each record as a single string value, so a SET replaces
// proof and body together.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRedisPrefix overrides DefaultRedisPrefix.
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisTTL expires records after ttl. Zero keeps them until pruned.
func WithRedisTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithRedisLogger sets the logger used for storage faults.
func WithRedisLogger(l *slog.Logger) RedisStoreOption {
	return func(s *RedisStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewRedisStore wraps client. The client lifecycle stays with the caller.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: DefaultRedisPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = s.logger.With(slog.String("component", "offline_cache"), slog.String("backend", "redis"))
	return s
}

func observe(op string, start time.Time) {
	redisOpDurationMs.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

// Write implements Store.
func (s *RedisStore) Write(ctx context.Context, key string, rec Record) error {
	defer observe("write", time.Now())

	if err := ValidateKey(key); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache record: %w", err)
	}
	return nil
}

// Read implements Store.
func (s *RedisStore) Read(ctx context.Context, key string) (Record, bool) {
	defer observe("read", time.Now())

	if err := ValidateKey(key); err != nil {
		return Record{}, false
	}

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false
	}
	if err != nil {
		s.logger.WarnContext(ctx, "cache record unreadable",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return Record{}, false
	}

	rec, err := decodeRecord(data)
	if err != nil {
		s.logger.WarnContext(ctx, "cache record corrupt",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return Record{}, false
	}
	return rec, true
}

// PruneBefore implements Pruner.
func (s *RedisStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	defer observe("prune", time.Now())

	var stale []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		if expired(strings.TrimPrefix(full, s.prefix), cutoff) {
			stale = append(stale, full)
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan cache records: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	n, err := s.client.Del(ctx, stale...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache records: %w", err)
	}
	return int(n), nil
}

package stats

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/FrenchMajesty/yuko/utils/retry"
	"github.com/redis/go-redis/v9"
)

// RedisRecorder keeps outcome counters in redis hashes:
//
//	<prefix>:total                  outcome -> count, never expires
//	<prefix>:minute:200601021504    outcome -> count, expires after ttl
//	<prefix>:route                  "<route>:<outcome>" -> count
type RedisRecorder struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	retry  retry.Config
}

var _ Recorder = (*RedisRecorder)(nil)

type RedisOption func(*RedisRecorder)

func WithPrefix(prefix string) RedisOption {
	return func(r *RedisRecorder) { r.prefix = strings.Trim(prefix, ":") }
}

func WithTTL(d time.Duration) RedisOption {
	return func(r *RedisRecorder) { r.ttl = d }
}

func WithRetry(config retry.Config) RedisOption {
	return func(r *RedisRecorder) { r.retry = config }
}

func NewRedisRecorder(rdb redis.UniversalClient, opts ...RedisOption) *RedisRecorder {
	r := &RedisRecorder{
		rdb:    rdb,
		prefix: "yuko:rest",
		ttl:    24 * time.Hour,
		retry: retry.Config{
			MaxRetries:      2,
			BaseDelay:       50 * time.Millisecond,
			MaxDelay:        500 * time.Millisecond,
			BackoffMultiple: 2,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRecorder) Record(ctx context.Context, rec Record) error {
	if r == nil || r.rdb == nil {
		return nil
	}

	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(rec.Outcome)
	minuteKey := r.minuteKey(at)

	return retry.Execute(ctx, retry.Options{
		Config:       r.retry,
		ErrorChecker: isTransient,
		Name:         "redis stats",
	}, func(attempt int) error {
		pipe := r.rdb.Pipeline()
		pipe.HIncrBy(ctx, r.prefix+":total", field, 1)
		pipe.HIncrBy(ctx, minuteKey, field, 1)
		if r.ttl > 0 {
			pipe.Expire(ctx, minuteKey, r.ttl)
		}
		if rec.Route != "" {
			pipe.HIncrBy(ctx, r.prefix+":route", rec.Route+":"+field, 1)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

// Total reads the cumulative counters
func (r *RedisRecorder) Total(ctx context.Context) (Counters, error) {
	return r.read(ctx, r.prefix+":total")
}

// Minute reads the counters of the minute containing at
func (r *RedisRecorder) Minute(ctx context.Context, at time.Time) (Counters, error) {
	return r.read(ctx, r.minuteKey(at))
}

func (r *RedisRecorder) read(ctx context.Context, key string) (Counters, error) {
	values, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	counters := make(Counters, len(values))
	for field, raw := range values {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s.%s is not a number: %w", key, field, err)
		}
		counters[Outcome(field)] = n
	}
	return counters, nil
}

func (r *RedisRecorder) minuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", r.prefix, at.UTC().Format("200601021504"))
}

// isTransient retries connection trouble only; redis replies such as WRONGTYPE are final
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return false
	}
	return true
}

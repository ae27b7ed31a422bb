package client

import (
	"fmt"

	"github.com/FrenchMajesty/yuko/config"
	"github.com/FrenchMajesty/yuko/rest"
	"github.com/FrenchMajesty/yuko/stats"
	"github.com/FrenchMajesty/yuko/structures"
	"github.com/FrenchMajesty/yuko/utils/logger"
	"github.com/redis/go-redis/v9"
)

// NewFromConfig builds a client, its logger and its stats backend from a validated config.
// Close releases all of them.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	recorder, closeRecorder := newRecorder(cfg)

	restOptions := []rest.Option{
		rest.WithBaseURL(cfg.APIURL),
		rest.WithUserAgent(cfg.UserAgent),
		rest.WithRetryConfig(cfg.RetryPolicy()),
		rest.WithMaxRateLimitRetries(cfg.MaxRateLimitRetries),
		rest.WithGlobalRate(cfg.GlobalRequestsPerSecond),
	}
	if timeout := cfg.RequestTimeoutDuration(); timeout > 0 {
		restOptions = append(restOptions, rest.WithTimeout(timeout))
	}

	base := []Option{
		WithLogger(log),
		WithRESTOptions(restOptions...),
		WithCacheLimits(structures.LimitsFrom(cfg.CacheLimit)),
		WithAllowedMentions(AllowedMentions{
			Parse:       cfg.AllowedMentions.Parse,
			RepliedUser: cfg.AllowedMentions.RepliedUser,
		}),
	}
	if recorder != nil {
		base = append(base, WithRecorder(recorder))
	}

	c, err := New(cfg.Token, append(base, opts...)...)
	if err != nil {
		if closeRecorder != nil {
			closeRecorder()
		}
		log.Close()
		return nil, err
	}

	c.onClose(log.Close)
	if closeRecorder != nil {
		c.onClose(closeRecorder)
	}
	return c, nil
}

func newRecorder(cfg *config.Config) (stats.Recorder, func() error) {
	switch cfg.Stats.Backend {
	case config.StatsBackendMemory:
		return stats.NewMemoryRecorder(), nil
	case config.StatsBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPassword,
			DB:       cfg.Stats.RedisDB,
		})
		recorder := stats.NewRedisRecorder(rdb,
			stats.WithPrefix(cfg.Stats.Prefix),
			stats.WithTTL(cfg.StatsTTL()),
		)
		return recorder, rdb.Close
	default:
		return nil, nil
	}
}

package rest

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/FrenchMajesty/yuko/rate_limit"
	"golang.org/x/time/rate"
)

// globalLimiter holds the account-wide quota shared by every bucket. A global 429 blocks it;
// the optional pacer caps sustained throughput below the remote global limit.
type globalLimiter struct {
	mu      sync.RWMutex
	state   rate_limit.Ratelimit
	pacer   *rate.Limiter
	blocked int
}

type GlobalStats struct {
	Limited        bool
	TimeUntilReset time.Duration
	BlockedCount   int
	RequestsPerSec float64
}

func newGlobalLimiter(requestsPerSecond float64) *globalLimiter {
	g := &globalLimiter{}
	if requestsPerSecond > 0 {
		burst := int(math.Ceil(requestsPerSecond))
		g.pacer = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return g
}

// delay returns how long every bucket must hold off, or 0
func (g *globalLimiter) delay(now time.Time) time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.state.Exhausted(now) {
		return 0
	}
	return g.state.TimeUntilReset(now)
}

// block stops all dispatch for d
func (g *globalLimiter) block(now time.Time, d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Block(now, d)
	g.blocked++
}

// pace waits for a slot of the throughput ceiling, if one is configured
func (g *globalLimiter) pace(ctx context.Context) error {
	if g.pacer == nil {
		return nil
	}
	return g.pacer.Wait(ctx)
}

func (g *globalLimiter) stats(now time.Time) GlobalStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := GlobalStats{
		Limited:      g.state.Exhausted(now),
		BlockedCount: g.blocked,
	}
	if stats.Limited {
		stats.TimeUntilReset = g.state.TimeUntilReset(now)
	}
	if g.pacer != nil {
		stats.RequestsPerSec = float64(g.pacer.Limit())
	}
	return stats
}

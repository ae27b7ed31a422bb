package stats

import (
	"context"
	"errors"
	"time"
)

type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeRequestError Outcome = "request_error"
	OutcomeRateLimited  Outcome = "rate_limited"
	OutcomeServerError  Outcome = "server_error"
	OutcomeNetworkError Outcome = "network_error"
	OutcomeCancelled    Outcome = "cancelled"
	OutcomeStopped      Outcome = "stopped"
)

// Record describes one request that reached a terminal result
type Record struct {
	RequestID     string
	Method        string
	Route         string // bucket key, never the raw path, to keep cardinality bounded
	Status        int
	Outcome       Outcome
	Attempts      int
	RateLimitHits int
	Duration      time.Duration
	At            time.Time
}

// Recorder persists request outcomes. Recording is best effort: the dispatcher logs errors
// and moves on.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Counters aggregates outcomes
type Counters map[Outcome]int64

func (c Counters) Total() int64 {
	var total int64
	for _, n := range c {
		total += n
	}
	return total
}

// ErrUnsupported is returned by TotalOf for recorders that cannot report counters
var ErrUnsupported = errors.New("recorder cannot report totals")

// TotalOf reads the all-time counters of the recorders in this package
func TotalOf(ctx context.Context, r Recorder) (Counters, error) {
	switch recorder := r.(type) {
	case *MemoryRecorder:
		return recorder.Total(), nil
	case *RedisRecorder:
		return recorder.Total(ctx)
	default:
		return nil, ErrUnsupported
	}
}

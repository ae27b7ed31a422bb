package rest

import (
	"errors"
	"time"

	"github.com/FrenchMajesty/yuko/stats"
)

type EventType string

const (
	EventRequestQueued      EventType = "request_queued"
	EventRequestWaiting     EventType = "request_waiting"
	EventRequestDispatched  EventType = "request_dispatched"
	EventRequestRetrying    EventType = "request_retrying"
	EventRequestRateLimited EventType = "request_ratelimited"
	EventGlobalRateLimited  EventType = "global_ratelimited"
	EventRequestCompleted   EventType = "request_completed"
	EventRequestFailed      EventType = "request_failed"
	EventRequestCancelled   EventType = "request_cancelled"
)

type Event struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"request_id"`
	Route     string         `json:"route"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Stats is a point-in-time summary of the manager
type Stats struct {
	Uptime            time.Duration `json:"uptime"`
	Buckets           int           `json:"buckets"`
	Queued            int           `json:"queued"`
	RunningBuckets    int           `json:"running_buckets"`
	LimitedBuckets    int           `json:"limited_buckets"`
	Submitted         int           `json:"submitted"`
	Dispatched        int           `json:"dispatched"`
	Completed         int           `json:"completed"`
	Failed            int           `json:"failed"`
	Cancelled         int           `json:"cancelled"`
	Retried           int           `json:"retried"`
	RateLimited       int           `json:"rate_limited"`
	GlobalRateLimited int           `json:"global_rate_limited"`
	Global            GlobalStats   `json:"global"`
}

// Events returns the event stream. Events are dropped rather than block dispatch when nobody
// drains the channel. It is closed by Stop.
func (m *Manager) Events() <-chan *Event {
	return m.eventChan
}

// GetStats returns the stats of the manager
func (m *Manager) GetStats() *Stats {
	now := time.Now()

	m.statsMu.RLock()
	c := m.counters
	m.statsMu.RUnlock()

	s := &Stats{
		Uptime:            now.Sub(m.startTime),
		Submitted:         c.submitted,
		Dispatched:        c.dispatched,
		Completed:         c.completed,
		Failed:            c.failed,
		Cancelled:         c.cancelled,
		Retried:           c.retried,
		RateLimited:       c.rateLimited,
		GlobalRateLimited: c.globalRateLimited,
		Global:            m.global.stats(now),
	}

	m.mu.Lock()
	s.Buckets = len(m.buckets)
	for _, b := range m.buckets {
		s.Queued += b.queue.Size()
		if b.running {
			s.RunningBuckets++
		}
		if b.state.Exhausted(now) {
			s.LimitedBuckets++
		}
	}
	m.mu.Unlock()

	return s
}

// emitEvent sends an event to the event channel (non-blocking)
func (m *Manager) emitEvent(eventType EventType, req *pendingRequest, data map[string]any) {
	m.eventsMu.RLock()
	defer m.eventsMu.RUnlock()
	if m.eventsClosed {
		return
	}

	event := &Event{
		Type:      eventType,
		RequestID: req.ID.String(),
		Route:     req.route.String(),
		Timestamp: time.Now(),
		Data:      data,
	}

	select {
	case m.eventChan <- event:
	default:
		// Channel full, drop event to avoid blocking
	}
}

func (m *Manager) dispatched(req *pendingRequest, b *bucket) {
	m.statsMu.Lock()
	m.counters.dispatched++
	m.statsMu.Unlock()

	m.emitEvent(EventRequestDispatched, req, map[string]any{
		"bucket":  b.key,
		"attempt": req.attempts,
	})
}

func (m *Manager) waiting(req *pendingRequest, b *bucket, wait time.Duration, global bool) {
	m.emitEvent(EventRequestWaiting, req, map[string]any{
		"bucket": b.key,
		"wait":   wait.String(),
		"global": global,
	})
}

func (m *Manager) retrying(req *pendingRequest, b *bucket, delay time.Duration, reason string) {
	m.statsMu.Lock()
	m.counters.retried++
	m.statsMu.Unlock()

	b.logger.Printf("request %s retry %d/%d in %v: %s", req.ID, req.retries, m.retryConfig.MaxRetries, delay, reason)
	m.emitEvent(EventRequestRetrying, req, map[string]any{
		"bucket":      b.key,
		"attempt":     req.attempts,
		"max_retries": m.retryConfig.MaxRetries,
		"delay":       delay.String(),
		"error":       reason,
	})
}

func (m *Manager) rateLimited(req *pendingRequest, b *bucket, retryAfter time.Duration, global bool) {
	m.statsMu.Lock()
	if global {
		m.counters.globalRateLimited++
	} else {
		m.counters.rateLimited++
	}
	m.statsMu.Unlock()

	eventType := EventRequestRateLimited
	if global {
		eventType = EventGlobalRateLimited
		b.logger.Printf("global rate limit hit by %s, every bucket waits %v", req.ID, retryAfter)
	} else {
		b.logger.Printf("rate limited, retrying %s in %v (hit %d)", req.ID, retryAfter, req.rateLimitHits)
	}

	m.emitEvent(eventType, req, map[string]any{
		"bucket":      b.key,
		"retry_after": retryAfter.String(),
		"hits":        req.rateLimitHits,
	})
}

// completed accounts for a terminal result
func (m *Manager) completed(req *pendingRequest, b *bucket, result Result) {
	outcome := outcomeOf(result, req)

	m.statsMu.Lock()
	switch outcome {
	case stats.OutcomeSuccess:
		m.counters.completed++
	case stats.OutcomeCancelled:
		m.counters.cancelled++
	default:
		m.counters.failed++
	}
	m.statsMu.Unlock()

	data := map[string]any{
		"bucket":   b.key,
		"status":   result.Status,
		"attempts": result.Attempts,
		"duration": result.Duration.String(),
	}

	switch outcome {
	case stats.OutcomeSuccess:
		m.emitEvent(EventRequestCompleted, req, data)
	case stats.OutcomeCancelled:
		m.emitEvent(EventRequestCancelled, req, data)
	default:
		data["error"] = result.Err.Error()
		m.emitEvent(EventRequestFailed, req, data)
	}

	m.record(stats.Record{
		RequestID:     req.ID.String(),
		Method:        req.route.Method(),
		Route:         b.key,
		Status:        result.Status,
		Outcome:       outcome,
		Attempts:      result.Attempts,
		RateLimitHits: req.rateLimitHits,
		Duration:      result.Duration,
		At:            time.Now(),
	})
}

// record hands rec to the recorder goroutine without blocking
func (m *Manager) record(rec stats.Record) {
	if m.records == nil {
		return
	}

	m.eventsMu.RLock()
	defer m.eventsMu.RUnlock()
	if m.eventsClosed {
		return
	}

	select {
	case m.records <- rec:
	default:
		m.logger.Printf("recorder is behind, dropping outcome of %s", rec.RequestID)
	}
}

func outcomeOf(result Result, req *pendingRequest) stats.Outcome {
	var requestErr *RequestError
	switch {
	case result.Err == nil:
		return stats.OutcomeSuccess
	case errors.Is(result.Err, ErrStopped):
		return stats.OutcomeStopped
	case req.ctx.Err() != nil && errors.Is(result.Err, req.ctx.Err()):
		return stats.OutcomeCancelled
	case errors.Is(result.Err, ErrRateLimitExceeded):
		return stats.OutcomeRateLimited
	case errors.Is(result.Err, ErrServer):
		return stats.OutcomeServerError
	case errors.Is(result.Err, ErrNetwork):
		return stats.OutcomeNetworkError
	case errors.As(result.Err, &requestErr):
		return stats.OutcomeRequestError
	default:
		return stats.OutcomeNetworkError
	}
}

// logStats logs current stats if there's activity
func (m *Manager) logStats(shutdown bool) {
	s := m.GetStats()

	if shutdown {
		m.logger.Printf("Shutting down. Submitted: %d. Completed: %d. Failed: %d. Cancelled: %d. Rate limited: %d (global %d). Time taken: %s",
			s.Submitted, s.Completed, s.Failed, s.Cancelled, s.RateLimited, s.GlobalRateLimited, s.Uptime)
		return
	}

	if s.Queued > 0 || s.RunningBuckets > 0 {
		m.logger.Printf("Buckets(%d running/%d limited/%d total) Queue(%d) Completed(%d) Failed(%d) Retried(%d)",
			s.RunningBuckets, s.LimitedBuckets, s.Buckets, s.Queued, s.Completed, s.Failed, s.Retried)
	}
}

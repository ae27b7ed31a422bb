package rest

import (
	"context"
	"sync"
	"time"

	"github.com/FrenchMajesty/yuko/utils/priority_queue"
	"github.com/google/uuid"
)

type RequestStatus int

const (
	RequestStatusQueued RequestStatus = iota
	RequestStatusWaiting
	RequestStatusRunning
	RequestStatusCompleted
	RequestStatusFailed
	RequestStatusCancelled
)

func (s RequestStatus) String() string {
	switch s {
	case RequestStatusQueued:
		return "queued"
	case RequestStatusWaiting:
		return "waiting"
	case RequestStatusRunning:
		return "running"
	case RequestStatusCompleted:
		return "completed"
	case RequestStatusFailed:
		return "failed"
	case RequestStatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RequestOption tweaks a single call
type RequestOption func(*pendingRequest)

// WithReason fills X-Audit-Log-Reason
func WithReason(reason string) RequestOption {
	return func(r *pendingRequest) {
		r.reason = reason
	}
}

// Result is the terminal outcome of a request
type Result struct {
	Body     []byte
	Status   int
	Err      error
	Attempts int
	Duration time.Duration
}

// pendingRequest is owned by exactly one bucket queue until it reaches a terminal result.
// Counters are only touched by the goroutine draining that bucket.
type pendingRequest struct {
	ID      uuid.UUID
	ctx     context.Context
	route   Route
	payload encodedPayload
	reason  string
	item    *priority_queue.QueueItem[*pendingRequest]

	attempts      int
	retries       int
	rateLimitHits int
	lastStatus    int
	queuedAt      time.Time

	mu              sync.RWMutex
	status          RequestStatus
	once            sync.Once
	resultChan      chan Result
	resultCallbacks []func(Result)
}

func newPendingRequest(ctx context.Context, route Route, payload encodedPayload, opts ...RequestOption) *pendingRequest {
	req := &pendingRequest{
		ID:         uuid.New(),
		ctx:        ctx,
		route:      route,
		payload:    payload,
		queuedAt:   time.Now(),
		status:     RequestStatusQueued,
		resultChan: make(chan Result, 1),
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// GetStatus returns the status of the request
func (r *pendingRequest) GetStatus() RequestStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// SetStatus sets the status of the request
func (r *pendingRequest) SetStatus(status RequestStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

// AddResultCallback registers cb to run once the result is emitted
func (r *pendingRequest) AddResultCallback(cb func(Result)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resultCallbacks = append(r.resultCallbacks, cb)
}

// EmitResult delivers the terminal result. Only the first call has any effect.
func (r *pendingRequest) EmitResult(result Result) bool {
	emitted := false
	r.once.Do(func() {
		emitted = true
		result.Attempts = r.attempts
		result.Duration = time.Since(r.queuedAt)

		r.mu.Lock()
		switch {
		case result.Err == nil:
			r.status = RequestStatusCompleted
		case result.Err == r.ctx.Err():
			r.status = RequestStatusCancelled
		default:
			r.status = RequestStatusFailed
		}
		callbacks := r.resultCallbacks
		r.mu.Unlock()

		r.resultChan <- result
		for _, cb := range callbacks {
			cb(result)
		}
	})
	return emitted
}

// ListenForResult blocks until the result is emitted
func (r *pendingRequest) ListenForResult() Result {
	return <-r.resultChan
}

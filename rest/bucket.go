package rest

import (
	"net/http"
	"time"

	"github.com/FrenchMajesty/yuko/rate_limit"
	"github.com/FrenchMajesty/yuko/utils/logger"
	"github.com/FrenchMajesty/yuko/utils/priority_queue"
	"github.com/FrenchMajesty/yuko/utils/retry"
	"github.com/tidwall/gjson"
)

// fallback wait for a 429 that carries no retry_after at all
const defaultRetryAfter = time.Second

// bucket serializes every request sharing a bucket key. Requests wait in a FIFO queue; a
// single drain goroutine, started on demand, serves the head until it reaches a terminal
// result and exits once the queue is empty.
type bucket struct {
	key     string
	manager *Manager
	logger  logger.Logger

	// guarded by manager.mu
	hash     string
	state    rate_limit.Ratelimit
	queue    *priority_queue.PriorityQueue[*pendingRequest]
	active   *pendingRequest
	running  bool
	lastUsed time.Time
}

// BucketState is a point-in-time view of one bucket
type BucketState struct {
	Key       string        `json:"key"`
	Hash      string        `json:"hash,omitempty"`
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	Reset     time.Time     `json:"reset"`
	ResetIn   time.Duration `json:"reset_in"`
	Limited   bool          `json:"limited"`
	Queued    int           `json:"queued"`
	Running   bool          `json:"running"`
	Active    string        `json:"active,omitempty"`
	// ActiveStatus is waiting while the head request sits out a rate limit
	ActiveStatus string    `json:"active_status,omitempty"`
	LastUsed     time.Time `json:"last_used"`
}

func newBucket(m *Manager, key string) *bucket {
	return &bucket{
		key:     key,
		manager: m,
		logger:  logger.WithPrefix(m.logger, "bucket "+key),
		queue:   priority_queue.NewMinPriorityQueue[*pendingRequest](),
	}
}

// enqueue adds req behind everything already queued and makes sure a drain goroutine runs.
// Caller holds manager.mu.
func (b *bucket) enqueue(req *pendingRequest) {
	req.item = &priority_queue.QueueItem[*pendingRequest]{
		Item:     req,
		Priority: int(b.manager.sequence.Add(1)),
	}
	b.queue.Push(req.item)
	b.lastUsed = time.Now()

	if !b.running {
		b.running = true
		b.manager.wg.Add(1)
		go b.drain()
	}
}

// remove takes a request that is still waiting in line out of the queue. The head being
// served cannot be removed: its drain goroutine delivers the result instead.
func (b *bucket) remove(req *pendingRequest) bool {
	b.manager.mu.Lock()
	defer b.manager.mu.Unlock()
	if b.active == req {
		return false
	}
	return b.queue.Remove(req.item)
}

// next marks the head of the queue as active, or stops the drain goroutine if there is none
func (b *bucket) next() (*pendingRequest, bool) {
	b.manager.mu.Lock()
	defer b.manager.mu.Unlock()

	req, ok := b.queue.Peek()
	if !ok {
		b.running = false
		b.active = nil
		return nil, false
	}
	b.active = req
	return req, true
}

func (b *bucket) drain() {
	defer b.manager.wg.Done()

	for {
		req, ok := b.next()
		if !ok {
			return
		}

		if b.manager.ctx.Err() != nil {
			b.finish(req, Result{Err: ErrStopped})
			continue
		}

		b.process(req)
	}
}

// process serves the head request until it has a terminal result
func (b *bucket) process(req *pendingRequest) {
	retryConfig := b.manager.retryConfig

	for {
		if !b.waitTurn(req) {
			return
		}

		if err := b.manager.global.pace(req.ctx); err != nil {
			b.finish(req, Result{Err: b.abortReason(req, err)})
			return
		}

		b.consume()
		req.attempts++
		req.SetStatus(RequestStatusRunning)
		b.manager.dispatched(req, b)

		resp, body, err := b.manager.send(req)
		if err != nil {
			if reason := b.abortReason(req, nil); reason != nil {
				b.finish(req, Result{Err: reason})
				return
			}

			req.retries++
			if req.retries > retryConfig.MaxRetries {
				b.logger.Printf("request %s failed after %d attempts: %v", req.ID, req.attempts, err)
				b.finish(req, Result{Err: &NetworkError{Route: req.route.String(), Attempts: req.attempts, Err: err}})
				return
			}
			if !b.backoff(req, retryConfig, err.Error()) {
				return
			}
			continue
		}

		req.lastStatus = resp.StatusCode
		headers := rate_limit.ParseHeaders(resp.Header)
		b.update(headers)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if resp.StatusCode == http.StatusNoContent {
				body = nil
			}
			b.finish(req, Result{Body: body, Status: resp.StatusCode})
			return

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter, global := parseTooManyRequests(headers, body)
			req.rateLimitHits++
			b.manager.rateLimited(req, b, retryAfter, global)

			now := time.Now()
			if global {
				b.manager.global.block(now, retryAfter)
			} else {
				b.block(now, retryAfter)
			}

			if req.rateLimitHits > b.manager.maxRateLimitRetries {
				b.logger.Printf("request %s rate limited %d times, giving up", req.ID, req.rateLimitHits)
				b.finish(req, Result{Status: resp.StatusCode, Err: &RateLimitError{
					Route:      req.route.String(),
					Hits:       req.rateLimitHits,
					RetryAfter: retryAfter,
					Global:     global,
				}})
				return
			}

		case retry.IsRetryableStatus(resp.StatusCode):
			req.retries++
			if req.retries > retryConfig.MaxRetries {
				b.logger.Printf("request %s failed with status %d after %d attempts", req.ID, resp.StatusCode, req.attempts)
				b.finish(req, Result{Status: resp.StatusCode, Err: &ServerError{
					Route:    req.route.String(),
					Status:   resp.StatusCode,
					Attempts: req.attempts,
					Body:     body,
				}})
				return
			}
			if !b.backoff(req, retryConfig, http.StatusText(resp.StatusCode)) {
				return
			}

		default:
			b.finish(req, Result{Status: resp.StatusCode, Err: newRequestError(req.route, resp.StatusCode, body)})
			return
		}
	}
}

// waitTurn sleeps while this bucket or the global limiter is exhausted. It returns false when
// req was finished during the wait.
func (b *bucket) waitTurn(req *pendingRequest) bool {
	announced := false
	for {
		now := time.Now()
		wait := b.delay(now)
		globalWait := b.manager.global.delay(now)
		if globalWait > wait {
			wait = globalWait
		}
		if wait <= 0 {
			return true
		}

		if !announced {
			announced = true
			req.SetStatus(RequestStatusWaiting)
			b.manager.waiting(req, b, wait, globalWait > 0)
		}

		if !b.sleep(req, wait) {
			return false
		}
	}
}

// backoff waits before retrying a 5xx or network failure
func (b *bucket) backoff(req *pendingRequest, config retry.Config, reason string) bool {
	delay := config.Delay(req.retries - 1)
	b.manager.retrying(req, b, delay, reason)
	return b.sleep(req, delay)
}

// sleep waits for d unless req is cancelled or the manager stops, in which case req is
// finished and false is returned
func (b *bucket) sleep(req *pendingRequest, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-req.ctx.Done():
		b.finish(req, Result{Err: req.ctx.Err()})
	case <-b.manager.ctx.Done():
		b.finish(req, Result{Err: ErrStopped})
	}
	return false
}

// abortReason tells whether req can no longer be served: cancelled by its caller, or the
// manager stopped. fallback is returned when neither applies.
func (b *bucket) abortReason(req *pendingRequest, fallback error) error {
	if err := req.ctx.Err(); err != nil {
		return err
	}
	if b.manager.ctx.Err() != nil {
		return ErrStopped
	}
	return fallback
}

// finish removes req from the queue and delivers its result
func (b *bucket) finish(req *pendingRequest, result Result) {
	b.manager.mu.Lock()
	b.queue.Remove(req.item)
	if b.active == req {
		b.active = nil
	}
	b.manager.mu.Unlock()

	req.EmitResult(result)
}

func (b *bucket) delay(now time.Time) time.Duration {
	b.manager.mu.Lock()
	defer b.manager.mu.Unlock()
	if !b.state.Exhausted(now) {
		return 0
	}
	return b.state.TimeUntilReset(now)
}

func (b *bucket) consume() {
	b.manager.mu.Lock()
	defer b.manager.mu.Unlock()
	b.state.Consume(time.Now())
	b.lastUsed = time.Now()
}

func (b *bucket) block(now time.Time, d time.Duration) {
	b.manager.mu.Lock()
	defer b.manager.mu.Unlock()
	b.state.Block(now, d)
}

// update applies the quota reported by a response. Without rate-limit headers the local
// decrement done by consume stands.
func (b *bucket) update(headers rate_limit.Headers) {
	if !headers.Present() && headers.Bucket == "" {
		return
	}

	b.manager.mu.Lock()
	defer b.manager.mu.Unlock()
	if headers.Bucket != "" {
		b.hash = headers.Bucket
	}
	b.state.Apply(time.Now(), headers)
}

// snapshot is called with manager.mu held
func (b *bucket) snapshot(now time.Time) BucketState {
	state := BucketState{
		Key:       b.key,
		Hash:      b.hash,
		Limit:     b.state.Limit,
		Remaining: b.state.Remaining,
		Reset:     b.state.Reset,
		ResetIn:   b.state.TimeUntilReset(now),
		Limited:   b.state.Exhausted(now),
		Queued:    b.queue.Size(),
		Running:   b.running,
		LastUsed:  b.lastUsed,
	}
	if b.active != nil {
		state.Active = b.active.ID.String()
		state.ActiveStatus = b.active.GetStatus().String()
	}
	return state
}

// parseTooManyRequests reads the wait and scope of a 429. The JSON body wins over headers
// since it carries sub-second precision on every API version.
func parseTooManyRequests(headers rate_limit.Headers, body []byte) (time.Duration, bool) {
	parsed := gjson.ParseBytes(body)

	retryAfter := headers.RetryAfter
	if value := parsed.Get("retry_after"); value.Exists() {
		retryAfter = rate_limit.Seconds(value.Float())
	}
	if retryAfter <= 0 {
		retryAfter = headers.ResetAfter
	}
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}

	global := headers.Global || headers.Scope == "global" || parsed.Get("global").Bool()
	return retryAfter, global
}

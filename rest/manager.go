package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FrenchMajesty/yuko/clients/transport"
	"github.com/FrenchMajesty/yuko/stats"
	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/FrenchMajesty/yuko/utils/logger"
	"github.com/FrenchMajesty/yuko/utils/retry"
)

// idle buckets are dropped after this long without traffic
const bucketIdleTTL = 5 * time.Minute

// Manager dispatches REST calls. Calls sharing a bucket key run one at a time in submission
// order; different buckets run concurrently, held back only by the global limiter.
type Manager struct {
	token               string
	baseURL             string
	userAgent           string
	timeout             time.Duration
	doer                transport.Doer
	logger              logger.Logger
	retryConfig         retry.Config
	maxRateLimitRetries int
	globalRate          float64
	global              *globalLimiter
	recorder            stats.Recorder
	eventBuffer         int
	statsInterval       time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	sequence atomic.Uint64

	// mu guards the bucket map and every bucket's state and queue
	mu      sync.Mutex
	buckets map[string]*bucket
	closed  bool

	// eventsMu guards closing the outbound channels
	eventsMu     sync.RWMutex
	eventsClosed bool
	eventChan    chan *Event
	records      chan stats.Record
	recorderDone chan struct{}

	statsMu   sync.RWMutex
	counters  counters
	startTime time.Time
}

type counters struct {
	submitted         int
	dispatched        int
	completed         int
	failed            int
	cancelled         int
	retried           int
	rateLimited       int
	globalRateLimited int
}

// New builds a manager authenticating with token
func New(token string, opts ...Option) (*Manager, error) {
	if token == "" {
		return nil, fmt.Errorf("token is required: %w", errs.ErrInvalidArgument)
	}

	m := &Manager{
		token:               token,
		baseURL:             DefaultBaseURL,
		userAgent:           DefaultUserAgent,
		timeout:             DefaultRequestTimeout,
		logger:              logger.NewNoopLogger(),
		retryConfig:         retry.DefaultConfig(),
		maxRateLimitRetries: DefaultMaxRateLimitRetries,
		eventBuffer:         defaultEventBuffer,
		statsInterval:       DefaultStatsInterval,
		buckets:             make(map[string]*bucket),
		startTime:           time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = logger.WithPrefix(m.logger, "rest")
	if m.doer == nil {
		m.doer = transport.NewHTTPClient(m.timeout)
	}
	m.global = newGlobalLimiter(m.globalRate)
	m.eventChan = make(chan *Event, m.eventBuffer)
	m.ctx, m.cancel = context.WithCancel(context.Background())

	if m.recorder != nil {
		m.records = make(chan stats.Record, defaultRecordBuffer)
		m.recorderDone = make(chan struct{})
		go m.recordOutcomes()
	}

	m.wg.Add(1)
	go m.housekeep()

	return m, nil
}

// Request sends payload to route and returns the response body. It blocks until the call
// succeeds, fails terminally or ctx is done. A nil payload sends no body; contentType defaults
// to JSON. A 204 yields a nil body.
func (m *Manager) Request(ctx context.Context, route Route, payload any, contentType ContentType, opts ...RequestOption) ([]byte, error) {
	if route.key == "" {
		return nil, fmt.Errorf("empty route: %w", errs.ErrInvalidArgument)
	}

	encoded, err := encodePayload(payload, contentType)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := newPendingRequest(ctx, route, encoded, opts...)
	b, err := m.enqueue(req)
	if err != nil {
		return nil, err
	}

	select {
	case result := <-req.resultChan:
		return result.Body, result.Err
	case <-ctx.Done():
		if b.remove(req) {
			b.finish(req, Result{Err: ctx.Err()})
		}
		// a request already on the wire reports through its drain goroutine
		result := req.ListenForResult()
		return result.Body, result.Err
	}
}

// RequestJSON is Request followed by decoding the body into out. out may be nil.
func (m *Manager) RequestJSON(ctx context.Context, route Route, payload any, out any, opts ...RequestOption) error {
	body, err := m.Request(ctx, route, payload, ContentTypeJSON, opts...)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", route, err)
	}
	return nil
}

// Stop fails every queued request with ErrStopped, aborts calls in flight and waits for all
// bucket goroutines to exit. The event channel is closed afterwards.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()

	m.logStats(true)

	m.eventsMu.Lock()
	m.eventsClosed = true
	close(m.eventChan)
	if m.records != nil {
		close(m.records)
	}
	m.eventsMu.Unlock()

	if m.recorderDone != nil {
		<-m.recorderDone
	}
}

func (m *Manager) enqueue(req *pendingRequest) (*bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStopped
	}

	key := req.route.Key()
	b, ok := m.buckets[key]
	if !ok {
		b = newBucket(m, key)
		m.buckets[key] = b
	}
	req.AddResultCallback(func(result Result) {
		m.completed(req, b, result)
	})
	b.enqueue(req)

	m.statsMu.Lock()
	m.counters.submitted++
	m.statsMu.Unlock()

	m.emitEvent(EventRequestQueued, req, map[string]any{
		"bucket":     key,
		"queue_size": b.queue.Size(),
	})
	return b, nil
}

// BucketStates returns every known bucket, sorted by key
func (m *Manager) BucketStates() []BucketState {
	now := time.Now()

	m.mu.Lock()
	states := make([]BucketState, 0, len(m.buckets))
	for _, b := range m.buckets {
		states = append(states, b.snapshot(now))
	}
	m.mu.Unlock()

	sort.Slice(states, func(i, j int) bool { return states[i].Key < states[j].Key })
	return states
}

// housekeep drops idle buckets every minute and logs activity every statsInterval
func (m *Manager) housekeep() {
	defer m.wg.Done()

	sweeper := time.NewTicker(time.Minute)
	defer sweeper.Stop()

	var statsTick <-chan time.Time
	if m.statsInterval > 0 {
		statsTicker := time.NewTicker(m.statsInterval)
		defer statsTicker.Stop()
		statsTick = statsTicker.C
	}

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-sweeper.C:
			m.sweep(now)
		case <-statsTick:
			m.logStats(false)
		}
	}
}

func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	swept := 0
	for key, b := range m.buckets {
		if b.running || b.queue.Size() > 0 || b.state.Exhausted(now) {
			continue
		}
		if now.Sub(b.lastUsed) < bucketIdleTTL {
			continue
		}
		delete(m.buckets, key)
		swept++
	}
	return swept
}

// recordOutcomes feeds the recorder off the dispatch path
func (m *Manager) recordOutcomes() {
	defer close(m.recorderDone)

	for record := range m.records {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := m.recorder.Record(ctx, record); err != nil {
			m.logger.Printf("failed to record outcome of %s: %v", record.RequestID, err)
		}
		cancel()
	}
}

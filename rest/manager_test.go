package rest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FrenchMajesty/yuko/clients/transport"
	"github.com/FrenchMajesty/yuko/rate_limit"
	"github.com/FrenchMajesty/yuko/stats"
	"github.com/FrenchMajesty/yuko/utils/errs"
	"github.com/FrenchMajesty/yuko/utils/logger"
	"github.com/FrenchMajesty/yuko/utils/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type requestOutcome struct {
	body []byte
	err  error
}

func testRetryConfig() retry.Config {
	return retry.Config{
		MaxRetries:      3,
		BaseDelay:       5 * time.Millisecond,
		MaxDelay:        20 * time.Millisecond,
		BackoffMultiple: 2,
	}
}

func newTestManager(t *testing.T, baseURL string, opts ...Option) *Manager {
	defaults := []Option{
		WithBaseURL(baseURL),
		WithRetryConfig(testRetryConfig()),
		WithMaxRateLimitRetries(3),
	}
	m, err := New("test-token", append(defaults, opts...)...)
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m
}

// submitInOrder starts one Request per payload and waits for each to be queued before
// starting the next, so submission order is deterministic
func submitInOrder(t *testing.T, m *Manager, ctxs []context.Context, route Route, payloads []any) []chan requestOutcome {
	outcomes := make([]chan requestOutcome, len(payloads))
	base := m.GetStats().Submitted

	for i, payload := range payloads {
		outcomes[i] = make(chan requestOutcome, 1)
		go func(ctx context.Context, payload any, out chan requestOutcome) {
			body, err := m.Request(ctx, route, payload, ContentTypeJSON)
			out <- requestOutcome{body: body, err: err}
		}(ctxs[i], payload, outcomes[i])

		expected := base + i + 1
		require.Eventually(t, func() bool { return m.GetStats().Submitted == expected }, time.Second, time.Millisecond)
	}
	return outcomes
}

func backgrounds(n int) []context.Context {
	ctxs := make([]context.Context, n)
	for i := range ctxs {
		ctxs[i] = context.Background()
	}
	return ctxs
}

func receive(t *testing.T, ch chan requestOutcome) requestOutcome {
	select {
	case outcome := <-ch:
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("request did not complete in time")
		return requestOutcome{}
	}
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestRequest_SendsHeadersAndUpdatesBucket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bot test-token", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "spring%20cleaning", r.Header.Get("X-Audit-Log-Reason"))
		assert.Equal(t, "/channels/1/messages", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "hello", gjson.GetBytes(body, "content").String())

		w.Header().Set(rate_limit.HeaderBucket, "abcd1234")
		w.Header().Set(rate_limit.HeaderLimit, "5")
		w.Header().Set(rate_limit.HeaderRemaining, "4")
		w.Header().Set(rate_limit.HeaderResetAfter, "10")
		w.Write([]byte(`{"id":"42","content":"hello"}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	route := MustRoute("POST", "/channels/1/messages")

	body, err := m.Request(context.Background(), route, map[string]string{"content": "hello"}, ContentTypeJSON, WithReason("spring cleaning"))
	require.NoError(t, err)
	assert.Equal(t, "42", gjson.GetBytes(body, "id").String())

	states := m.BucketStates()
	require.Len(t, states, 1)
	assert.Equal(t, route.Key(), states[0].Key)
	assert.Equal(t, "abcd1234", states[0].Hash)
	assert.Equal(t, 5, states[0].Limit)
	assert.Equal(t, 4, states[0].Remaining)
	assert.False(t, states[0].Limited)
}

func TestRequest_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Type"), "no payload means no body")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	body, err := m.Request(context.Background(), MustRoute("DELETE", "/channels/1/pins/2"), nil, "")
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestRequestJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url":"wss://gateway.example","shards":2}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	var out struct {
		URL    string `json:"url"`
		Shards int    `json:"shards"`
	}
	require.NoError(t, m.RequestJSON(context.Background(), MustRoute("GET", "/gateway/bot"), nil, &out))
	assert.Equal(t, "wss://gateway.example", out.URL)
	assert.Equal(t, 2, out.Shards)
}

func TestRequest_InvalidArguments(t *testing.T) {
	m := newTestManager(t, "http://127.0.0.1:1")

	_, err := m.Request(context.Background(), Route{}, nil, "")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = m.Request(context.Background(), MustRoute("POST", "/channels/1/messages"), make(chan int), ContentTypeJSON)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = m.Request(context.Background(), MustRoute("POST", "/channels/1/messages"), []byte("{not json"), ContentTypeJSON)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = m.Request(context.Background(), MustRoute("POST", "/channels/1/messages"), "text", ContentTypeMultipart)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	assert.Equal(t, 0, m.GetStats().Submitted, "invalid requests never reach a queue")
}

func TestRequest_SameBucketResolvesInSubmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int64
	var arrivals []time.Time

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		n := gjson.GetBytes(body, "n").Int()

		mu.Lock()
		order = append(order, n)
		arrivals = append(arrivals, time.Now())
		first := len(order) == 1
		mu.Unlock()

		w.Header().Set(rate_limit.HeaderLimit, "5")
		if first {
			w.Header().Set(rate_limit.HeaderRemaining, "0")
			w.Header().Set(rate_limit.HeaderResetAfter, "0.2")
		} else {
			w.Header().Set(rate_limit.HeaderRemaining, "4")
			w.Header().Set(rate_limit.HeaderResetAfter, "5")
		}
		w.Write([]byte(`{"n":` + strconv.FormatInt(n, 10) + `}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	route := MustRoute("POST", "/channels/1/messages")

	payloads := make([]any, 5)
	for i := range payloads {
		payloads[i] = map[string]int{"n": i}
	}
	outcomes := submitInOrder(t, m, backgrounds(5), route, payloads)

	for i, ch := range outcomes {
		outcome := receive(t, ch)
		require.NoError(t, outcome.err)
		assert.Equal(t, int64(i), gjson.GetBytes(outcome.body, "n").Int())
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, order)
	assert.GreaterOrEqual(t, arrivals[1].Sub(arrivals[0]), 190*time.Millisecond, "second request waits for the reset")
}

func TestRequest_DifferentBucketsDoNotBlockEachOther(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/channels/1/messages" {
			w.Header().Set(rate_limit.HeaderLimit, "1")
			w.Header().Set(rate_limit.HeaderRemaining, "0")
			w.Header().Set(rate_limit.HeaderResetAfter, "60")
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	limited := MustRoute("POST", "/channels/1/messages")

	_, err := m.Request(context.Background(), limited, nil, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	go m.Request(ctx, limited, nil, "")

	start := time.Now()
	_, err = m.Request(context.Background(), MustRoute("POST", "/channels/2/messages"), nil, "")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRequest_RetriesAfter429(t *testing.T) {
	var mu sync.Mutex
	var arrivals []time.Time

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		attempt := len(arrivals)
		mu.Unlock()

		if attempt == 1 {
			w.Header().Set(rate_limit.HeaderRetryAfter, "2")
			w.Header().Set(rate_limit.HeaderScope, "user")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"You are being rate limited.","retry_after":2.0,"global":false}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	body, err := m.Request(context.Background(), MustRoute("GET", "/users/@me"), nil, "")
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(body, "ok").Bool())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, arrivals, 2)
	assert.GreaterOrEqual(t, arrivals[1].Sub(arrivals[0]), 2*time.Second)

	s := m.GetStats()
	assert.Equal(t, 1, s.RateLimited)
	assert.Equal(t, 0, s.GlobalRateLimited)
	assert.Equal(t, 1, s.Completed)
}

func TestRequest_Global429HoldsEveryBucket(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set(rate_limit.HeaderGlobal, "true")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"You are being rate limited.","retry_after":0.2,"global":true}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	start := time.Now()
	_, err := m.Request(context.Background(), MustRoute("GET", "/users/@me"), nil, "")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	s := m.GetStats()
	assert.Equal(t, 1, s.GlobalRateLimited)
	assert.Equal(t, 1, s.Global.BlockedCount)
}

func TestRequest_GlobalLimitHoldsAllBuckets(t *testing.T) {
	var mu sync.Mutex
	arrivals := map[string]time.Time{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals[r.URL.Path] = time.Now()
		mu.Unlock()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	blockedAt := time.Now()
	m.global.block(blockedAt, 300*time.Millisecond)
	assert.True(t, m.GetStats().Global.Limited)

	var wg sync.WaitGroup
	for _, path := range []string{"/channels/1/messages", "/channels/2/messages"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			_, err := m.Request(context.Background(), MustRoute("GET", path), nil, "")
			assert.NoError(t, err)
		}(path)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, arrivals, 2)
	for path, at := range arrivals {
		assert.GreaterOrEqual(t, at.Sub(blockedAt), 300*time.Millisecond, path)
	}
	assert.False(t, m.GetStats().Global.Limited)
}

func TestRequest_RateLimitExceeded(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"retry_after":0.01,"global":false}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, WithMaxRateLimitRetries(2))

	_, err := m.Request(context.Background(), MustRoute("GET", "/users/@me"), nil, "")
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	var rateLimitErr *RateLimitError
	require.ErrorAs(t, err, &rateLimitErr)
	assert.Equal(t, 3, rateLimitErr.Hits)
	assert.Equal(t, 10*time.Millisecond, rateLimitErr.RetryAfter)
	assert.False(t, rateLimitErr.Global)
	assert.Equal(t, int32(3), hits.Load())
}

func TestRequest_ServerErrorExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"500: Internal Server Error","code":0}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	_, err := m.Request(context.Background(), MustRoute("GET", "/users/@me"), nil, "")
	assert.ErrorIs(t, err, ErrServer)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusInternalServerError, serverErr.Status)
	assert.Equal(t, 4, serverErr.Attempts)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(4), hits.Load(), "no attempts after the retry budget")
	assert.Equal(t, 3, m.GetStats().Retried)
}

func TestRequest_ServerErrorRecovers(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	body, err := m.Request(context.Background(), MustRoute("GET", "/users/@me"), nil, "")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestRequest_ClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Missing Permissions","code":50013}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)

	_, err := m.Request(context.Background(), MustRoute("DELETE", "/channels/1/messages/2"), nil, "")

	var requestErr *RequestError
	require.ErrorAs(t, err, &requestErr)
	assert.Equal(t, http.StatusForbidden, requestErr.Status)
	assert.Equal(t, 50013, requestErr.Code)
	assert.Equal(t, "Missing Permissions", requestErr.Message)
	assert.Contains(t, err.Error(), "Missing Permissions")
	assert.Equal(t, int32(1), hits.Load())
}

func TestRequest_NetworkErrorExhaustsRetries(t *testing.T) {
	doer := transport.NewMockDoer()
	doer.On("Do", mock.Anything).Return(nil, errors.New("connection reset by peer"))

	m := newTestManager(t, "http://api.invalid", WithDoer(doer))

	_, err := m.Request(context.Background(), MustRoute("GET", "/users/@me"), nil, "")
	assert.ErrorIs(t, err, ErrNetwork)

	var networkErr *NetworkError
	require.ErrorAs(t, err, &networkErr)
	assert.Equal(t, 4, networkErr.Attempts)
	assert.Contains(t, networkErr.Error(), "connection reset by peer")
	doer.AssertNumberOfCalls(t, "Do", 4)
}

func TestRequest_LocalDecrementWithoutHeaders(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set(rate_limit.HeaderLimit, "2")
			w.Header().Set(rate_limit.HeaderRemaining, "1")
			w.Header().Set(rate_limit.HeaderResetAfter, "60")
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	route := MustRoute("GET", "/guilds/1/roles")

	_, err := m.Request(context.Background(), route, nil, "")
	require.NoError(t, err)
	_, err = m.Request(context.Background(), route, nil, "")
	require.NoError(t, err)

	states := m.BucketStates()
	require.Len(t, states, 1)
	assert.Equal(t, 0, states[0].Remaining)
	assert.True(t, states[0].Limited)
}

func TestRequest_CancelledCallersLeaveTheQueue(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set(rate_limit.HeaderLimit, "1")
		w.Header().Set(rate_limit.HeaderRemaining, "0")
		w.Header().Set(rate_limit.HeaderResetAfter, "60")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	route := MustRoute("POST", "/channels/1/messages")

	_, err := m.Request(context.Background(), route, nil, "")
	require.NoError(t, err)

	// the first waiter is served by the drain goroutine, the second still sits in the queue
	ctx1, cancel1 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel1()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()

	outcomes := submitInOrder(t, m, []context.Context{ctx1, ctx2}, route, []any{nil, nil})
	for _, ch := range outcomes {
		outcome := receive(t, ch)
		assert.ErrorIs(t, outcome.err, context.DeadlineExceeded)
	}

	require.Eventually(t, func() bool {
		states := m.BucketStates()
		return len(states) == 1 && states[0].Queued == 0 && !states[0].Running
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 2, m.GetStats().Cancelled)
}

func TestRequest_CancelledBeforeSubmit(t *testing.T) {
	m := newTestManager(t, "http://127.0.0.1:1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Request(ctx, MustRoute("GET", "/users/@me"), nil, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.GetStats().Submitted)
}

func TestRequest_Multipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "look at this", gjson.Get(r.FormValue("payload_json"), "content").String())
		assert.Equal(t, "1", r.FormValue("tts"))

		files := r.MultipartForm.File["files[0]"]
		if !assert.Len(t, files, 1) {
			return
		}
		assert.Equal(t, "cat.png", files[0].Filename)
		assert.Equal(t, "image/png", files[0].Header.Get("Content-Type"))

		f, err := files[0].Open()
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(f)
		assert.Equal(t, "not really a png", string(data))

		w.Write([]byte(`{"id":"9"}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	payload := Multipart{
		JSON:   map[string]string{"content": "look at this"},
		Fields: map[string]string{"tts": "1"},
		Files:  []File{{Name: "cat.png", ContentType: "image/png", Data: []byte("not really a png")}},
	}

	body, err := m.Request(context.Background(), MustRoute("POST", "/channels/1/messages"), payload, ContentTypeMultipart)
	require.NoError(t, err)
	assert.Equal(t, "9", gjson.GetBytes(body, "id").String())
}

func TestStop_FailsQueuedRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(rate_limit.HeaderLimit, "1")
		w.Header().Set(rate_limit.HeaderRemaining, "0")
		w.Header().Set(rate_limit.HeaderResetAfter, "60")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	route := MustRoute("GET", "/users/@me")

	_, err := m.Request(context.Background(), route, nil, "")
	require.NoError(t, err)

	outcomes := submitInOrder(t, m, backgrounds(2), route, []any{nil, nil})
	m.Stop()

	for _, ch := range outcomes {
		assert.ErrorIs(t, receive(t, ch).err, ErrStopped)
	}

	_, err = m.Request(context.Background(), route, nil, "")
	assert.ErrorIs(t, err, ErrStopped)

	m.Stop()
}

func TestEventsAndRecorder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/@me" {
			w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Unknown Channel","code":10003}`))
	}))
	defer server.Close()

	recorder := stats.NewMemoryRecorder()
	m := newTestManager(t, server.URL, WithRecorder(recorder))

	_, err := m.Request(context.Background(), MustRoute("GET", "/users/@me"), nil, "")
	require.NoError(t, err)
	_, err = m.Request(context.Background(), MustRoute("GET", "/channels/404"), nil, "")
	require.Error(t, err)

	m.Stop()

	seen := map[EventType]int{}
	for event := range m.Events() {
		seen[event.Type]++
		assert.NotEmpty(t, event.RequestID)
	}
	assert.Equal(t, 2, seen[EventRequestQueued])
	assert.Equal(t, 2, seen[EventRequestDispatched])
	assert.Equal(t, 1, seen[EventRequestCompleted])
	assert.Equal(t, 1, seen[EventRequestFailed])

	total := recorder.Total()
	assert.Equal(t, int64(1), total[stats.OutcomeSuccess])
	assert.Equal(t, int64(1), total[stats.OutcomeRequestError])
	assert.Equal(t, int64(1), recorder.ByRoute()["GET /users/@me"][stats.OutcomeSuccess])
}

func TestSweep_DropsIdleBuckets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	_, err := m.Request(context.Background(), MustRoute("GET", "/users/@me"), nil, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !m.BucketStates()[0].Running }, time.Second, time.Millisecond)

	assert.Equal(t, 0, m.sweep(time.Now()), "recently used buckets stay")
	assert.Equal(t, 1, m.sweep(time.Now().Add(bucketIdleTTL+time.Second)))
	assert.Empty(t, m.BucketStates())
}

func TestGlobalRate_PacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, WithGlobalRate(10))
	assert.Equal(t, float64(10), m.GetStats().Global.RequestsPerSec)

	start := time.Now()
	for i := 0; i < 12; i++ {
		_, err := m.Request(context.Background(), MustRoute("GET", "/users/@me"), nil, "")
		require.NoError(t, err)
	}
	// burst of 10, then one token every 100ms
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

// lockedBuffer lets the test read log output while the manager writes it
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWaitingRequest_ReportedInStateAndPeriodicLog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(rate_limit.HeaderLimit, "1")
		w.Header().Set(rate_limit.HeaderRemaining, "0")
		w.Header().Set(rate_limit.HeaderResetAfter, "60")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var out lockedBuffer
	m := newTestManager(t, server.URL,
		WithLogger(logger.NewWriterLogger(&out)),
		WithStatsInterval(10*time.Millisecond),
	)
	route := MustRoute("GET", "/guilds/1/members")

	_, err := m.Request(context.Background(), route, nil, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	outcomes := submitInOrder(t, m, []context.Context{ctx}, route, []any{nil})

	require.Eventually(t, func() bool {
		states := m.BucketStates()
		return len(states) == 1 && states[0].Active != "" && states[0].ActiveStatus == "waiting"
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[rest] Buckets(1 running/1 limited/1 total)")
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, receive(t, outcomes[0]).err, context.Canceled)

	// completion bookkeeping runs as a result callback of the request
	require.Eventually(t, func() bool {
		s := m.GetStats()
		return s.Cancelled == 1 && s.Completed == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, m.BucketStates()[0].ActiveStatus)
}

func TestPendingRequest_ResultCallbacksRunOnce(t *testing.T) {
	req := newPendingRequest(context.Background(), MustRoute("GET", "/users/@me"), encodedPayload{})
	assert.Equal(t, RequestStatusQueued, req.GetStatus())

	var calls atomic.Int32
	req.AddResultCallback(func(result Result) {
		calls.Add(1)
		assert.Equal(t, 204, result.Status)
	})

	assert.True(t, req.EmitResult(Result{Status: 204}))
	assert.False(t, req.EmitResult(Result{Err: ErrStopped}))

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, RequestStatusCompleted, req.GetStatus())
	assert.Equal(t, 204, req.ListenForResult().Status)
}

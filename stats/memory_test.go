package stats

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecorder(t *testing.T) {
	recorder := NewMemoryRecorder()
	ctx := context.Background()

	recorder.Record(ctx, Record{Route: "GET /users/@me", Outcome: OutcomeSuccess})
	recorder.Record(ctx, Record{Route: "GET /users/@me", Outcome: OutcomeSuccess})
	recorder.Record(ctx, Record{Route: "POST /channels/1/messages", Outcome: OutcomeRateLimited})

	total := recorder.Total()
	assert.Equal(t, int64(2), total[OutcomeSuccess])
	assert.Equal(t, int64(1), total[OutcomeRateLimited])
	assert.Equal(t, int64(3), total.Total())
	assert.Equal(t, 3, recorder.Len())

	byRoute := recorder.ByRoute()
	assert.Equal(t, int64(2), byRoute["GET /users/@me"][OutcomeSuccess])
	assert.Equal(t, int64(1), byRoute["POST /channels/1/messages"][OutcomeRateLimited])

	// snapshots are copies
	byRoute["GET /users/@me"][OutcomeSuccess] = 100
	assert.Equal(t, int64(2), recorder.ByRoute()["GET /users/@me"][OutcomeSuccess])
}

func TestMemoryRecorder_Concurrent(t *testing.T) {
	recorder := NewMemoryRecorder()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.Record(context.Background(), Record{Route: "GET /gateway/bot", Outcome: OutcomeSuccess})
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), recorder.Total()[OutcomeSuccess])
}

func TestTotalOf(t *testing.T) {
	recorder := NewMemoryRecorder()
	require.NoError(t, recorder.Record(context.Background(), Record{Route: "GET/gateway", Outcome: OutcomeSuccess}))

	counters, err := TotalOf(context.Background(), recorder)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters[OutcomeSuccess])

	_, err = TotalOf(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}

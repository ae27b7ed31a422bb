package server

import (
	"io"
	"sync"

	"github.com/FrenchMajesty/yuko/rest"
	"github.com/FrenchMajesty/yuko/utils/logger"
	"github.com/gin-gonic/gin"
)

const subscriberBuffer = 64

// broadcaster fans dispatcher events out to every connected stream. Slow subscribers lose
// events instead of holding back the others.
type broadcaster struct {
	logger logger.Logger

	mu          sync.Mutex
	subscribers map[chan *rest.Event]struct{}
	closed      bool
	dropped     int
}

func newBroadcaster(l logger.Logger) *broadcaster {
	return &broadcaster{
		logger:      l,
		subscribers: make(map[chan *rest.Event]struct{}),
	}
}

// run relays events until the source channel is closed
func (b *broadcaster) run(events <-chan *rest.Event) {
	for event := range events {
		b.mu.Lock()
		for sub := range b.subscribers {
			select {
			case sub <- event:
			default:
				b.dropped++
			}
		}
		b.mu.Unlock()
	}

	b.close()
}

// subscribe returns a channel of events, closed when the broadcaster stops. The second
// result unsubscribes.
func (b *broadcaster) subscribe() (<-chan *rest.Event, func()) {
	sub := make(chan *rest.Event, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub)
		return sub, func() {}
	}
	b.subscribers[sub] = struct{}{}

	return sub, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[sub]; ok {
			delete(b.subscribers, sub)
			close(sub)
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscribers {
		delete(b.subscribers, sub)
		close(sub)
	}
	if b.dropped > 0 {
		b.logger.Printf("event stream closed, %d events dropped for slow subscribers", b.dropped)
	}
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// events streams dispatcher events as server-sent events, starting with a stats snapshot
func (s *Server) events(c *gin.Context) {
	sub, unsubscribe := s.broadcaster.subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.SSEvent("stats", s.source.GetStats())
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

package stats

import (
	"context"
	"sync"
)

// MemoryRecorder keeps counters in process. It never expires anything.
type MemoryRecorder struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	records int
}

var _ Recorder = (*MemoryRecorder)(nil)

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		total:   make(Counters),
		byRoute: make(map[string]Counters),
	}
}

func (m *MemoryRecorder) Record(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records++
	m.total[rec.Outcome]++

	route := m.byRoute[rec.Route]
	if route == nil {
		route = make(Counters)
		m.byRoute[rec.Route] = route
	}
	route[rec.Outcome]++
	return nil
}

func (m *MemoryRecorder) Total() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(Counters, len(m.total))
	for k, v := range m.total {
		out[k] = v
	}
	return out
}

func (m *MemoryRecorder) ByRoute() map[string]Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Counters, len(m.byRoute))
	for route, counters := range m.byRoute {
		copied := make(Counters, len(counters))
		for k, v := range counters {
			copied[k] = v
		}
		out[route] = copied
	}
	return out
}

// Len returns how many records were seen
func (m *MemoryRecorder) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records
}

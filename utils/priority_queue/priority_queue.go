package priority_queue

import (
	"container/heap"
	"sort"
	"sync"
)

// QueueItem is a wrapper around the item to be stored in the priority queue.
// Keep the pointer returned to Push around to Remove the item later.
type QueueItem[T any] struct {
	Item     T
	Priority int
	index    int
	sequence uint64
}

// PriorityQueue is a thread-safe priority queue that wraps the heapQueue implementation.
// Items with equal priority are served first in, first out.
type PriorityQueue[T any] struct {
	queue    *heapQueue[T]
	sequence uint64
	mutex    sync.Mutex
}

// NewMaxPriorityQueue creates a max heap (higher priority values come first)
func NewMaxPriorityQueue[T any]() *PriorityQueue[T] {
	return newPriorityQueue[T](func(i, j int) bool { return i > j })
}

// NewMinPriorityQueue creates a min heap (lower priority values come first)
func NewMinPriorityQueue[T any]() *PriorityQueue[T] {
	return newPriorityQueue[T](func(i, j int) bool { return i < j })
}

// NewPriorityQueue creates a max heap
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return NewMaxPriorityQueue[T]()
}

func newPriorityQueue[T any](less func(i, j int) bool) *PriorityQueue[T] {
	priorityQueue := &PriorityQueue[T]{
		queue: &heapQueue[T]{
			items: make([]*QueueItem[T], 0),
			less:  less,
		},
	}

	heap.Init(priorityQueue.queue)
	return priorityQueue
}

// Push adds an item to the queue and returns the new size
func (pq *PriorityQueue[T]) Push(item *QueueItem[T]) int {
	pq.mutex.Lock()
	defer pq.mutex.Unlock()
	pq.sequence++
	item.sequence = pq.sequence
	heap.Push(pq.queue, item)
	return len(pq.queue.items)
}

// Pop removes and returns the item with the highest priority. ok is false on an empty queue.
func (pq *PriorityQueue[T]) Pop() (item T, size int, ok bool) {
	pq.mutex.Lock()
	defer pq.mutex.Unlock()
	if len(pq.queue.items) == 0 {
		return item, 0, false
	}
	popped := heap.Pop(pq.queue).(*QueueItem[T])
	return popped.Item, len(pq.queue.items), true
}

// Peek returns the item Pop would return without removing it
func (pq *PriorityQueue[T]) Peek() (item T, ok bool) {
	pq.mutex.Lock()
	defer pq.mutex.Unlock()
	if len(pq.queue.items) == 0 {
		return item, false
	}
	return pq.queue.items[0].Item, true
}

// Remove takes a specific item out of the queue. It returns false if the item was not queued.
func (pq *PriorityQueue[T]) Remove(item *QueueItem[T]) bool {
	pq.mutex.Lock()
	defer pq.mutex.Unlock()
	if item.index < 0 || item.index >= len(pq.queue.items) || pq.queue.items[item.index] != item {
		return false
	}
	heap.Remove(pq.queue, item.index)
	return true
}

// Size returns the number of items in the priority queue
func (pq *PriorityQueue[T]) Size() int {
	pq.mutex.Lock()
	defer pq.mutex.Unlock()
	return len(pq.queue.items)
}

// GetSnapshot returns a copy of all items in the priority queue in the order they would be
// popped, without modifying the queue.
func (pq *PriorityQueue[T]) GetSnapshot() []T {
	pq.mutex.Lock()
	ordered := make([]*QueueItem[T], len(pq.queue.items))
	copy(ordered, pq.queue.items)
	pq.mutex.Unlock()

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Priority == b.Priority {
			return a.sequence < b.sequence
		}
		return pq.queue.less(a.Priority, b.Priority)
	})

	items := make([]T, len(ordered))
	for i, item := range ordered {
		items[i] = item.Item
	}
	return items
}

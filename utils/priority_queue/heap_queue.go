package priority_queue

import "container/heap"

// heapQueue implements heap.Interface over QueueItem elements. Items of equal priority come
// out in the order they were pushed.
type heapQueue[T any] struct {
	items []*QueueItem[T]
	less  func(i, j int) bool
}

var _ heap.Interface = &heapQueue[any]{}

func (pq heapQueue[T]) Len() int { return len(pq.items) }
func (pq heapQueue[T]) Less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.Priority == b.Priority {
		return a.sequence < b.sequence
	}
	return pq.less(a.Priority, b.Priority)
}
func (pq heapQueue[T]) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].index = i
	pq.items[j].index = j
}

func (pq *heapQueue[T]) Push(item any) {
	n := len(pq.items)
	itemI := item.(*QueueItem[T])
	itemI.index = n
	pq.items = append(pq.items, itemI)
}

func (pq *heapQueue[T]) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // don't stop the GC from reclaiming the item eventually
	item.index = -1 // marks the item as no longer queued
	pq.items = old[0 : n-1]
	return item
}

package order

import (
	"container/heap"
	"sync"

	"main/internal/schema"
)

// Queue holds admitted orders until the submission worker drains them.
// Lower priority values are polled first; equal priorities are polled
// in admission order.
type Queue struct {
	mu  sync.Mutex
	h   orderHeap
	seq uint64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Offer inserts an admitted order.
func (q *Queue) Offer(po schema.PrioritizedOrder) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.h, queuedOrder{order: po, seq: q.seq})
}

// Poll removes and returns the highest-priority order.
func (q *Queue) Poll() (schema.PrioritizedOrder, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return schema.PrioritizedOrder{}, false
	}
	item := heap.Pop(&q.h).(queuedOrder)
	return item.order, true
}

// Len returns the number of queued orders.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

type queuedOrder struct {
	order schema.PrioritizedOrder
	seq   uint64
}

type orderHeap []queuedOrder

func (h orderHeap) Len() int { return len(h) }

func (h orderHeap) Less(i, j int) bool {
	if h[i].order.Priority != h[j].order.Priority {
		return h[i].order.Priority < h[j].order.Priority
	}
	return h[i].seq < h[j].seq
}

func (h orderHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *orderHeap) Push(x any) {
	*h = append(*h, x.(queuedOrder))
}

func (h *orderHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

package worker

import "sync"

// Queue is an unbounded FIFO of progress values with one writer (the worker)
// and one reader (the coordinator's caller). Push never blocks.
type Queue struct {
	mu    sync.Mutex
	items []float64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a value.
func (q *Queue) Push(v float64) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
}

// Pop removes the oldest value. ok is false when the queue is empty.
func (q *Queue) Pop() (v float64, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return 0, false
	}
	v = q.items[0]
	q.items[0] = 0
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return v, true
}

// Len returns the number of queued values.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

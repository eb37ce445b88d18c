package queue

import (
	"sync"

	"github.com/ghalamif/BrewFlow/internal/ports"
)

// MemQueue is a bounded in-memory queue that preserves FIFO ordering. When full
// it rejects new items, or evicts the oldest one when built with evictOldest.
type MemQueue[T any] struct {
	mu          sync.Mutex
	data        []T
	cap         int
	evictOldest bool
	evicted     uint64
}

func NewMemQueue[T any](capacity int, evictOldest bool) *MemQueue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &MemQueue[T]{
		data:        make([]T, 0, capacity),
		cap:         capacity,
		evictOldest: evictOldest,
	}
}

func (q *MemQueue[T]) Enqueue(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cap == 0 {
		return false
	}
	if len(q.data) >= q.cap {
		if !q.evictOldest {
			return false
		}
		var zero T
		q.data[0] = zero
		q.data = append(q.data[:0], q.data[1:]...)
		q.evicted++
	}
	q.data = append(q.data, item)
	return true
}

func (q *MemQueue[T]) DequeueBatch(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return nil
	}
	if max <= 0 || max > len(q.data) {
		max = len(q.data)
	}
	out := make([]T, max)
	copy(out, q.data[:max])
	q.data = append(q.data[:0], q.data[max:]...)
	return out
}

func (q *MemQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

func (q *MemQueue[T]) Cap() int { return q.cap }

// Evicted counts items dropped from the head to make room.
func (q *MemQueue[T]) Evicted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

var _ ports.Queue[int] = (*MemQueue[int])(nil)

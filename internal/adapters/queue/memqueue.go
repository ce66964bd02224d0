package queue

import (
	"sync"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

// MemQueue is a bounded FIFO of frames backed by a ring buffer.
type MemQueue struct {
	mu    sync.Mutex
	buf   []ports.QueuedFrame
	head  int
	count int
	ready chan struct{}
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &MemQueue{
		buf:   make([]ports.QueuedFrame, capacity),
		ready: make(chan struct{}, 1),
	}
}

func (q *MemQueue) Enqueue(id ports.WALEntryID, f *domain.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = ports.QueuedFrame{ID: id, Frame: f}
	q.count++
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

func (q *MemQueue) DequeueBatch(max int) []ports.QueuedFrame {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	if max <= 0 || max > q.count {
		max = q.count
	}
	out := make([]ports.QueuedFrame, max)
	for i := range out {
		slot := (q.head + i) % len(q.buf)
		out[i] = q.buf[slot]
		q.buf[slot] = ports.QueuedFrame{}
	}
	q.head = (q.head + max) % len(q.buf)
	q.count -= max
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap is the fixed capacity.
func (q *MemQueue) Cap() int { return len(q.buf) }

// Ready is signalled after an enqueue; consumers may wait on it instead of
// polling.
func (q *MemQueue) Ready() <-chan struct{} { return q.ready }

var _ ports.FrameQueue = (*MemQueue)(nil)

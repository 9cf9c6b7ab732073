package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/jersme/enviro/internal/domain"
	"github.com/jersme/enviro/internal/ports"
)

// ErrStoreFull is returned by Append when a rejecting store is at capacity.
var ErrStoreFull = errors.New("queue: memory store full")

// MemStore is a bounded in-memory reading store that preserves append order.
// When full it either evicts the oldest reading (ring mode) or rejects the
// append. Readers on other goroutines (status server) may call Latest and
// Snapshot while the sampler appends.
type MemStore struct {
	mu     sync.Mutex
	data   []domain.Reading
	cap    int
	evict  bool
	closed bool
}

func NewMemStore(capacity int, evictOldest bool) *MemStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemStore{
		data:  make([]domain.Reading, 0, capacity),
		cap:   capacity,
		evict: evictOldest,
	}
}

func (q *MemStore) Name() string { return "memory" }

func (q *MemStore) Append(_ context.Context, r domain.Reading) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		if !q.evict {
			return ErrStoreFull
		}
		q.data = append(q.data[:0], q.data[1:]...)
	}
	q.data = append(q.data, r.Clone())
	return nil
}

// Snapshot copies every stored reading, oldest first.
func (q *MemStore) Snapshot() []domain.Reading {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Reading, len(q.data))
	for i, r := range q.data {
		out[i] = r.Clone()
	}
	return out
}

func (q *MemStore) Latest() (domain.Reading, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) == 0 {
		return domain.Reading{}, false
	}
	return q.data[len(q.data)-1].Clone(), true
}

func (q *MemStore) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Close marks the store closed; stored readings stay readable.
func (q *MemStore) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *MemStore) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

var _ ports.Sink = (*MemStore)(nil)

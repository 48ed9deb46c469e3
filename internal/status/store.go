// Package status holds the most recently published classification result.
// The processing loop is the only writer; API handlers read lock-free.
package status

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/smartpark/internal/frame"
	"github.com/iliyamo/smartpark/internal/model"
)

// Snapshot is one published cycle.  It is immutable once passed to
// Publish; readers share it by pointer.
//
// Fields:
//   - Seq: publication counter assigned by the store.
//   - Spaces: per-region status in catalog order.
//   - Status: aggregate counters for Spaces.
//   - Frame: the frame the cycle classified, nil before the first frame.
//   - PublishedAt: when the snapshot was stored.
type Snapshot struct {
	Seq         uint64
	Spaces      []model.RegionStatus
	Status      model.AggregateStatus
	Frame       *frame.Frame
	PublishedAt time.Time
}

// Equal reports whether two snapshots describe the same lot state.  Only
// Spaces and Status take part; the frame and bookkeeping fields differ on
// every cycle.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Status != o.Status || len(s.Spaces) != len(o.Spaces) {
		return false
	}
	for i := range s.Spaces {
		if !s.Spaces[i].Equal(o.Spaces[i]) {
			return false
		}
	}
	return true
}

// Listener is called with the new snapshot after a change.  It runs on the
// publisher's goroutine and must return quickly.
type Listener func(*Snapshot)

// Store is safe for concurrent use.
type Store struct {
	cur atomic.Pointer[Snapshot]
	now func() time.Time

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// NewStore returns a store holding an empty snapshot.
func NewStore() *Store {
	s := &Store{now: time.Now, listeners: make(map[int]Listener)}
	s.cur.Store(&Snapshot{})
	return s
}

// Current returns the latest snapshot.  It never returns nil.
func (s *Store) Current() *Snapshot { return s.cur.Load() }

// Publish installs next as the current snapshot in a single pointer swap
// and reports whether it differs from the previous one.  Listeners only
// hear about changes.
func (s *Store) Publish(next *Snapshot) bool {
	prev := s.cur.Load()
	next.Seq = prev.Seq + 1
	next.PublishedAt = s.now()
	s.cur.Store(next)

	if prev.Equal(next) {
		return false
	}
	s.mu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()
	for _, l := range ls {
		l(next)
	}
	return true
}

// Subscribe registers l for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

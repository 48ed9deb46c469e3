// Package ledger keeps the set of live parking reservations.  At most one
// reservation exists per space.  Writers are serialised by a single lock;
// the processing loop only ever reads a copy through Active.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartpark/internal/model"
)

// Store mirrors ledger mutations to durable storage.  Implementations must
// be safe for use from one goroutine at a time; the ledger never calls a
// Store concurrently.
type Store interface {
	Insert(ctx context.Context, r model.Reservation) error
	Delete(ctx context.Context, spaceID int) error
	LoadActive(ctx context.Context, now time.Time) ([]model.Reservation, error)
}

// Options configures a Ledger.  Only Total is required.
type Options struct {
	// Total is the number of regions; valid space IDs are 1..Total.
	Total int
	// DefaultDuration is used when a caller passes a zero duration.
	DefaultDuration int
	// Advisory keeps expired reservations until they are cancelled; the
	// expiry timestamp is then informational only.
	Advisory bool
	Store    Store
	Notifier Notifier
	Now      func() time.Time
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries map[int]model.Reservation

	total    int
	duration int
	advisory bool
	store    Store
	notifier Notifier
	now      func() time.Time
}

// New returns an empty ledger.
func New(opts Options) *Ledger {
	l := &Ledger{
		entries:  make(map[int]model.Reservation),
		total:    opts.Total,
		duration: opts.DefaultDuration,
		advisory: opts.Advisory,
		store:    opts.Store,
		notifier: opts.Notifier,
		now:      opts.Now,
	}
	if l.duration <= 0 {
		l.duration = model.DefaultDurationMinutes
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Restore loads live reservations from the store.  Entries for space IDs
// outside the current catalog are dropped with a warning.
func (l *Ledger) Restore(ctx context.Context) (int, error) {
	if l.store == nil {
		return 0, nil
	}
	rows, err := l.store.LoadActive(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("restore reservations: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range rows {
		if r.SpaceID < 1 || r.SpaceID > l.total {
			log.Warn().Str("component", "ledger").Int("space_id", r.SpaceID).Msg("dropping stored reservation outside catalog")
			continue
		}
		l.entries[r.SpaceID] = r
		n++
	}
	return n, nil
}

// Create reserves spaceID for userName.  A zero duration uses the default;
// a negative one is rejected.  An expired reservation on the same space is
// evicted first so it does not block the new one.
func (l *Ledger) Create(ctx context.Context, spaceID int, userName string, durationMinutes int) (model.Reservation, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return model.Reservation{}, fmt.Errorf("%w: user_name is required", ErrInvalidInput)
	}
	if durationMinutes < 0 {
		return model.Reservation{}, fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidInput)
	}
	if durationMinutes == 0 {
		durationMinutes = l.duration
	}
	if spaceID < 1 || spaceID > l.total {
		return model.Reservation{}, ErrOutOfRange
	}

	now := l.now()
	var events []Event

	l.mu.Lock()
	if prev, ok := l.entries[spaceID]; ok && l.expired(prev, now) {
		if err := l.evictLocked(ctx, prev); err != nil {
			l.mu.Unlock()
			return model.Reservation{}, err
		}
		events = append(events, Event{Kind: EventExpired, Reservation: prev, At: now})
	}
	if _, ok := l.entries[spaceID]; ok {
		l.mu.Unlock()
		l.emit(ctx, events)
		return model.Reservation{}, ErrConflict
	}

	r := model.NewReservation(spaceID, userName, durationMinutes, now)
	l.entries[spaceID] = r
	if l.store != nil {
		if err := l.store.Insert(ctx, r); err != nil {
			delete(l.entries, spaceID)
			l.mu.Unlock()
			l.emit(ctx, events)
			return model.Reservation{}, fmt.Errorf("store reservation: %w", err)
		}
	}
	l.mu.Unlock()

	l.emit(ctx, append(events, Event{Kind: EventCreated, Reservation: r, At: now}))
	return r, nil
}

// Cancel removes the reservation on spaceID.
func (l *Ledger) Cancel(ctx context.Context, spaceID int) (model.Reservation, error) {
	now := l.now()

	l.mu.Lock()
	r, ok := l.entries[spaceID]
	if !ok {
		l.mu.Unlock()
		return model.Reservation{}, ErrNotFound
	}
	if l.expired(r, now) {
		err := l.evictLocked(ctx, r)
		l.mu.Unlock()
		if err != nil {
			return model.Reservation{}, err
		}
		l.emit(ctx, []Event{{Kind: EventExpired, Reservation: r, At: now}})
		return model.Reservation{}, ErrNotFound
	}
	if err := l.evictLocked(ctx, r); err != nil {
		l.mu.Unlock()
		return model.Reservation{}, err
	}
	l.mu.Unlock()

	l.emit(ctx, []Event{{Kind: EventCancelled, Reservation: r, At: now}})
	return r, nil
}

// Snapshot returns the live reservations ordered by space ID.
func (l *Ledger) Snapshot() []model.Reservation {
	now := l.now()
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Reservation, 0, len(l.entries))
	for _, r := range l.entries {
		if !l.expired(r, now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpaceID < out[j].SpaceID })
	return out
}

// Active returns a copy of the reservations live at now, keyed by space
// ID.  The processing loop calls this once per cycle.
func (l *Ledger) Active(now time.Time) map[int]model.Reservation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[int]model.Reservation, len(l.entries))
	for id, r := range l.entries {
		if !l.expired(r, now) {
			out[id] = r
		}
	}
	return out
}

// Len returns the number of stored entries, expired ones included.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Sweep evicts every expired reservation and returns how many were
// removed.  It does nothing in advisory mode.
func (l *Ledger) Sweep(ctx context.Context) (int, error) {
	if l.advisory {
		return 0, nil
	}
	now := l.now()
	var events []Event

	l.mu.Lock()
	ids := make([]int, 0)
	for id, r := range l.entries {
		if r.Expired(now) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	var firstErr error
	for _, id := range ids {
		r := l.entries[id]
		if err := l.evictLocked(ctx, r); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		events = append(events, Event{Kind: EventExpired, Reservation: r, At: now})
	}
	l.mu.Unlock()

	l.emit(ctx, events)
	return len(events), firstErr
}

func (l *Ledger) expired(r model.Reservation, now time.Time) bool {
	return !l.advisory && r.Expired(now)
}

// evictLocked removes r from the map and the store.  The in-memory entry is
// kept when the store refuses the delete so both sides stay in step.
func (l *Ledger) evictLocked(ctx context.Context, r model.Reservation) error {
	if l.store != nil {
		if err := l.store.Delete(ctx, r.SpaceID); err != nil {
			return fmt.Errorf("delete stored reservation: %w", err)
		}
	}
	delete(l.entries, r.SpaceID)
	return nil
}

func (l *Ledger) emit(ctx context.Context, events []Event) {
	if l.notifier == nil {
		return
	}
	for _, ev := range events {
		l.notifier.Notify(ctx, ev)
	}
}

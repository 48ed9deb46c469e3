package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smartpark/internal/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memStore struct {
	mu        sync.Mutex
	rows      map[int]model.Reservation
	failWrite error
}

func newMemStore() *memStore { return &memStore{rows: map[int]model.Reservation{}} }

func (s *memStore) Insert(_ context.Context, r model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	s.rows[r.SpaceID] = r
	return nil
}

func (s *memStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrite != nil {
		return s.failWrite
	}
	delete(s.rows, id)
	return nil
}

func (s *memStore) LoadActive(_ context.Context, now time.Time) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.rows {
		if !r.Expired(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func newTestLedger(total int) (*Ledger, *fakeClock, *recorder) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	return New(Options{Total: total, Now: clk.Now, Notifier: rec}), clk, rec
}

func TestCreate_Validation(t *testing.T) {
	l, _, _ := newTestLedger(69)
	ctx := context.Background()

	tests := []struct {
		name     string
		space    int
		user     string
		duration int
		want     error
	}{
		{"empty user", 1, "", 60, ErrInvalidInput},
		{"blank user", 1, "   ", 60, ErrInvalidInput},
		{"negative duration", 1, "alice", -5, ErrInvalidInput},
		{"space zero", 0, "alice", 60, ErrOutOfRange},
		{"space past end", 70, "alice", 60, ErrOutOfRange},
		{"negative space", -1, "alice", 60, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Create(ctx, tt.space, tt.user, tt.duration)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, l.Len())
}

func TestCreate_BoundaryIDs(t *testing.T) {
	l, _, _ := newTestLedger(69)
	ctx := context.Background()

	_, err := l.Create(ctx, 1, "alice", 0)
	require.NoError(t, err)
	_, err = l.Create(ctx, 69, "bob", 0)
	require.NoError(t, err)
}

func TestCreate_SetsExpiry(t *testing.T) {
	l, clk, rec := newTestLedger(5)

	r, err := l.Create(context.Background(), 3, "alice", 0)
	require.NoError(t, err)

	assert.Equal(t, 3, r.SpaceID)
	assert.Equal(t, "alice", r.UserName)
	assert.Equal(t, model.DefaultDurationMinutes, r.DurationMinutes)
	assert.Equal(t, clk.Now(), r.ReservedAt)
	assert.Equal(t, clk.Now().Add(60*time.Minute), r.ExpiresAt)
	assert.Equal(t, []string{EventCreated}, rec.kinds())
}

func TestCreate_Conflict(t *testing.T) {
	l, _, _ := newTestLedger(5)
	ctx := context.Background()

	first, err := l.Create(ctx, 2, "alice", 30)
	require.NoError(t, err)

	_, err = l.Create(ctx, 2, "bob", 30)
	assert.ErrorIs(t, err, ErrConflict)

	got := l.Snapshot()
	require.Len(t, got, 1)
	assert.True(t, first.Equal(got[0]), "loser must not overwrite the winner")
}

func TestCreate_ConcurrentSingleWinner(t *testing.T) {
	l, _, _ := newTestLedger(5)
	ctx := context.Background()

	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Create(ctx, 4, "racer", 10)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(63), conflicts)
}

func TestCancel(t *testing.T) {
	l, _, rec := newTestLedger(5)
	ctx := context.Background()

	_, err := l.Cancel(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Create(ctx, 1, "alice", 10)
	require.NoError(t, err)
	r, err := l.Cancel(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", r.UserName)
	assert.Empty(t, l.Snapshot())

	_, err = l.Create(ctx, 1, "bob", 10)
	assert.NoError(t, err, "space is free again after cancel")
	assert.Equal(t, []string{EventCreated, EventCancelled, EventCreated}, rec.kinds())
}

func TestExpiry_Enforced(t *testing.T) {
	l, clk, rec := newTestLedger(5)
	ctx := context.Background()

	_, err := l.Create(ctx, 1, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, l.Active(clk.Now()), 1)

	clk.Advance(time.Minute)
	assert.Empty(t, l.Active(clk.Now()), "expired at exactly expires_at")
	assert.Empty(t, l.Snapshot())
	assert.Equal(t, 1, l.Len(), "still stored until swept")

	_, err = l.Create(ctx, 1, "bob", 5)
	require.NoError(t, err, "expired entry does not block a new reservation")
	assert.Equal(t, []string{EventCreated, EventExpired, EventCreated}, rec.kinds())
}

func TestExpiry_CancelExpiredIsNotFound(t *testing.T) {
	l, clk, _ := newTestLedger(5)
	ctx := context.Background()

	_, err := l.Create(ctx, 1, "alice", 1)
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)

	_, err = l.Cancel(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, l.Len())
}

func TestExpiry_Advisory(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	l := New(Options{Total: 3, Now: clk.Now, Advisory: true})
	ctx := context.Background()

	_, err := l.Create(ctx, 1, "alice", 1)
	require.NoError(t, err)
	clk.Advance(time.Hour)

	assert.Len(t, l.Active(clk.Now()), 1)
	n, err := l.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = l.Create(ctx, 1, "bob", 1)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSweep(t *testing.T) {
	store := newMemStore()
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	rec := &recorder{}
	l := New(Options{Total: 5, Now: clk.Now, Store: store, Notifier: rec})
	ctx := context.Background()

	_, err := l.Create(ctx, 1, "short", 1)
	require.NoError(t, err)
	_, err = l.Create(ctx, 2, "long", 120)
	require.NoError(t, err)
	clk.Advance(5 * time.Minute)

	n, err := l.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, l.Len())
	assert.NotContains(t, store.rows, 1)
	assert.Contains(t, store.rows, 2)
	assert.Equal(t, []string{EventCreated, EventCreated, EventExpired}, rec.kinds())
}

func TestStoreFailureRollsBack(t *testing.T) {
	store := newMemStore()
	l := New(Options{Total: 5, Store: store})
	ctx := context.Background()

	store.failWrite = errors.New("db down")
	_, err := l.Create(ctx, 1, "alice", 10)
	require.Error(t, err)
	assert.Equal(t, 0, l.Len())

	store.failWrite = nil
	_, err = l.Create(ctx, 1, "alice", 10)
	require.NoError(t, err)

	store.failWrite = errors.New("db down")
	_, err = l.Cancel(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, 1, l.Len(), "cancel keeps the entry when the store refuses")
}

func TestRestore(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	store.rows[2] = model.NewReservation(2, "kept", 60, now)
	store.rows[9] = model.NewReservation(9, "gone", 60, now)
	store.rows[3] = model.NewReservation(3, "expired", 1, now.Add(-time.Hour))

	l := New(Options{Total: 5, Store: store})
	n, err := l.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "kept", snap[0].UserName)
}

func TestSnapshot_Ordered(t *testing.T) {
	l, _, _ := newTestLedger(10)
	ctx := context.Background()
	for _, id := range []int{7, 2, 9, 4} {
		_, err := l.Create(ctx, id, "u", 10)
		require.NoError(t, err)
	}
	var ids []int
	for _, r := range l.Snapshot() {
		ids = append(ids, r.SpaceID)
	}
	assert.Equal(t, []int{2, 4, 7, 9}, ids)
}

func TestActive_ReturnsCopy(t *testing.T) {
	l, clk, _ := newTestLedger(3)
	_, err := l.Create(context.Background(), 1, "alice", 10)
	require.NoError(t, err)

	m := l.Active(clk.Now())
	delete(m, 1)
	assert.Len(t, l.Active(clk.Now()), 1)
}

func TestRunJanitor(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	l := New(Options{Total: 3, Now: clk.Now})
	_, err := l.Create(context.Background(), 1, "alice", 1)
	require.NoError(t, err)
	clk.Advance(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.RunJanitor(ctx, 5*time.Millisecond) }()

	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestNotifiers_FanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	var calls int
	ns := Notifiers{a, nil, b, NotifierFunc(func(context.Context, Event) { calls++ })}

	ns.Notify(context.Background(), Event{Kind: EventCreated})

	assert.Equal(t, []string{EventCreated}, a.kinds())
	assert.Equal(t, []string{EventCreated}, b.kinds())
	assert.Equal(t, 1, calls)
}

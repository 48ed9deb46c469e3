package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartpark/internal/model"
)

// Event kinds emitted on ledger mutations.
const (
	EventCreated   = "reservation.created"
	EventCancelled = "reservation.cancelled"
	EventExpired   = "reservation.expired"
)

// Event describes one ledger mutation.
type Event struct {
	Kind        string
	Reservation model.Reservation
	At          time.Time
}

// Notifier receives ledger events after the mutation has been committed.
// Notify must not block for long; delivery failures are the notifier's
// concern and never undo the mutation.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

// Notify forwards ev to every non-nil notifier.
func (ns Notifiers) Notify(ctx context.Context, ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

// LogNotifier writes every event to the global logger.
type LogNotifier struct{}

// Notify logs ev at info level.
func (LogNotifier) Notify(_ context.Context, ev Event) {
	log.Info().
		Str("component", "ledger").
		Str("event", ev.Kind).
		Int("space_id", ev.Reservation.SpaceID).
		Str("user_name", ev.Reservation.UserName).
		Time("expires_at", ev.Reservation.ExpiresAt).
		Msg("reservation event")
}

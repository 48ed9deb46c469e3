package model

import "time"

// DefaultDurationMinutes is applied when a reservation request omits
// duration_minutes.
const DefaultDurationMinutes = 60

// Reservation records a hold on a single parking space.  At most one
// reservation exists per space at any time.  ExpiresAt is always
// ReservedAt plus DurationMinutes.
//
// Fields:
//  SpaceID         – region the reservation applies to.
//  UserName        – holder of the reservation.
//  ReservedAt      – creation timestamp (UTC).
//  DurationMinutes – requested length of the hold.
//  ExpiresAt       – when the hold lapses.
type Reservation struct {
	SpaceID         int       `json:"space_id"`
	UserName        string    `json:"user_name"`
	ReservedAt      time.Time `json:"reserved_at"`
	DurationMinutes int       `json:"duration_minutes"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// NewReservation builds a reservation starting at now.
func NewReservation(spaceID int, userName string, durationMinutes int, now time.Time) Reservation {
	now = now.UTC()
	return Reservation{
		SpaceID:         spaceID,
		UserName:        userName,
		ReservedAt:      now,
		DurationMinutes: durationMinutes,
		ExpiresAt:       now.Add(time.Duration(durationMinutes) * time.Minute),
	}
}

// Expired reports whether the reservation has lapsed at t.
func (r Reservation) Expired(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// Equal compares two reservations field by field.  Timestamps are
// compared as instants so monotonic clock readings do not matter.
func (r Reservation) Equal(o Reservation) bool {
	return r.SpaceID == o.SpaceID &&
		r.UserName == o.UserName &&
		r.DurationMinutes == o.DurationMinutes &&
		r.ReservedAt.Equal(o.ReservedAt) &&
		r.ExpiresAt.Equal(o.ExpiresAt)
}

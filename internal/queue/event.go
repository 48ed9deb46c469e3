// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records reservation activity.
package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/smartpark/internal/model"
)

// Queue names.  Both are declared durable.
const (
	ReservationQueue  = "parking.reservations"
	NotificationQueue = "parking.notifications"
)

// ReservationEvent is published whenever the reservation ledger changes.
// It carries the full reservation so consumers never need to call back
// into the API.
type ReservationEvent struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	SpaceID         int    `json:"space_id"`
	UserName        string `json:"user_name"`
	ReservedAt      string `json:"reserved_at"`
	DurationMinutes int    `json:"duration_minutes"`
	ExpiresAt       string `json:"expires_at"`
	OccurredAt      string `json:"occurred_at"`
}

// NewReservationEvent stamps a fresh event ID and formats timestamps as
// RFC 3339 in UTC.
func NewReservationEvent(kind string, r model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		ID:              uuid.NewString(),
		Kind:            kind,
		SpaceID:         r.SpaceID,
		UserName:        r.UserName,
		ReservedAt:      r.ReservedAt.UTC().Format(time.RFC3339),
		DurationMinutes: r.DurationMinutes,
		ExpiresAt:       r.ExpiresAt.UTC().Format(time.RFC3339),
		OccurredAt:      at.UTC().Format(time.RFC3339),
	}
}

// LogLine renders the event as one line of logs/reservation.log.
func (e ReservationEvent) LogLine() string {
	return fmt.Sprintf("[%s] %s | space_id=%d | user=%q | duration=%dm | expires_at=%s | event_id=%s\n",
		e.OccurredAt, e.Kind, e.SpaceID, e.UserName, e.DurationMinutes, e.ExpiresAt, e.ID)
}

// VerificationCodeEvent asks the notification service to deliver a
// one-time code to an email address.
type VerificationCodeEvent struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Code      string `json:"code"`
	ExpiresAt string `json:"expires_at"`
}

// NewVerificationCodeEvent builds a VerificationCodeEvent with a fresh ID.
func NewVerificationCodeEvent(email, code string, expires time.Time) VerificationCodeEvent {
	return VerificationCodeEvent{
		ID:        uuid.NewString(),
		Email:     email,
		Code:      code,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
	}
}

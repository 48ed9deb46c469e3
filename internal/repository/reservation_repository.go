package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/smartpark/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS reservations (
    space_id         INT          NOT NULL PRIMARY KEY,
    user_name        VARCHAR(255) NOT NULL,
    reserved_at      DATETIME(6)  NOT NULL,
    duration_minutes INT          NOT NULL,
    expires_at       DATETIME(6)  NOT NULL,
    KEY idx_reservations_expires_at (expires_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// ReservationRepo mirrors the reservation ledger into the reservations
// table.  One row per space; all timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// EnsureSchema creates the reservations table when it does not exist.
func (r *ReservationRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create reservations table: %w", err)
	}
	return nil
}

// Insert stores res.  A row already present for the space yields
// ErrDuplicate.
func (r *ReservationRepo) Insert(ctx context.Context, res model.Reservation) error {
	const q = `INSERT INTO reservations (space_id, user_name, reserved_at, duration_minutes, expires_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, res.SpaceID, res.UserName, res.ReservedAt.UTC(), res.DurationMinutes, res.ExpiresAt.UTC())
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// Delete removes the row for spaceID.  Deleting a missing row is not an
// error; the ledger has already decided the reservation exists.
func (r *ReservationRepo) Delete(ctx context.Context, spaceID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE space_id = ?`, spaceID)
	return err
}

// LoadActive returns reservations that have not expired at now, ordered by
// space.
func (r *ReservationRepo) LoadActive(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	const q = `SELECT space_id, user_name, reserved_at, duration_minutes, expires_at FROM reservations WHERE expires_at > ? ORDER BY space_id`
	rows, err := r.db.QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.SpaceID, &res.UserName, &res.ReservedAt, &res.DurationMinutes, &res.ExpiresAt); err != nil {
			return nil, err
		}
		res.ReservedAt = res.ReservedAt.UTC()
		res.ExpiresAt = res.ExpiresAt.UTC()
		out = append(out, res)
	}
	return out, rows.Err()
}

// DeleteExpired removes rows whose expiry is at or before now and returns
// how many went.  Used at startup so stale rows do not accumulate while
// the service is down.
func (r *ReservationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

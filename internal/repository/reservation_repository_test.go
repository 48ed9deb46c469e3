package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smartpark/internal/ledger"
	"github.com/iliyamo/smartpark/internal/model"
)

var _ ledger.Store = (*ReservationRepo)(nil)

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.True(t, isDuplicate(fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, isDuplicate(&mysql.MySQLError{Number: 1146}))
	assert.False(t, isDuplicate(errors.New("boom")))
	assert.False(t, isDuplicate(nil))
}

// openTestDB connects to MYSQL_TEST_DSN.  The round-trip test is skipped
// when it is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Ping())
	_, _ = db.Exec(`DROP TABLE IF EXISTS reservations`)
	return db
}

func TestReservationRepo_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewReservationRepo(db)
	ctx := context.Background()
	require.NoError(t, repo.EnsureSchema(ctx))

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	live := model.NewReservation(4, "alice", 30, now)
	stale := model.NewReservation(9, "bob", 1, now.Add(-time.Hour))

	require.NoError(t, repo.Insert(ctx, live))
	require.NoError(t, repo.Insert(ctx, stale))
	assert.ErrorIs(t, repo.Insert(ctx, live), ErrDuplicate)

	got, err := repo.LoadActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, live.Equal(got[0]))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, repo.Delete(ctx, 4))
	require.NoError(t, repo.Delete(ctx, 4))
	got, err = repo.LoadActive(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, got)
}

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAggregateStatus(t *testing.T) {
	tests := []struct {
		name                       string
		total, available, reserved int
		want                       AggregateStatus
	}{
		{"empty catalog", 0, 0, 0, AggregateStatus{}},
		{"half occupied", 2, 1, 0, AggregateStatus{TotalSpaces: 2, AvailableSpaces: 1, OccupiedSpaces: 1, UtilizationRate: 50}},
		{"reserved counts as used", 2, 1, 1, AggregateStatus{TotalSpaces: 2, AvailableSpaces: 1, ReservedSpaces: 1, UtilizationRate: 50}},
		{"rounds to nearest", 3, 1, 0, AggregateStatus{TotalSpaces: 3, AvailableSpaces: 1, OccupiedSpaces: 2, UtilizationRate: 67}},
		{"all free", 4, 4, 0, AggregateStatus{TotalSpaces: 4, AvailableSpaces: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAggregateStatus(tt.total, tt.available, tt.reserved)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.TotalSpaces, got.AvailableSpaces+got.OccupiedSpaces+got.ReservedSpaces)
		})
	}
}

func TestRegionStatus_Equal(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	res := NewReservation(1, "alice", 30, now)
	resCopy := res
	other := NewReservation(1, "bob", 30, now)

	base := RegionStatus{ID: 1, Status: StateReserved, Count: 10, IsReserved: true, Reservation: &res}

	same := base
	same.Reservation = &resCopy
	assert.True(t, base.Equal(same), "pointer identity must not matter")

	diffHolder := base
	diffHolder.Reservation = &other
	assert.False(t, base.Equal(diffHolder))

	noRes := base
	noRes.Reservation = nil
	assert.False(t, base.Equal(noRes))

	diffCount := base
	diffCount.Count = 11
	assert.False(t, base.Equal(diffCount))
}

func TestReservation_Expired(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := NewReservation(3, "carol", 60, now)

	assert.Equal(t, now.Add(time.Hour), r.ExpiresAt)
	assert.False(t, r.Expired(now.Add(59*time.Minute)))
	assert.True(t, r.Expired(now.Add(time.Hour)))
}

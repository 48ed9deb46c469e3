package model

import "math"

// SpaceState is the classification result for one region.
type SpaceState string

const (
	StateAvailable SpaceState = "available"
	StateOccupied  SpaceState = "occupied"
	StateReserved  SpaceState = "reserved"
)

// RegionStatus is the per-frame classification of one region.  Values are
// recomputed every cycle and replaced wholesale; they are never mutated
// after publication.
//
// Fields:
//  ID          – region identifier.
//  Position    – top-left coordinate as [x, y].
//  Status      – AVAILABLE, OCCUPIED or RESERVED.
//  Count       – foreground pixel count inside the region (raw metric).
//  IsReserved  – true when a reservation covered the region this cycle.
//  Reservation – snapshot of that reservation, nil otherwise.
//  Coordinates – region rectangle.
type RegionStatus struct {
	ID          int          `json:"id"`
	Position    [2]int       `json:"position"`
	Status      SpaceState   `json:"status"`
	Count       int          `json:"count"`
	IsReserved  bool         `json:"is_reserved"`
	Reservation *Reservation `json:"reservation_info"`
	Coordinates Coordinates  `json:"coordinates"`
}

// Equal reports structural equality, following the reservation pointer.
func (s RegionStatus) Equal(o RegionStatus) bool {
	if s.ID != o.ID || s.Position != o.Position || s.Status != o.Status ||
		s.Count != o.Count || s.IsReserved != o.IsReserved || s.Coordinates != o.Coordinates {
		return false
	}
	switch {
	case s.Reservation == nil && o.Reservation == nil:
		return true
	case s.Reservation == nil || o.Reservation == nil:
		return false
	default:
		return s.Reservation.Equal(*o.Reservation)
	}
}

// AggregateStatus summarises a full set of RegionStatus values.
// OccupiedSpaces is always TotalSpaces - AvailableSpaces - ReservedSpaces.
type AggregateStatus struct {
	TotalSpaces     int `json:"total_spaces"`
	AvailableSpaces int `json:"available_spaces"`
	OccupiedSpaces  int `json:"occupied_spaces"`
	ReservedSpaces  int `json:"reserved_spaces"`
	UtilizationRate int `json:"utilization_rate"`
}

// NewAggregateStatus derives the occupied count and utilization from the
// three independent counters.  Utilization is the share of spaces that are
// not available, so a reserved space counts as in use.
func NewAggregateStatus(total, available, reserved int) AggregateStatus {
	occupied := total - available - reserved
	utilization := 0
	if total > 0 {
		utilization = int(math.Round(float64(occupied+reserved) / float64(total) * 100))
	}
	return AggregateStatus{
		TotalSpaces:     total,
		AvailableSpaces: available,
		OccupiedSpaces:  occupied,
		ReservedSpaces:  reserved,
		UtilizationRate: utilization,
	}
}

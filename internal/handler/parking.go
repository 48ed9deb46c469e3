package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smartpark/internal/frame"
	"github.com/iliyamo/smartpark/internal/ledger"
	"github.com/iliyamo/smartpark/internal/model"
	"github.com/iliyamo/smartpark/internal/status"
)

// ParkingHandler serves the lot state, the reservation ledger and the
// video preview.  Reads go to the status store and never touch the
// processing loop.
type ParkingHandler struct {
	Status  *status.Store
	Ledger  *ledger.Ledger
	Preview *frame.Preview
	Regions int // number of regions loaded from the layout

	now func() time.Time
}

// NewParkingHandler wires the handler.  Status and Ledger must be non-nil.
func NewParkingHandler(st *status.Store, l *ledger.Ledger, p *frame.Preview, regions int) *ParkingHandler {
	if st == nil || l == nil {
		panic("nil dependency passed to NewParkingHandler")
	}
	if p == nil {
		p = frame.NewPreview(0)
	}
	return &ParkingHandler{Status: st, Ledger: l, Preview: p, Regions: regions, now: time.Now}
}

type spacesResp struct {
	Spaces      []model.RegionStatus `json:"spaces"`
	TotalSpaces int                  `json:"total_spaces"`
	Timestamp   float64              `json:"timestamp"`
}

// ParkingStatus handles GET /api/parking-status.
func (h *ParkingHandler) ParkingStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Status.Current().Status)
}

// ParkingSpaces handles GET /api/parking-spaces.  Before the first cycle
// the list is empty rather than null.
func (h *ParkingHandler) ParkingSpaces(c echo.Context) error {
	spaces := h.Status.Current().Spaces
	if spaces == nil {
		spaces = []model.RegionStatus{}
	}
	return c.JSON(http.StatusOK, spacesResp{
		Spaces:      spaces,
		TotalSpaces: len(spaces),
		Timestamp:   unixSeconds(h.now()),
	})
}

// unixSeconds renders t as fractional seconds since the epoch, the
// timestamp format dashboards already consume.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

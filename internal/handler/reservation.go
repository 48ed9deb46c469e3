package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartpark/internal/ledger"
	"github.com/iliyamo/smartpark/internal/middleware"
	"github.com/iliyamo/smartpark/internal/model"
)

type createReservationReq struct {
	SpaceID         int    `json:"space_id"`
	UserName        string `json:"user_name"`
	DurationMinutes *int   `json:"duration_minutes"`
}

// ListReservations handles GET /api/reservations.  Reservations are keyed
// by space ID.
func (h *ParkingHandler) ListReservations(c echo.Context) error {
	live := h.Ledger.Snapshot()
	byID := make(map[int]model.Reservation, len(live))
	for _, r := range live {
		byID[r.SpaceID] = r
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservations":       byID,
		"total_reservations": len(byID),
	})
}

// CreateReservation handles POST /api/reservations.
func (h *ParkingHandler) CreateReservation(c echo.Context) error {
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	// authenticated callers may omit user_name; the token subject is used
	if strings.TrimSpace(req.UserName) == "" {
		if sub, ok := c.Get(middleware.ContextUserKey).(string); ok {
			req.UserName = sub
		}
	}
	if req.SpaceID == 0 || strings.TrimSpace(req.UserName) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "space_id and user_name are required"})
	}
	duration := 0
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_minutes must be positive"})
		}
		duration = *req.DurationMinutes
	}

	r, err := h.Ledger.Create(c.Request().Context(), req.SpaceID, req.UserName, duration)
	if err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":     "Reservation created successfully",
		"reservation": r,
	})
}

// CancelReservation handles DELETE /api/reservations/:id.
func (h *ParkingHandler) CancelReservation(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
	}
	if _, err := h.Ledger.Cancel(c.Request().Context(), id); err != nil {
		return ledgerError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Reservation cancelled successfully"})
}

// ledgerError maps ledger sentinels to status codes.  Anything else is
// logged and reported as a 500 without detail.
func ledgerError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrOutOfRange):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ledger.ErrOutOfRange.Error()})
	case errors.Is(err, ledger.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": ledger.ErrConflict.Error()})
	case errors.Is(err, ledger.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": ledger.ErrNotFound.Error()})
	}
	log.Error().Str("component", "api").Err(err).Str("path", c.Path()).Msg("ledger operation failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

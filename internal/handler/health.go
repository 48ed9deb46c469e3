package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is a liveness probe for load balancers.  It returns a plain
// "ok" with a 200 status.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// APIHealth handles GET /api/health and reports how many regions the
// layout provided.
func (h *ParkingHandler) APIHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":                "healthy",
		"parking_spaces_loaded": h.Regions,
	})
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smartpark/internal/handler"
)

// ParkingMiddleware carries the optional middleware for the parking API.
// Nil fields are skipped.
type ParkingMiddleware struct {
	// Cache fronts the static lot summary.  Status reads bypass it since
	// they must reflect the latest processing cycle.
	Cache echo.MiddlewareFunc
	// Limit throttles reservation writes.
	Limit echo.MiddlewareFunc
	// Auth guards reservation writes.
	Auth echo.MiddlewareFunc
}

// RegisterParking registers the lot status, reservation and preview
// endpoints under /api.  Reads are public; writes pass through Limit and
// then Auth.
func RegisterParking(e *echo.Echo, h *handler.ParkingHandler, mw ParkingMiddleware) {
	g := e.Group("/api")

	g.GET("/health", h.APIHealth, compact(mw.Cache)...)
	g.GET("/parking-status", h.ParkingStatus)
	g.GET("/parking-spaces", h.ParkingSpaces)
	g.GET("/video-frame", h.VideoFrame)

	g.GET("/reservations", h.ListReservations)
	writes := compact(mw.Limit, mw.Auth)
	g.POST("/reservations", h.CreateReservation, writes...)
	g.DELETE("/reservations/:id", h.CancelReservation, writes...)
}

func compact(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartpark/internal/frame"
	"github.com/iliyamo/smartpark/internal/metrics"
)

// VideoFrame handles GET /api/video-frame.  Until the loop has published a
// frame the response is a 200 carrying an error field, which is what the
// dashboard polls for.
func (h *ParkingHandler) VideoFrame(c echo.Context) error {
	snap := h.Status.Current()
	img, cached, err := h.Preview.Encode(snap.Frame, snap.Spaces)
	if errors.Is(err, frame.ErrNoFrames) {
		return c.JSON(http.StatusOK, echo.Map{"error": "No frame available"})
	}
	if err != nil {
		log.Error().Str("component", "api").Err(err).Msg("preview encode failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if cached {
		metrics.PreviewEncodes.WithLabelValues("hit").Inc()
	} else {
		metrics.PreviewEncodes.WithLabelValues("miss").Inc()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"frame":     img,
		"timestamp": unixSeconds(h.now()),
	})
}

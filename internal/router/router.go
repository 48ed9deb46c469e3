// Package router mounts handlers and middleware on an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartpark/internal/handler"
	"github.com/iliyamo/smartpark/internal/metrics"
)

// Setup installs the middleware every route shares: panic recovery, CORS
// for browser dashboards and access logging through zerolog.
func Setup(e *echo.Echo) {
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		Skipper: func(c echo.Context) bool {
			// dashboards poll these several times a second
			switch c.Path() {
			case "/healthz", "/metrics", "/api/video-frame":
				return true
			}
			return false
		},
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("component", "http").
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
}

// RegisterRoutes registers the liveness probe and the prometheus
// endpoint.  Neither requires authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	metrics.Register(e)
}

// RegisterAuth registers the OTP endpoints.  limit throttles both so codes
// cannot be brute forced or mailed in bulk.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth", limit)
	g.POST("/send-otp", a.SendOTP)
	g.POST("/verify-otp", a.VerifyOTP)
}

// RegisterStream exposes the websocket snapshot stream at /ws.
func RegisterStream(e *echo.Echo, hub *handler.Hub) {
	e.GET("/ws", hub.Serve)
}

package middleware

import "github.com/labstack/echo/v4"

// userID returns the subject JWTAuth stored on the context, or "guest"
// for unauthenticated requests.
func userID(c echo.Context) string {
	if s, ok := c.Get(ContextUserKey).(string); ok && s != "" {
		return s
	}
	return "guest"
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ContextUserKey is where JWTAuth stores the token subject (the verified
// email address).
const ContextUserKey = "user_id"

// JWTAuth validates an HS256 bearer token signed with secret and stores its
// subject under ContextUserKey.  Requests without a valid token get 401.
// An empty secret rejects every request.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token verification unavailable"})
			}
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			tok, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			sub, err := tok.Claims.GetSubject()
			if err != nil || sub == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			c.Set(ContextUserKey, sub)
			return next(c)
		}
	}
}

// Optional applies mw only when enabled is true.
func Optional(enabled bool, mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if !enabled {
		return passThrough
	}
	return mw
}

package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartpark/internal/identity"
	"github.com/iliyamo/smartpark/internal/utils"
)

// AuthHandler exposes the email verification flow.
type AuthHandler struct {
	Identity *identity.Service
}

func NewAuthHandler(svc *identity.Service) *AuthHandler {
	return &AuthHandler{Identity: svc}
}

// ----- DTOs -----

type sendOTPReq struct {
	Email string `json:"email"`
}
type verifyOTPReq struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}
type verifyResp struct {
	Email  string            `json:"email"`
	Access utils.AccessToken `json:"access"`
}

// SendOTP: issue a code and hand it to the notification service.
func (h *AuthHandler) SendOTP(c echo.Context) error {
	var req sendOTPReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email is required"})
	}
	err := h.Identity.SendCode(c.Request().Context(), req.Email)
	if errors.Is(err, identity.ErrInvalidEmail) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err != nil {
		log.Error().Str("component", "auth").Err(err).Msg("send otp failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "OTP sent successfully"})
}

// VerifyOTP: exchange a valid code for an access token.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyOTPReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.OTP) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and otp are required"})
	}
	tok, err := h.Identity.Verify(c.Request().Context(), req.Email, req.OTP)
	switch {
	case errors.Is(err, identity.ErrInvalidEmail):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, identity.ErrCodeNotFound), errors.Is(err, identity.ErrCodeMismatch):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired otp"})
	case err != nil:
		log.Error().Str("component", "auth").Err(err).Msg("verify otp failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	email, _ := identity.NormalizeEmail(req.Email)
	return c.JSON(http.StatusOK, verifyResp{Email: email, Access: tok})
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-api/internal/service"
)

// AuthHandler expone el flujo OTP por teléfono y la rotación de tokens.
type AuthHandler struct {
	logger  *zap.Logger
	auth    *service.Authenticator
	jwtServ *service.JWTService
}

func NewAuthHandler(logger *zap.Logger, auth *service.Authenticator, jwtServ *service.JWTService) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		auth:    auth,
		jwtServ: jwtServ,
	}
}

// RequestOTP maneja POST /auth/otp/request.
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phoneNumber" binding:"required,phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, h.logger, err)
		return
	}

	ticket, err := h.auth.RequestChallenge(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		respondError(c, h.logger, "request otp", err)
		return
	}

	c.JSON(http.StatusCreated, ticket)
}

// VerifyOTP maneja POST /auth/otp/verify.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phoneNumber" binding:"required,phone"`
		Code        string `json:"code" binding:"required,otp"`
		DisplayName string `json:"displayName" binding:"omitempty,min=2,max=64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, h.logger, err)
		return
	}

	result, err := h.auth.VerifyChallenge(c.Request.Context(), service.VerifyInput{
		PhoneNumber: req.PhoneNumber,
		Code:        req.Code,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		respondError(c, h.logger, "verify otp", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RefreshToken maneja POST /auth/refresh.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, h.logger, err)
		return
	}
	if h.jwtServ == nil {
		respondError(c, h.logger, "refresh token", errJWTNotConfigured)
		return
	}
	tokens, err := h.jwtServ.RefreshPair(req.RefreshToken)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": service.ErrInvalidToken.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, h.logger, err)
		return
	}
	if h.jwtServ == nil {
		respondError(c, h.logger, "logout", errJWTNotConfigured)
		return
	}
	_ = h.jwtServ.RevokeRefresh(req.RefreshToken)
	c.Status(http.StatusNoContent)
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-api/internal/service"
)

var errJWTNotConfigured = errors.New("jwt not configured")

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
	}
}

// Me maneja GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userServ.Profile(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, h.logger, "load profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Search maneja GET /users/search?q=.
func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.userServ.Search(c.Request.Context(), currentUserID(c), c.Query("q"))
	if err != nil {
		respondError(c, h.logger, "search users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

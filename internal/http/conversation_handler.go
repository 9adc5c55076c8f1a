package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-api/internal/service"
)

const conversationPreviewSize = 50

// ConversationHandler expone la gestión de conversaciones y su historial.
type ConversationHandler struct {
	logger        *zap.Logger
	conversations *service.ConversationService
	messages      *service.MessageService
}

func NewConversationHandler(logger *zap.Logger, conversations *service.ConversationService, messages *service.MessageService) *ConversationHandler {
	return &ConversationHandler{
		logger:        logger,
		conversations: conversations,
		messages:      messages,
	}
}

// Create maneja POST /conversations. Una conversación directa existente responde 200.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req struct {
		ParticipantIDs     []string `json:"participantIds" binding:"required,min=1,dive,required"`
		Title              string   `json:"title" binding:"max=120"`
		IsPrivate          bool     `json:"isPrivate"`
		AdminOnlyMessaging bool     `json:"adminOnlyMessaging"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, h.logger, err)
		return
	}

	conv, created, err := h.conversations.Create(c.Request.Context(), currentUserID(c), service.CreateConversationInput{
		ParticipantIDs:     req.ParticipantIDs,
		Title:              req.Title,
		IsPrivate:          req.IsPrivate,
		AdminOnlyMessaging: req.AdminOnlyMessaging,
	})
	if err != nil {
		respondError(c, h.logger, "create conversation", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"conversation": conv})
}

// List maneja GET /conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	convs, err := h.conversations.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, h.logger, "list conversations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// Get maneja GET /conversations/:id junto con los últimos mensajes.
func (h *ConversationHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	conv, err := h.conversations.Get(ctx, c.Param("id"), userID)
	if err != nil {
		respondError(c, h.logger, "get conversation", err)
		return
	}
	msgs, err := h.messages.List(ctx, conv.ID, userID, service.ListMessagesOptions{Limit: conversationPreviewSize})
	if err != nil {
		respondError(c, h.logger, "list messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "messages": msgs})
}

// Update maneja PATCH /conversations/:id.
func (h *ConversationHandler) Update(c *gin.Context) {
	var req struct {
		Title *string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, h.logger, err)
		return
	}

	conv, err := h.conversations.UpdateTitle(c.Request.Context(), c.Param("id"), currentUserID(c), *req.Title)
	if err != nil {
		respondError(c, h.logger, "update conversation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// Delete maneja DELETE /conversations/:id.
func (h *ConversationHandler) Delete(c *gin.Context) {
	if err := h.conversations.Delete(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		respondError(c, h.logger, "delete conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Messages maneja GET /conversations/:id/messages?limit&before.
func (h *ConversationHandler) Messages(c *gin.Context) {
	var opts service.ListMessagesOptions
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, h.logger, "list messages", service.ErrInvalidInput)
			return
		}
		opts.Limit = limit
	}
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondError(c, h.logger, "list messages", service.ErrInvalidInput)
			return
		}
		opts.Before = &before
	}

	msgs, err := h.messages.List(c.Request.Context(), c.Param("id"), currentUserID(c), opts)
	if err != nil {
		respondError(c, h.logger, "list messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// AddParticipants maneja POST /conversations/:id/participants.
func (h *ConversationHandler) AddParticipants(c *gin.Context) {
	var req struct {
		ParticipantIDs []string `json:"participantIds" binding:"required,min=1,dive,required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, h.logger, err)
		return
	}

	conv, err := h.conversations.AddParticipants(c.Request.Context(), c.Param("id"), currentUserID(c), req.ParticipantIDs)
	if err != nil {
		respondError(c, h.logger, "add participants", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// RemoveParticipant maneja DELETE /conversations/:id/participants/:userId.
// Responde 204 cuando la salida deja la conversación sin quórum y se elimina.
func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	conv, deleted, err := h.conversations.RemoveParticipant(c.Request.Context(), c.Param("id"), currentUserID(c), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, "remove participant", err)
		return
	}
	if deleted {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// UpdateAdmins maneja PATCH /conversations/:id/admins.
func (h *ConversationHandler) UpdateAdmins(c *gin.Context) {
	var req struct {
		Add    []string `json:"add"`
		Remove []string `json:"remove"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, h.logger, err)
		return
	}

	conv, err := h.conversations.UpdateAdmins(c.Request.Context(), c.Param("id"), currentUserID(c), service.AdminChanges{
		Add:    req.Add,
		Remove: req.Remove,
	})
	if err != nil {
		respondError(c, h.logger, "update admins", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// SetMessageControl maneja PATCH /conversations/:id/message-control.
func (h *ConversationHandler) SetMessageControl(c *gin.Context) {
	var req struct {
		AdminOnlyMessaging *bool `json:"adminOnlyMessaging" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, h.logger, err)
		return
	}

	conv, err := h.conversations.SetAdminOnlyMessaging(c.Request.Context(), c.Param("id"), currentUserID(c), *req.AdminOnlyMessaging)
	if err != nil {
		respondError(c, h.logger, "set message control", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

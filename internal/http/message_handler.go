package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-api/internal/service"
)

// MessageHandler expone el ciclo de vida de mensajes por HTTP.
type MessageHandler struct {
	logger   *zap.Logger
	messages *service.MessageService
}

func NewMessageHandler(logger *zap.Logger, messages *service.MessageService) *MessageHandler {
	return &MessageHandler{logger: logger, messages: messages}
}

// Send maneja POST /messages.
func (h *MessageHandler) Send(c *gin.Context) {
	var req struct {
		ConversationID string   `json:"conversationId" binding:"required"`
		Content        string   `json:"content"`
		Attachments    []string `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, h.logger, err)
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), currentUserID(c), service.SendMessageInput{
		ConversationID: req.ConversationID,
		Content:        req.Content,
		Attachments:    req.Attachments,
	})
	if err != nil {
		respondError(c, h.logger, "send message", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Get maneja GET /messages/:id.
func (h *MessageHandler) Get(c *gin.Context) {
	msg, err := h.messages.Get(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, h.logger, "get message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Edit maneja PATCH /messages/:id. Los campos ausentes conservan su valor.
func (h *MessageHandler) Edit(c *gin.Context) {
	var req struct {
		Content     *string   `json:"content"`
		Attachments *[]string `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, h.logger, err)
		return
	}

	msg, err := h.messages.Edit(c.Request.Context(), c.Param("id"), currentUserID(c), service.EditMessageInput{
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	if err != nil {
		respondError(c, h.logger, "edit message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Delete maneja DELETE /messages/:id.
func (h *MessageHandler) Delete(c *gin.Context) {
	if _, err := h.messages.Delete(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		respondError(c, h.logger, "delete message", err)
		return
	}
	c.Status(http.StatusNoContent)
}

package http

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-api/internal/service"
)

// MediaHandler recibe uploads multipart en el campo "files".
type MediaHandler struct {
	logger *zap.Logger
	media  *service.MediaService
}

func NewMediaHandler(logger *zap.Logger, media *service.MediaService) *MediaHandler {
	return &MediaHandler{logger: logger, media: media}
}

// Upload maneja POST /media.
func (h *MediaHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, h.logger, "upload media", service.ErrNoFiles)
		return
	}
	headers := form.File["files"]

	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondError(c, h.logger, "open upload", err)
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(f)
		files = append(files, service.UploadFile{Name: fh.Filename, Reader: f})
	}

	attachments, err := h.media.Upload(c.Request.Context(), files)
	if err != nil {
		respondError(c, h.logger, "upload media", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attachments": attachments})
}

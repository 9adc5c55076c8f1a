package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chat-api/internal/service"
)

// statusFor traduce la clase de error de dominio a un código HTTP.
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusUnprocessableEntity
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	case service.KindExpired:
		return http.StatusGone
	case service.KindPrecondition:
		return http.StatusBadRequest
	case service.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError escribe {"message": ...}; los errores internos se registran y no se exponen.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	var domainErr *service.Error
	if errors.As(err, &domainErr) {
		c.AbortWithStatusJSON(statusFor(domainErr.Kind), gin.H{"message": domainErr.Message})
		return
	}
	logger.Error(op+" failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
}

// respondBindingError responde 422 con el detalle por campo cuando gin no pudo validar el cuerpo.
func respondBindingError(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("invalid request", zap.Error(err), zap.String("path", c.Request.URL.Path))

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"message": service.ErrInvalidInput.Message})
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[lowerFirst(fe.Field())] = fe.Tag()
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"message": "Validation failed",
		"errors":  fields,
	})
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

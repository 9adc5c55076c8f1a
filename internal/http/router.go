package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-api/internal/service"
)

// RouterOptions agrupa lo que el router monta fuera de los handlers JSON.
type RouterOptions struct {
	JWT *service.JWTService
	// Health verifica dependencias externas para /healthz.
	Health         func(ctx context.Context) error
	Realtime       http.Handler
	UploadDir      string
	MaxUploadBytes int64
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, h *Handlers, opts RouterOptions) *gin.Engine {
	registerValidators()
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	if opts.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = opts.MaxUploadBytes
	}

	// Middlewares basicos: logging y recovery.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		if opts.Health != nil {
			if err := opts.Health(c.Request.Context()); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.UploadDir != "" {
		r.Static("/uploads", opts.UploadDir)
	}
	if opts.Realtime != nil {
		r.GET("/ws", gin.WrapH(opts.Realtime))
	}

	api := r.Group("", jsonContentTypeMiddleware())

	auth := api.Group("/auth")
	auth.POST("/otp/request", h.Auth.RequestOTP)
	auth.POST("/otp/verify", h.Auth.VerifyOTP)
	auth.POST("/refresh", h.Auth.RefreshToken)
	auth.POST("/logout", h.Auth.Logout)

	protected := api.Group("", JWTAuthMiddleware(opts.JWT))

	users := protected.Group("/users")
	users.GET("/me", h.Users.Me)
	users.GET("/search", h.Users.Search)

	protected.POST("/media", h.Media.Upload)

	convs := protected.Group("/conversations")
	convs.POST("", h.Conversations.Create)
	convs.GET("", h.Conversations.List)
	convs.GET("/:id", h.Conversations.Get)
	convs.PATCH("/:id", h.Conversations.Update)
	convs.DELETE("/:id", h.Conversations.Delete)
	convs.GET("/:id/messages", h.Conversations.Messages)
	convs.POST("/:id/participants", h.Conversations.AddParticipants)
	convs.DELETE("/:id/participants/:userId", h.Conversations.RemoveParticipant)
	convs.PATCH("/:id/admins", h.Conversations.UpdateAdmins)
	convs.PATCH("/:id/message-control", h.Conversations.SetMessageControl)

	msgs := protected.Group("/messages")
	msgs.POST("", h.Messages.Send)
	msgs.GET("/:id", h.Messages.Get)
	msgs.PATCH("/:id", h.Messages.Edit)
	msgs.DELETE("/:id", h.Messages.Delete)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-api/internal/config"
	"chat-api/internal/db"
	"chat-api/internal/email"
	apihttp "chat-api/internal/http"
	"chat-api/internal/realtime"
	"chat-api/internal/repository"
	"chat-api/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const challengePurgeInterval = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	if !cfg.IsProduction() {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	otpRepo := repository.NewPgOTPRepository(pool)
	conversationRepo := repository.NewPgConversationRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)

	hub := realtime.NewHub(logger)
	var (
		publisher   service.Publisher = hub
		otpLimiter                    = service.NewOTPRateLimiter(cfg.OTPRequestWindow, cfg.OTPRequestLimit)
		tokenStore  service.RefreshTokenStore
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisOTPRateLimiter(redisClient, cfg.OTPRequestWindow, cfg.OTPRequestLimit)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)

			bridge := realtime.NewRedisBridge(logger, redisClient, hub)
			publisher = bridge
			go func() {
				if err := bridge.Run(ctx); err != nil {
					logger.Error("redis bridge stopped", zap.Error(err))
				}
			}()
		}
		cancel()
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)

	mediaStore, err := service.NewLocalMediaStore(cfg.MediaUploadDir, cfg.MediaPublicBaseURL)
	if err != nil {
		logger.Fatal("media store", zap.Error(err))
	}
	maxUploadBytes := int64(cfg.MediaMaxFileSizeMB) << 20

	var codeSender service.CodeSender
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(email.SMTPConfig{
			Host:          cfg.SMTPHost,
			Port:          cfg.SMTPPort,
			Username:      cfg.SMTPUser,
			Password:      cfg.SMTPPass,
			From:          cfg.SMTPFrom,
			FromName:      cfg.SMTPFromName,
			GatewayDomain: cfg.SMSGatewayDomain,
			UseTLS:        cfg.SMTPUseTLS,
		})
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
			codeSender = email.NewDisabledSender("smtp sender misconfigured")
		} else {
			codeSender = sender
		}
	} else if cfg.IsProduction() {
		logger.Warn("otp delivery not configured; codes are neither sent nor exposed")
	}

	authSvc := service.NewAuthenticator(logger, userRepo, otpRepo, otpLimiter, jwtSvc, service.AuthenticatorOptions{
		CountryCode: cfg.PhoneCountryCode,
		ExposeCodes: !cfg.IsProduction(),
		Sender:      codeSender,
	})
	conversationSvc := service.NewConversationService(logger, conversationRepo, messageRepo, publisher)
	messageSvc := service.NewMessageService(logger, conversationRepo, messageRepo, publisher, cfg.MediaMaxAttachments)

	handlers := apihttp.NewHandlers(logger, apihttp.Services{
		Auth:          authSvc,
		JWT:           jwtSvc,
		Users:         service.NewUserService(logger, userRepo),
		Conversations: conversationSvc,
		Messages:      messageSvc,
		Media:         service.NewMediaService(logger, mediaStore, cfg.MediaMaxAttachments, maxUploadBytes),
	})
	gateway := realtime.NewGateway(logger, hub, jwtSvc, conversationSvc, messageSvc, cfg.AllowedOrigins())
	router := apihttp.NewRouter(logger, handlers, apihttp.RouterOptions{
		JWT: jwtSvc,
		Health: func(ctx context.Context) error {
			return db.Ping(ctx, pool)
		},
		Realtime:       gateway,
		UploadDir:      mediaStore.Dir(),
		MaxUploadBytes: maxUploadBytes,
	})

	go purgeChallenges(ctx, logger, pool)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.AppEnv))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

// purgeChallenges borra periódicamente los desafíos OTP vencidos.
func purgeChallenges(ctx context.Context, logger *zap.Logger, pool *pgxpool.Pool) {
	ticker := time.NewTicker(challengePurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.PurgeExpiredChallenges(ctx, pool)
			if err != nil {
				logger.Warn("purge otp challenges", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("purged otp challenges", zap.Int64("count", n))
			}
		}
	}
}

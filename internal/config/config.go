package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort             string        `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv               string        `env:"APP_ENV" envDefault:"development"`
	DatabaseURL          string        `env:"DATABASE_URL,required"`
	JWTSecret            string        `env:"JWT_SECRET,required"`
	JWTAccessTTLMinutes  int           `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"10080"`
	JWTRefreshTTLMinutes int           `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`
	RedisAddr            string        `env:"REDIS_ADDR"`
	RedisPassword        string        `env:"REDIS_PASSWORD"`
	RedisDB              int           `env:"REDIS_DB" envDefault:"0"`
	PhoneCountryCode     string        `env:"PHONE_DEFAULT_COUNTRY_CODE" envDefault:"1"`
	OTPRequestLimit      int           `env:"OTP_REQUEST_LIMIT" envDefault:"3"`
	OTPRequestWindow     time.Duration `env:"OTP_REQUEST_WINDOW" envDefault:"10m"`
	MediaUploadDir       string        `env:"MEDIA_UPLOAD_DIR" envDefault:"uploads"`
	MediaPublicBaseURL   string        `env:"MEDIA_PUBLIC_BASE_URL"`
	MediaMaxFileSizeMB   int           `env:"MEDIA_MAX_FILE_SIZE_MB" envDefault:"15"`
	MediaMaxAttachments  int           `env:"MEDIA_MAX_ATTACHMENTS" envDefault:"5"`
	WSAllowedOrigins     string        `env:"WS_ALLOWED_ORIGINS" envDefault:"*"`
	SMTPHost             string        `env:"SMTP_HOST"`
	SMTPPort             int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser             string        `env:"SMTP_USER"`
	SMTPPass             string        `env:"SMTP_PASS"`
	SMTPFrom             string        `env:"SMTP_FROM"`
	SMTPFromName         string        `env:"SMTP_FROM_NAME"`
	SMTPUseTLS           bool          `env:"SMTP_USE_TLS" envDefault:"false"`
	SMSGatewayDomain     string        `env:"SMS_GATEWAY_DOMAIN"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.MediaPublicBaseURL) == "" {
		cfg.MediaPublicBaseURL = "http://localhost:" + cfg.HTTPPort
	}
	cfg.MediaPublicBaseURL = strings.TrimRight(cfg.MediaPublicBaseURL, "/")
	return &cfg, nil
}

// IsProduction indica si el proceso corre en producción.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

// AllowedOrigins devuelve la lista de orígenes aceptados por el websocket.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.WSAllowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

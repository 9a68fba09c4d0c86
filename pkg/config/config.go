package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Auth      AuthConfig
	Stripe    StripeConfig
	Email     EmailConfig
	Media     MediaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	FrontendURL  string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
}

type DatabaseConfig struct {
	URL  string `env:"DATABASE_URL" envDefault:"mongodb://localhost:27017"`
	Name string `env:"DATABASE_NAME" envDefault:"luxsuv_tours"`
}

// RedisConfig backs rate limiting and the idempotency cache. Empty URL disables both.
type RedisConfig struct {
	URL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
}

// NATSConfig: empty URL means events are dropped.
type NATSConfig struct {
	URL string `env:"NATS_URL"`
}

type AuthConfig struct {
	JWTSecret         string        `env:"JWT_SECRET" envDefault:"dev-only-secret-change-in-prod"`
	JWTExpiresIn      time.Duration `env:"JWT_EXPIRES_IN" envDefault:"2160h"`
	CookieExpiresDays int           `env:"JWT_COOKIE_EXPIRES_IN" envDefault:"90"`
	CookieSecure      bool          `env:"COOKIE_SECURE" envDefault:"true"`
	PasswordResetTTL  time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"10m"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `env:"STRIPE_CURRENCY" envDefault:"usd"`
}

type EmailConfig struct {
	Provider      string `env:"EMAIL_PROVIDER" envDefault:"dev"`
	SMTPHost      string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"1025"`
	SMTPUser      string `env:"SMTP_USER"`
	SMTPPass      string `env:"SMTP_PASS"`
	From          string `env:"EMAIL_FROM" envDefault:"hello@luxsuv-tours.dev"`
	FromName      string `env:"EMAIL_FROM_NAME" envDefault:"LuxSuv Tours"`
	MailerSendKey string `env:"MAILERSEND_API_KEY"`
}

type MediaConfig struct {
	CloudinaryURL string `env:"CLOUDINARY_URL"`
	Folder        string `env:"MEDIA_FOLDER" envDefault:"tours"`
	MaxUploadSize int64  `env:"MEDIA_MAX_UPLOAD_BYTES" envDefault:"10485760"`
}

type RateLimitConfig struct {
	Requests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"1000"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`
}

type CORSConfig struct {
	Origins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// Load reads config.env and .env when present, then the process environment.
// Variables already set in the environment win over file values.
func Load() (*Config, error) {
	for _, file := range []string{"config.env", ".env"} {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.IsProduction() && cfg.Auth.JWTSecret == "dev-only-secret-change-in-prod" {
		return nil, errors.New("JWT_SECRET must be set in production")
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

func (c *Config) Addr() string { return ":" + c.Server.Port }

// CookieTTL converts the day-based cookie setting into a duration.
func (c AuthConfig) CookieTTL() time.Duration {
	return time.Duration(c.CookieExpiresDays) * 24 * time.Hour
}

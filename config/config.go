package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	MailProviderSMTP   = "smtp"
	MailProviderResend = "resend"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	LogLevel    string

	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	BcryptCost     int

	AppBaseURL               string
	ResetTokenTTL            time.Duration
	ResetConcealUnknownEmail bool
	ResetSweepInterval       time.Duration
	ResetRequestLimit        int
	ResetRequestWindow       time.Duration

	Mail  MailConfig
	Redis RedisConfig

	CORSAllowedOrigins []string
}

type MailConfig struct {
	Provider         string
	From             string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPImplicitTLS  bool
	ResendAPIKey     string
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	SocketTimeout    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads the environment, after applying an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTIssuer:      getEnv("JWT_ISSUER", "lostfound"),
		AccessTokenTTL: getDuration("ACCESS_TOKEN_TTL", 72*time.Hour),
		BcryptCost:     getInt("BCRYPT_COST", 10),

		AppBaseURL:               strings.TrimRight(strings.TrimSpace(os.Getenv("APP_BASE_URL")), "/"),
		ResetTokenTTL:            getDuration("RESET_TOKEN_TTL", time.Hour),
		ResetConcealUnknownEmail: getBool("RESET_CONCEAL_UNKNOWN_EMAIL", false),
		ResetSweepInterval:       getDuration("RESET_SWEEP_INTERVAL", 15*time.Minute),
		ResetRequestLimit:        getInt("RESET_REQUEST_LIMIT", 5),
		ResetRequestWindow:       getDuration("RESET_REQUEST_WINDOW", time.Hour),

		Mail: MailConfig{
			Provider:         strings.ToLower(getEnv("MAIL_PROVIDER", MailProviderSMTP)),
			From:             strings.TrimSpace(os.Getenv("MAIL_FROM")),
			SMTPHost:         strings.TrimSpace(os.Getenv("SMTP_HOST")),
			SMTPPort:         getInt("SMTP_PORT", 587),
			SMTPUsername:     os.Getenv("SMTP_USERNAME"),
			SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
			SMTPImplicitTLS:  getBool("SMTP_IMPLICIT_TLS", false),
			ResendAPIKey:     os.Getenv("RESEND_API_KEY"),
			ConnectTimeout:   getDuration("MAIL_CONNECT_TIMEOUT", 10*time.Second),
			HandshakeTimeout: getDuration("MAIL_HANDSHAKE_TIMEOUT", 10*time.Second),
			SocketTimeout:    getDuration("MAIL_SOCKET_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},

		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.AppBaseURL == "" {
		errs = append(errs, errors.New("APP_BASE_URL is required"))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("RESET_TOKEN_TTL must be positive"))
	}
	if c.BcryptCost < 10 {
		errs = append(errs, errors.New("BCRYPT_COST must be at least 10"))
	}
	if c.Mail.From == "" {
		errs = append(errs, errors.New("MAIL_FROM is required"))
	}
	switch c.Mail.Provider {
	case MailProviderSMTP:
		if c.Mail.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for the smtp provider"))
		}
	case MailProviderResend:
		if strings.TrimSpace(c.Mail.ResendAPIKey) == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required for the resend provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_PROVIDER %q", c.Mail.Provider))
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		var cleaned []string
		for _, p := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}

// DatabaseURL returns only the connection string, for tools that need nothing else.
func DatabaseURL() (string, error) {
	_ = godotenv.Load()
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return "", errors.New("DATABASE_URL is required")
	}
	return dsn, nil
}

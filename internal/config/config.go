package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port              string
	Storage           string
	DBConn            string
	LogLevel          string
	JWTSecret         string
	SweepSchedule     string
	SweepTimezone     *time.Location
	EmailBackend      string
	SMTPHost          string
	SMTPPort          string
	SMTPUsername      string
	SMTPPassword      string
	SenderEmail       string
	SendGridAPIKey    string
	NotifyRetries     int
	RendererURL       string
	CertificateSecret string
}

// NewConfig loads configuration from environment variables, after reading
// .env from the working directory when one exists
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Storage:           getEnv("STORAGE", "postgres"),
		DBConn:            getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=institute sslmode=disable"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:         getEnv("JWT_SECRET", "secret"),
		SweepSchedule:     getEnv("SWEEP_SCHEDULE", "0 1 * * *"),
		EmailBackend:      getEnv("EMAIL_BACKEND", "log"),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "25"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SenderEmail:       getEnv("SENDER_EMAIL", "accounts@institute.local"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		RendererURL:       getEnv("RENDERER_URL", ""),
		CertificateSecret: getEnv("CERTIFICATE_SECRET", "c3e1a9f07b2d4e6a8c1f0b3d5e7a9c2e"),
	}

	loc, err := time.LoadLocation(getEnv("SWEEP_TIMEZONE", "Asia/Kolkata"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_TIMEZONE: %w", err)
	}
	cfg.SweepTimezone = loc

	retries, err := strconv.Atoi(getEnv("NOTIFY_RETRIES", "3"))
	if err != nil || retries < 0 {
		return nil, fmt.Errorf("NOTIFY_RETRIES must be a non-negative integer")
	}
	cfg.NotifyRetries = retries

	switch cfg.Storage {
	case "postgres":
		if cfg.DBConn == "" {
			return nil, fmt.Errorf("DB_CONN is required")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unknown STORAGE %q", cfg.Storage)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.CertificateSecret == "" {
		return nil, fmt.Errorf("CERTIFICATE_SECRET is required")
	}
	switch cfg.EmailBackend {
	case "log":
	case "smtp":
		if cfg.SMTPHost == "" || cfg.SenderEmail == "" {
			return nil, fmt.Errorf("SMTP_HOST and SENDER_EMAIL are required for the smtp backend")
		}
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid backend")
		}
	default:
		return nil, fmt.Errorf("unknown EMAIL_BACKEND %q", cfg.EmailBackend)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is resolved once at startup. Database configuration is required,
// SMTP is optional: the confirmation email is best-effort and its absence
// must not prevent the service from starting.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	SMTP     SMTPConfig

	PDFPath string `env:"PDF_PATH" envDefault:"public/7-jours-de-priere.pdf"`
}

type HTTPConfig struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port string `env:"PORT" envDefault:"8080"`
}

// DatabaseConfig carries the candidate connection string variables. The
// hosting platforms this ran on expose the same database under different
// names, so the first non-empty one wins.
type DatabaseConfig struct {
	URL         string `env:"DATABASE_URL"`
	PostgresURL string `env:"POSTGRES_URL"`
	PrismaURL   string `env:"POSTGRES_PRISMA_URL"`
}

// ConnString returns the connection string with DATABASE_URL taking
// precedence over POSTGRES_URL, then POSTGRES_PRISMA_URL.
func (d DatabaseConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	if d.PostgresURL != "" {
		return d.PostgresURL
	}
	return d.PrismaURL
}

type SMTPConfig struct {
	Host     string `env:"EMAIL_HOST" envDefault:"smtp.gmail.com"`
	Port     int    `env:"EMAIL_PORT" envDefault:"587"`
	Secure   bool   `env:"EMAIL_SECURE"`
	User     string `env:"EMAIL_USER"`
	Password string `env:"EMAIL_PASSWORD"`
}

// Configured reports whether enough is present to attempt a send.
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.User != "" && s.Password != ""
}

func Load() (*Config, error) {
	godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.ConnString() == "" {
		return errors.New("no database connection string found (DATABASE_URL, POSTGRES_URL or POSTGRES_PRISMA_URL)")
	}
	return nil
}

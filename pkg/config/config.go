// Package config loads potluck settings from the environment and flags.
//
// Environment variables provide defaults; flags registered on a command's
// FlagSet override them.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/daviddao/potluck/pkg/notify"
)

// Config holds every tunable of the server and the CLI.
type Config struct {
	DBPath   string `env:"POTLUCK_DB" envDefault:".potluck/potluck.db"`
	User     string `env:"POTLUCK_USER"`
	HTTPAddr string `env:"POTLUCK_HTTP_ADDR" envDefault:":8080"`
	URL      string `env:"POTLUCK_URL" envDefault:"http://localhost:8080"`

	JWTSecret string        `env:"POTLUCK_JWT_SECRET"`
	JWTIssuer string        `env:"POTLUCK_JWT_ISSUER" envDefault:"potluck"`
	TokenTTL  time.Duration `env:"POTLUCK_TOKEN_TTL" envDefault:"24h"`

	PollInterval      time.Duration `env:"POTLUCK_POLL_INTERVAL" envDefault:"10s"`
	PresenceTimeout   time.Duration `env:"POTLUCK_PRESENCE_TIMEOUT" envDefault:"120s"`
	ActivityRetention time.Duration `env:"POTLUCK_ACTIVITY_RETENTION" envDefault:"720h"`
	SweepInterval     time.Duration `env:"POTLUCK_SWEEP_INTERVAL" envDefault:"1m"`

	AppName      string `env:"POTLUCK_APP_NAME" envDefault:"Potluck"`
	AppURL       string `env:"POTLUCK_APP_URL" envDefault:"http://localhost:3000"`
	SupportEmail string `env:"POTLUCK_SUPPORT_EMAIL"`

	SMTPHost     string `env:"POTLUCK_SMTP_HOST"`
	SMTPPort     int    `env:"POTLUCK_SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"POTLUCK_SMTP_USERNAME"`
	SMTPPassword string `env:"POTLUCK_SMTP_PASSWORD"`
	EmailFrom    string `env:"POTLUCK_EMAIL_FROM"`

	EmailInvitations bool `env:"POTLUCK_EMAIL_INVITATIONS" envDefault:"true"`
	PresenceTracking bool `env:"POTLUCK_PRESENCE_TRACKING" envDefault:"true"`
	ActivityLogging  bool `env:"POTLUCK_ACTIVITY_LOGGING" envDefault:"true"`

	OTelEndpoint string `env:"POTLUCK_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"POTLUCK_OTEL_ENABLED" envDefault:"true"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ParseConfig loads environment defaults, binds the shared flags on fs and
// parses args. Command-specific flags must be registered on fs beforehand.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if fs == nil {
		return Config{}, errors.New("flag parser is required")
	}
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.User, "as", cfg.User, "acting user id")
	if err := parseInterleaved(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parseInterleaved parses flags wherever they appear in args, so
// "invite doc1 bob@x.com --message hi" works. Positionals stay in order in
// fs.Args(); anything after "--" is taken verbatim.
func parseInterleaved(fs *flag.FlagSet, args []string) error {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		if len(args) > len(rest) && args[len(args)-len(rest)-1] == "--" {
			positional = append(positional, rest...)
			break
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
	return fs.Parse(append([]string{"--"}, positional...))
}

// Validate checks settings every command relies on.
func (c Config) Validate() error {
	var errs []error
	for name, d := range map[string]time.Duration{
		"POTLUCK_TOKEN_TTL":        c.TokenTTL,
		"POTLUCK_POLL_INTERVAL":    c.PollInterval,
		"POTLUCK_PRESENCE_TIMEOUT": c.PresenceTimeout,
		"POTLUCK_SWEEP_INTERVAL":   c.SweepInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.ActivityRetention < 0 {
		errs = append(errs, fmt.Errorf("POTLUCK_ACTIVITY_RETENTION must not be negative, got %s", c.ActivityRetention))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("POTLUCK_DB is required"))
	}
	return errors.Join(errs...)
}

// ValidateServe additionally checks what the server needs.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return errors.New("POTLUCK_JWT_SECRET is required to serve")
	}
	if c.HTTPAddr == "" {
		return errors.New("POTLUCK_HTTP_ADDR is required to serve")
	}
	return nil
}

// SMTP returns the mail server settings.
func (c Config) SMTP() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.EmailFrom,
	}
}

// Branding returns the application identity used in emails.
func (c Config) Branding() notify.Branding {
	return notify.Branding{AppName: c.AppName, AppURL: c.AppURL, SupportEmail: c.SupportEmail}
}

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env"
	"github.com/spf13/pflag"
)

// arguments mirrors the environment variables accepted by the service.
type arguments struct {
	ListenAddr      string  `env:"WALLETD_LISTEN_ADDR" envDefault:":8080"`
	LogLevel        string  `env:"WALLETD_LOG_LEVEL" envDefault:"info"`
	DatabaseDSN     string  `env:"WALLETD_PG_DSN" envDefault:""`
	TokenSecret     string  `env:"WALLETD_TOKEN_SECRET" envDefault:""`
	TokenTTL        string  `env:"WALLETD_TOKEN_TTL" envDefault:"1h"`
	MaxTransfer     float64 `env:"WALLETD_MAX_TRANSFER" envDefault:"1000000"`
	StartingBalance float64 `env:"WALLETD_STARTING_BALANCE" envDefault:"0"`
	AdminUsername   string  `env:"WALLETD_ADMIN_USERNAME" envDefault:""`
	AdminPassword   string  `env:"WALLETD_ADMIN_PASSWORD" envDefault:""`
	LoginAttempts   int     `env:"WALLETD_LOGIN_ATTEMPTS" envDefault:"5"`
	LoginWindow     string  `env:"WALLETD_LOGIN_WINDOW" envDefault:"15m"`
}

// Config holds the resolved runtime settings.
type Config struct {
	ListenAddr      string
	LogLevel        string
	DatabaseDSN     string
	TokenSecret     string
	TokenTTL        time.Duration
	MaxTransfer     float64
	StartingBalance float64
	AdminUsername   string
	AdminPassword   string
	LoginAttempts   int
	LoginWindow     time.Duration
}

// New parses environment variables and command line flags. Flags win.
func New() (Config, error) {
	var args arguments
	if err := env.Parse(&args); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	var (
		listen    = pflag.StringP("listen", "a", args.ListenAddr, "Listen address in a form host:port.")
		logLevel  = pflag.StringP("log-level", "l", args.LogLevel, "Log level.")
		dsn       = pflag.StringP("dsn", "d", args.DatabaseDSN, "PostgreSQL DSN. Empty keeps the in-memory store.")
		secret    = pflag.StringP("token-secret", "s", args.TokenSecret, "Token signing secret. Empty generates one per process.")
		tokenTTL  = pflag.String("token-ttl", args.TokenTTL, "Bearer token lifetime.")
		maxAmount = pflag.Float64("max-transfer", args.MaxTransfer, "Ceiling for a single transfer or balance override.")
		starting  = pflag.Float64("starting-balance", args.StartingBalance, "Balance granted to newly registered users.")
		attempts  = pflag.Int("login-attempts", args.LoginAttempts, "Login attempts allowed per window per address.")
		window    = pflag.String("login-window", args.LoginWindow, "Login rate limit window.")
	)
	pflag.Parse()

	ttl, err := time.ParseDuration(*tokenTTL)
	if err != nil {
		return Config{}, fmt.Errorf("parse token ttl: %w", err)
	}
	loginWindow, err := time.ParseDuration(*window)
	if err != nil {
		return Config{}, fmt.Errorf("parse login window: %w", err)
	}

	return Config{
		ListenAddr:      *listen,
		LogLevel:        *logLevel,
		DatabaseDSN:     *dsn,
		TokenSecret:     *secret,
		TokenTTL:        ttl,
		MaxTransfer:     *maxAmount,
		StartingBalance: *starting,
		AdminUsername:   args.AdminUsername,
		AdminPassword:   args.AdminPassword,
		LoginAttempts:   *attempts,
		LoginWindow:     loginWindow,
	}, nil
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		LogLevel:      "info",
		TokenTTL:      time.Hour,
		MaxTransfer:   1_000_000,
		LoginAttempts: 5,
		LoginWindow:   15 * time.Minute,
	}
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"walletd.org/internal/audit"
	"walletd.org/internal/auth"
	"walletd.org/internal/config"
	"walletd.org/internal/httpapi"
	"walletd.org/internal/ledger"
	"walletd.org/internal/obs"
	"walletd.org/internal/store"
)

var version = "0.3.1"

func main() {
	cfg, err := config.New()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := obs.InitLogger(cfg.LogLevel); err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer obs.Sync()
	obs.Init()
	obs.InitBuildInfo(version)
	log := obs.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		st store.Store
		db *sql.DB
	)
	if cfg.DatabaseDSN != "" {
		db, err = sql.Open("pgx", cfg.DatabaseDSN)
		if err != nil {
			log.Fatalw("open database", "error", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalw("ensure schema", "error", err)
		}
		st = pg
		log.Infow("using postgres store")
	} else {
		st = store.NewMemory()
		log.Infow("using in-memory store; data is lost on restart")
	}

	tokenOpts := []auth.TokenOption{auth.WithTTL(cfg.TokenTTL)}
	if cfg.TokenSecret != "" {
		tokenOpts = append(tokenOpts, auth.WithSecret(cfg.TokenSecret))
	}
	tokens, err := auth.NewTokenService(st, tokenOpts...)
	if err != nil {
		log.Fatalw("token service", "error", err)
	}
	if cfg.TokenSecret == "" {
		log.Warnw("no token secret configured; tokens will not survive a restart")
	}

	identity := auth.NewService(st, tokens, decimal.NewFromFloat(cfg.StartingBalance))
	trail := audit.NewTrail()
	books := ledger.New(st, trail, decimal.NewFromFloat(cfg.MaxTransfer))

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if err := seedAdmin(ctx, st, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			log.Fatalw("seed admin", "error", err)
		}
	}

	api := httpapi.New(httpapi.Config{
		Version:       version,
		Identity:      identity,
		Ledger:        books,
		Store:         st,
		Probe:         httpapi.ReadyProbe{DB: db},
		LoginAttempts: cfg.LoginAttempts,
		LoginWindow:   cfg.LoginWindow,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infow("starting walletd", "version", version, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("listen", "error", err)
		}
	}()

	<-ctx.Done()
	log.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if db != nil {
		_ = db.Close()
	}
	log.Infow("stopped")
}

// seedAdmin provisions the configured admin account. An existing user
// with the same username is left untouched.
func seedAdmin(ctx context.Context, st store.Store, username, password string) error {
	if err := auth.ValidateUsername(username); err != nil {
		return err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := store.User{
		Username:     username,
		Email:        username + "@localhost",
		PasswordHash: hash,
		Role:         store.RoleAdmin,
		Balance:      decimal.Zero,
	}
	if err := st.CreateUser(ctx, &admin); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil
		}
		return err
	}
	obs.Logger().Infow("admin user created", "user_id", admin.ID)
	return nil
}

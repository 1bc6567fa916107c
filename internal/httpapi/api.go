// Package httpapi parses requests, invokes the policy core and renders
// JSON responses. Authorization decisions live in internal/auth; this
// layer only translates.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"walletd.org/internal/auth"
	"walletd.org/internal/ledger"
	"walletd.org/internal/obs"
	"walletd.org/internal/store"
)

// ReadyProbe reports readiness; with a database attached it pings it.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config collects the collaborators the HTTP layer dispatches to.
type Config struct {
	Version       string
	Identity      *auth.Service
	Ledger        *ledger.Service
	Store         store.Store
	Probe         ReadyProbe
	LoginAttempts int
	LoginWindow   time.Duration
	MaxBodyBytes  int64
}

// API is the HTTP layer.
type API struct {
	router   chi.Router
	identity *auth.Service
	ledger   *ledger.Service
	store    store.Store
	probe    ReadyProbe
	version  string
}

// New builds the router. Register, login and the probes are public;
// everything else sits behind bearer authentication, and the admin
// routes additionally behind the admin policy check.
func New(cfg Config) *API {
	a := &API{
		router:   chi.NewRouter(),
		identity: cfg.Identity,
		ledger:   cfg.Ledger,
		store:    cfg.Store,
		probe:    cfg.Probe,
		version:  cfg.Version,
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	attempts := cfg.LoginAttempts
	if attempts <= 0 {
		attempts = 5
	}
	window := cfg.LoginWindow
	if window <= 0 {
		window = 15 * time.Minute
	}
	loginLimiter := newIPLimiter(attempts, window)

	r := a.router
	r.Use(RequestID)
	r.Use(Logging)
	r.Use(SecurityHeaders)
	r.Use(MaxBodyBytes(maxBody))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Post("/register", a.handleRegister)
	r.With(loginLimiter.Limit).Post("/login", a.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(a.withAuth)

		r.Post("/logout", a.handleLogout)
		r.Get("/user/{id}", a.handleGetUser)
		r.Get("/balance/{id}", a.handleGetBalance)
		r.Get("/transactions/{id}", a.handleGetTransactions)
		r.Post("/send", a.handleSend)

		r.Route("/admin", func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Get("/users", a.handleAdminListUsers)
			r.Post("/modify-balance", a.handleAdminModifyBalance)
		})
	})

	return a
}

// Handler returns the instrumented root handler.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router, func(r *http.Request) string {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			return rctx.RoutePattern()
		}
		return ""
	})
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "walletd",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.probe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

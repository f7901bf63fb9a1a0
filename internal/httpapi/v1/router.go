// Package v1 wires the HTTP surface of the bank ledger.
// It keeps handlers thin, delegating business rules to the registry.
package v1

import (
    "crypto/rand"
    "encoding/hex"
    "log/slog"
    "net/http"
    "sync"
    "time"

    chi "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
)

// Options configure token issuing and readiness checks.
type Options struct {
    // JWTSecret signs and verifies bearer tokens. When empty a random secret is
    // generated, so tokens do not survive a restart.
    JWTSecret string
    Issuer    string
    Audience  string
    TokenTTL  time.Duration
    // Ready, when set, backs /readyz.
    Ready ReadyChecker
    Now   func() time.Time
}

// Server wires handlers and middleware using Chi.
type Server struct {
    bank Bank
    opts Options
    log  *slog.Logger
    rt   *chi.Mux

    idemMu sync.Mutex
    idem   map[string]storedResponse
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request/response logging and panic recovery.
func New(bank Bank, logger *slog.Logger, opts Options) *Server {
    if logger == nil { logger = slog.Default() }
    if opts.TokenTTL <= 0 { opts.TokenTTL = 15 * time.Minute }
    if opts.Now == nil { opts.Now = time.Now }
    if opts.JWTSecret == "" {
        b := make([]byte, 32)
        _, _ = rand.Read(b)
        opts.JWTSecret = hex.EncodeToString(b)
        logger.Warn("JWT_HS256_SECRET not set; using an ephemeral signing secret")
    }

    r := chi.NewRouter()
    r.Use(chimw.RequestID)
    r.Use(requestLogger(logger))
    r.Use(recoverer(logger))
    r.Use(metricsMiddleware)
    r.Use(limitBody)

    s := &Server{
        bank: bank,
        opts: opts,
        log:  logger,
        rt:   r,
        idem: make(map[string]storedResponse),
    }
    s.routes()
    return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
    // Health + metrics (unversioned)
    s.rt.Get("/healthz", s.healthz)
    s.rt.Get("/readyz", s.readyz)
    s.rt.Handle("/metrics", metricsHandler())
    s.rt.NotFound(func(w http.ResponseWriter, r *http.Request) { notFound(w) })

    s.rt.Get("/v1/dictionary/account-types", s.getAccountTypes)
    s.rt.With(s.validateCredentials()).Post("/v1/users", s.postUser)
    s.rt.With(s.validateCredentials()).Post("/v1/tokens", s.postToken)

    s.rt.Group(func(r chi.Router) {
        r.Use(s.requireAuth)
        r.Use(s.idempotency)
        r.With(s.validatePostAccount()).Post("/v1/accounts", s.postAccount)
        r.Get("/v1/accounts", s.listAccounts)
        r.Get("/v1/accounts/{number}", s.getAccount)
        r.With(s.validatePatchAccount()).Patch("/v1/accounts/{number}", s.patchAccount)
        r.With(s.validateAmount()).Post("/v1/accounts/{number}/deposits", s.postDeposit)
        r.With(s.validateAmount()).Post("/v1/accounts/{number}/withdrawals", s.postWithdrawal)
        r.Post("/v1/accounts/{number}/interest", s.postInterest)
        r.Get("/v1/accounts/{number}/statement", s.getStatement)
    })
}

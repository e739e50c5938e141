package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"giftcard-service/internal/config"
	"giftcard-service/internal/infra/security"
	"giftcard-service/internal/usecase"
)

// Deps are the use cases and collaborators the HTTP layer serves.
type Deps struct {
	Plans      usecase.PlanUseCase
	Settings   usecase.SettingsUseCase
	GiftCards  usecase.GiftCardUseCase
	Redemption usecase.RedemptionUseCase
	Ledger     usecase.LedgerUseCase
	Payments   usecase.PaymentUseCase
	Stats      usecase.StatsUseCase
	Auth       *AuthManager
	Limiter    Limiter
	// Sandbox mounts POST /dev/sandbox/settle when set. Dev mode only.
	Sandbox SandboxSettler
	// Ready reports dependency health for /health. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Server owns the router and the underlying http.Server.
type Server struct {
	deps      Deps
	cfg       config.HTTPConfig
	signature security.WebhookSignature
	log       *zerolog.Logger
	srv       *http.Server
}

func NewServer(cfg config.HTTPConfig, deps Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	s := &Server{
		deps:      deps,
		cfg:       cfg,
		signature: security.WebhookSignature{MaxSkew: 10 * time.Minute},
		log:       &l,
	}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID(), Recover(s.log), RequestLog(s.log))
	if s.cfg.HandlerTimeout > 0 {
		r.Use(Timeout(s.cfg.HandlerTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/plans", s.handleListPlans)
	r.With(RateLimit(s.deps.Limiter, "transactions", s.cfg.RateLimit, s.cfg.RateWindow, s.log)).
		Post("/transactions", s.handleCreateTransaction)
	r.Get("/transactions/{id}", s.handleGetTransaction)
	r.Post("/gateway/webhook", s.handleGatewayWebhook)
	r.With(RateLimit(s.deps.Limiter, "redeem", s.cfg.RateLimit, s.cfg.RateWindow, s.log)).
		Post("/redeem", s.handleRedeem)

	if s.deps.Sandbox != nil {
		r.Post("/dev/sandbox/settle", s.handleSandboxSettle)
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.deps.Auth.RequireAdmin(s.log))
		r.Post("/gift-cards", s.handleIssueGiftCard)
		r.Get("/plans", s.handleAdminListPlans)
		r.Post("/plans", s.handleCreatePlan)
		r.Put("/plans/{id}", s.handleUpdatePlan)
		r.Put("/settings/{key}", s.handleSetSetting)
		r.Get("/stats", s.handleStats)
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

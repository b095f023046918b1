package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/peerwise/peerwise/internal/api/handlers"
	mw "github.com/peerwise/peerwise/internal/api/middleware"
	"github.com/peerwise/peerwise/internal/consult"
	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/payment"
	"github.com/peerwise/peerwise/internal/retrieval"
	"github.com/peerwise/peerwise/internal/session"
	"go.uber.org/zap"
)

// AgentConfig wires one expert agent's serving surface.
type AgentConfig struct {
	AgentID      string
	DisplayName  string
	ArtifactsDir string
	IndexPath    string

	Payment payment.Config
	Wallet  domain.Wallet

	SessionTTL     session.Options
	RetrievalOpts  retrieval.Options
	RateLimitRPS   float64
	RateLimitBurst int
}

// AgentApp holds the agent router and the owned background state for
// lifecycle management.
type AgentApp struct {
	Router   *chi.Mux
	Sessions *session.Store
}

// NewAgentApp builds the expert agent's HTTP surface. Only /ask is
// payment-gated; profile and status stay free so the directory and
// prospective clients can inspect the agent.
func NewAgentApp(cfg AgentConfig, reasoner domain.Reasoner, logger *zap.Logger) *AgentApp {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := session.NewStore(cfg.SessionTTL, logger)
	engine := retrieval.NewEngine(cfg.ArtifactsDir, cfg.IndexPath, cfg.RetrievalOpts, logger)
	svc := consult.NewService(engine, reasoner, sessions, logger)
	gate := payment.NewGate(cfg.Payment, cfg.Wallet, logger)

	h := handlers.NewConsultHandler(svc, sessions, cfg.AgentID, cfg.DisplayName, cfg.IndexPath, gate.Terms(), logger)

	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	r.Group(func(r chi.Router) {
		r.Use(mw.PaymentGate(gate))
		r.Post("/ask", h.Ask)
	})
	r.Get("/profile", h.Profile)
	r.Get("/status", h.Status)

	return &AgentApp{Router: r, Sessions: sessions}
}

// Close stops the session sweep and drops session state.
func (a *AgentApp) Close() {
	a.Sessions.Destroy()
}

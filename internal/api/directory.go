package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/peerwise/peerwise/internal/api/handlers"
	mw "github.com/peerwise/peerwise/internal/api/middleware"
	"github.com/peerwise/peerwise/internal/discovery"
	"github.com/peerwise/peerwise/internal/domain"
	"github.com/peerwise/peerwise/internal/payment"
	"github.com/peerwise/peerwise/internal/registry"
	"go.uber.org/zap"
)

// DirectoryConfig wires the directory's serving surface.
type DirectoryConfig struct {
	RegistryPath string
	Registry     registry.Options
	Discovery    discovery.Options

	// Payment gates /connect only; discovery stays free.
	Payment payment.Config
	Wallet  domain.Wallet

	RateLimitRPS   float64
	RateLimitBurst int
}

// DirectoryApp holds the directory router and its owned registry.
type DirectoryApp struct {
	Router   *chi.Mux
	Registry *registry.Registry
}

// NewDirectoryApp builds the directory's HTTP surface. The reasoner
// may be nil; discovery then returns the raw keyword shortlist.
func NewDirectoryApp(cfg DirectoryConfig, reasoner domain.Reasoner, logger *zap.Logger) (*DirectoryApp, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg, err := registry.Open(cfg.RegistryPath, cfg.Registry, logger)
	if err != nil {
		return nil, err
	}
	matcher := discovery.NewMatcher(reasoner, cfg.Discovery, logger)
	gate := payment.NewGate(cfg.Payment, cfg.Wallet, logger)

	h := handlers.NewDirectoryHandler(reg, matcher, logger)

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

	r.Post("/register", h.Register)
	r.Post("/heartbeat", h.Heartbeat)
	r.Post("/unregister", h.Unregister)
	r.Post("/discover", h.Discover)
	r.Group(func(r chi.Router) {
		r.Use(mw.PaymentGate(gate))
		r.Post("/connect", h.Connect)
	})
	r.Get("/status", h.Status)

	return &DirectoryApp{Router: r, Registry: reg}, nil
}

// Close stops the liveness sweep.
func (a *DirectoryApp) Close() {
	a.Registry.Close()
}

// Package api is the HTTP surface: simulations with websocket progress,
// the analytical calculators, the ledger, saved scenarios and reports.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xtding233/wishsim/internal/cache"
	"github.com/xtding233/wishsim/internal/config"
	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/game"
	"github.com/xtding233/wishsim/internal/host"
	"github.com/xtding233/wishsim/internal/metrics"
	"github.com/xtding233/wishsim/internal/pricing"
	"github.com/xtding233/wishsim/internal/scheduler"
	"github.com/xtding233/wishsim/internal/store"
	"github.com/xtding233/wishsim/internal/token"
)

// RuleSource is the live rule table.
type RuleSource interface {
	Game() string
	Table() gacha.Table
	Reload() error
}

// Deps are the collaborators the handlers use. Results and Metrics may be
// nil; a nil Projector is built from Store and Host.
type Deps struct {
	Host      *host.Host
	Store     *store.Store
	Rules     RuleSource
	Resolver  game.Resolver
	Results   *cache.Results
	Projector *scheduler.Projector
	Metrics   *metrics.Collector
	Catalog   pricing.Catalog
	Rates     func() token.Rates
	// IncomeWindowDays is the trailing window for ledger income estimates.
	IncomeWindowDays int
	Now              func() time.Time
	Logger           *slog.Logger
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  config.HTTPConfig
}

// NewServer builds the router and handler.
func NewServer(cfg config.HTTPConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Rates == nil {
		deps.Rates = token.DefaultRates
	}
	if deps.IncomeWindowDays <= 0 {
		deps.IncomeWindowDays = 30
	}
	if len(deps.Catalog.Packs) == 0 {
		deps.Catalog = pricing.DefaultCatalog()
	}
	if deps.Projector == nil && deps.Store != nil {
		deps.Projector = &scheduler.Projector{
			Store:            deps.Store,
			Host:             deps.Host,
			Rates:            deps.Rates,
			IncomeWindowDays: deps.IncomeWindowDays,
			Now:              deps.Now,
			Logger:           deps.Logger,
		}
	}
	h := NewHandler(deps, cfg.ProgressInterval)

	router := chi.NewRouter()
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware(deps.Logger))
	router.Use(middleware.RealIP)

	router.Get("/health", h.Health)
	if deps.Metrics != nil {
		router.Get("/metrics", deps.Metrics.Handler())
		router.Get("/metrics/prometheus", deps.Metrics.PrometheusHandler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/simulations", func(r chi.Router) {
			r.Post("/", h.Submit)
			r.Get("/{jobID}", h.GetJob)
			r.Delete("/{jobID}", h.CancelJob)
			r.Get("/{jobID}/result", h.GetResult)
			r.Get("/{jobID}/ws", h.StreamProgress)
			r.Get("/{jobID}/report", h.Report)
			r.Get("/sessions/{session}", h.LatestJob)
		})

		r.Route("/analytical", func(r chi.Router) {
			r.Post("/distribution", h.Distribution)
			r.Post("/single-target", h.SingleTarget)
			r.Post("/required-income", h.RequiredIncome)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.GetRules)
			r.Post("/reload", h.ReloadRules)
		})

		r.Route("/wishes", func(r chi.Router) {
			r.Get("/", h.ListWishes)
			r.Post("/", h.ImportWishes)
			r.Post("/replay", h.ReplayWishes)
		})

		r.Route("/ledger", func(r chi.Router) {
			r.Post("/snapshots", h.SaveSnapshot)
			r.Get("/snapshots/latest", h.LatestSnapshot)
			r.Get("/primogems", h.ListPrimogems)
			r.Post("/primogems", h.AddPrimogems)
			r.Get("/fates", h.ListFates)
			r.Post("/fates", h.AddFates)
			r.Get("/available", h.Available)
			r.Get("/income", h.Income)
			r.Get("/buckets", h.Buckets)
			r.Get("/budget", h.Budget)
		})

		r.Post("/pricing/top-up", h.TopUp)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/", h.CreateScenario)
			r.Get("/{scenarioID}", h.GetScenario)
			r.Put("/{scenarioID}", h.UpdateScenario)
			r.Delete("/{scenarioID}", h.DeleteScenario)
			r.Post("/{scenarioID}/run", h.RunScenario)
			r.Get("/{scenarioID}/runs", h.ListRuns)
		})
		r.Get("/runs/{runID}", h.GetRun)
	})

	return &Server{router: router, handler: h, config: cfg}
}

// Start blocks serving HTTP on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Package server binds the HTTP API, the public share pages, the
// billing and Telegram webhooks, and the embedded dashboard to one
// chi router.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/promptvaultdev/promptvault/internal/analyze"
	"github.com/promptvaultdev/promptvault/internal/auth"
	"github.com/promptvaultdev/promptvault/internal/billing"
	"github.com/promptvaultdev/promptvault/internal/config"
	"github.com/promptvaultdev/promptvault/internal/metrics"
	"github.com/promptvaultdev/promptvault/internal/prompts"
	"github.com/promptvaultdev/promptvault/internal/quota"
	"github.com/promptvaultdev/promptvault/internal/store"
	"github.com/promptvaultdev/promptvault/internal/telegram"
	"github.com/promptvaultdev/promptvault/web"
)

// Server is the HTTP front end. It owns the router and the graceful
// shutdown of the underlying http.Server.
type Server struct {
	router    chi.Router
	store     *store.Store
	cfg       *config.Config
	svc       *prompts.Service
	analyzer  *analyze.Analyzer
	gate      *quota.Gate
	billing   *billing.Service
	auth      *auth.Manager
	collector *metrics.Collector

	httpSrv *http.Server
}

// Deps bundles the wired services the server routes to.
type Deps struct {
	Store     *store.Store
	Prompts   *prompts.Service
	Analyzer  *analyze.Analyzer
	Gate      *quota.Gate
	Billing   *billing.Service
	Auth      *auth.Manager
	Telegram  *telegram.Handler
	Collector *metrics.Collector
}

// New builds the router and returns a Server ready to Start.
func New(cfg *config.Config, d Deps) *Server {
	s := &Server{
		store:     d.Store,
		cfg:       cfg,
		svc:       d.Prompts,
		analyzer:  d.Analyzer,
		gate:      d.Gate,
		billing:   d.Billing,
		auth:      d.Auth,
		collector: d.Collector,
	}

	if d.Telegram != nil && s.collector != nil {
		d.Telegram.OnCommand(s.collector.TelegramCommand)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(s.requestLogger)
	r.Use(s.trackActive)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Public surface: share links, webhooks, linking.
		r.Get("/share/{token}", s.handleSharedJSON)
		r.Post("/webhooks/stripe", s.handleStripeWebhook)
		r.Post("/webhooks/lemonsqueezy", s.handleLemonWebhook)
		r.Post("/auth/link", s.handleAuthLink)
		if d.Telegram != nil {
			r.Method(http.MethodPost, "/telegram/webhook", d.Telegram)
		}

		// Authenticated API.
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/prompts", s.handleListPrompts)
			r.Post("/prompts", s.handleCreatePrompt)
			r.Get("/prompts/{id}", s.handleGetPrompt)
			r.Patch("/prompts/{id}", s.handleUpdatePrompt)
			r.Delete("/prompts/{id}", s.handleDeletePrompt)
			r.Post("/prompts/{id}/use", s.handleUsePrompt)

			r.Get("/tags", s.handleListTags)
			r.Post("/tags", s.handleCreateTag)
			r.Get("/categories", s.handleListCategories)
			r.Post("/categories", s.handleCreateCategory)

			r.Get("/collections", s.handleListCollections)
			r.Post("/collections", s.handleCreateCollection)
			r.Get("/collections/{id}", s.handleGetCollection)
			r.Patch("/collections/{id}", s.handleUpdateCollection)
			r.Delete("/collections/{id}", s.handleDeleteCollection)
			r.Post("/collections/{id}/share", s.handleEnableSharing)
			r.Delete("/collections/{id}/share", s.handleDisableSharing)

			r.Post("/ai/analyze", s.handleAnalyze)
			r.Get("/subscription", s.handleSubscription)
			r.Post("/billing/checkout", s.handleCheckout)
			r.Get("/billing/portal", s.handleBillingPortal)

			r.Get("/stats", s.handleStats)
			r.Get("/stats/history", s.handleStatsHistory)
		})
	})

	// Prometheus metrics endpoint.
	if s.collector != nil {
		r.Get("/metrics", metrics.PrometheusHandler(s.collector))
	}

	// Public HTML share page.
	r.Get("/share/{token}", s.handleSharedHTML)

	// Embedded dashboard assets.
	staticFS := http.FileServer(http.FS(web.StaticFS()))
	r.Handle("/static/*", http.StripPrefix("/static/", staticFS))
	r.Get("/", s.handleDashboard)
	r.Get("/*", s.handleDashboard)

	s.router = r
	return s
}

// Router returns the underlying chi.Router, useful for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins listening on the configured address. It blocks until the
// server is shut down or an error occurs.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.BindAddress, s.cfg.Server.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeout) * time.Second,
	}

	log.Info().Str("addr", addr).Msg("server starting")
	var err error
	if s.cfg.Server.TLSEnabled {
		err = s.httpSrv.ListenAndServeTLS(s.cfg.Server.CertFile, s.cfg.Server.KeyFile)
	} else {
		err = s.httpSrv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDashboard serves the embedded HTML dashboard.
func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	data, err := web.Assets.ReadFile("templates/index.html")
	if err != nil {
		http.Error(w, "dashboard not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/canvass/internal/allowlist"
	"github.com/MikeSquared-Agency/canvass/internal/records"
	"github.com/MikeSquared-Agency/canvass/internal/store"
	"github.com/MikeSquared-Agency/canvass/internal/telegram"
)

// CollectorStore is the allow-list as the dashboard manages it.
type CollectorStore interface {
	List(ctx context.Context) ([]allowlist.Collector, error)
	Add(ctx context.Context, collectorID, displayName string) error
	Remove(ctx context.Context, collectorID string) error
}

type VoterLister interface {
	ListAll(ctx context.Context) ([]records.VoterRecord, error)
}

type StatsComputer interface {
	Compute(ctx context.Context) (records.Stats, error)
}

// Authenticator issues and checks dashboard session tokens.
type Authenticator interface {
	Login(username, password string) (string, error)
	Validate(token string) bool
	Principal(token string) (string, bool)
	Logout(token string)
}

// UpdateProcessor runs an inbound Telegram update through the intake pipeline.
type UpdateProcessor interface {
	Process(ctx context.Context, u telegram.Update)
}

// Deps wires the server to the rest of the service. Updates and Setup may be
// nil; the corresponding routes are then not mounted.
type Deps struct {
	Collectors    CollectorStore
	Voters        VoterLister
	Stats         StatsComputer
	Auth          Authenticator
	Setup         func(ctx context.Context) (store.SetupResult, error)
	Updates       UpdateProcessor
	WebhookSecret string
	Companion     bool
	Messaging     func() bool
}

type Server struct {
	router *chi.Mux
	port   int
	deps   Deps
	logger *slog.Logger
	http   *http.Server
}

func NewServer(port int, deps Deps, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		deps:   deps,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/canvass/status", s.status)

	router.Route("/api/dashboard", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)
		r.Get("/check-auth", s.checkAuth)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/delegates", s.listDelegates)
			r.Post("/delegates", s.addDelegate)
			r.Delete("/delegates/{collectorID}", s.removeDelegate)
			r.Get("/stats", s.stats)
			r.Get("/voters", s.listVoters)
			if deps.Setup != nil {
				r.Post("/setup", s.setup)
			}
		})
	})

	// The companion API mirrors part of the dashboard without sessions. It is
	// meant to be reachable only inside the deployment network.
	if deps.Companion {
		router.Route("/api/companion", func(r chi.Router) {
			r.Get("/delegates", s.listDelegates)
			r.Post("/delegates", s.addDelegate)
			r.Get("/voters", s.listVoters)
		})
	}

	if deps.Updates != nil {
		router.Post("/telegram/webhook", s.webhook)
	}

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	messaging := "disabled"
	if s.deps.Messaging != nil {
		messaging = "disconnected"
		if s.deps.Messaging() {
			messaging = "connected"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":     "canvass",
		"status":    "active",
		"webhook":   s.deps.Updates != nil,
		"companion": s.deps.Companion,
		"messaging": messaging,
	})
}

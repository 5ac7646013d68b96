// Package httpapi exposes the conversation backend to the game client as a
// JSON/REST surface, plus health probes, a Prometheus scrape endpoint, and a
// WebSocket feed of appended messages.
//
// Error responses are JSON objects with a single "detail" field naming the
// offending id or value. Model flakiness never surfaces as a 5xx: failed
// persona calls degrade to filler text inside the orchestrator, so only
// malformed requests (bad ids, empty content) produce error statuses.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ColinWang98/Intercultural-Town/internal/conversation"
	"github.com/ColinWang98/Intercultural-Town/internal/health"
	"github.com/ColinWang98/Intercultural-Town/internal/observe"
	"github.com/ColinWang98/Intercultural-Town/internal/persona"
)

// ServerConfig carries the dependencies of a [Server].
type ServerConfig struct {
	// Orchestrator processes turns and manages conversation lifecycle.
	// Must not be nil.
	Orchestrator *conversation.Orchestrator

	// Store serves the read-only endpoints (listings, message pages).
	// Must not be nil.
	Store conversation.Store

	// Registry backs the persona listing. Must not be nil.
	Registry *persona.Registry

	// Health serves /healthz and /readyz. Defaults to a handler with no
	// readiness checks.
	Health *health.Handler

	// Metrics records HTTP and watcher telemetry. Optional.
	Metrics *observe.Metrics

	// Logger receives request-level warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the HTTP front of the conversation backend.
type Server struct {
	orch     *conversation.Orchestrator
	store    conversation.Store
	registry *persona.Registry
	health   *health.Handler
	metrics  *observe.Metrics
	log      *slog.Logger
}

// NewServer validates cfg and builds a [Server].
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Orchestrator == nil {
		return nil, errors.New("httpapi: Orchestrator must not be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("httpapi: Store must not be nil")
	}
	if cfg.Registry == nil {
		return nil, errors.New("httpapi: Registry must not be nil")
	}
	h := cfg.Health
	if h == nil {
		h = health.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orch:     cfg.Orchestrator,
		store:    cfg.Store,
		registry: cfg.Registry,
		health:   h,
		metrics:  cfg.Metrics,
		log:      logger,
	}, nil
}

// Routes returns the full handler tree wrapped in the tracing/metrics
// middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /personas", s.handleListPersonas)

	mux.HandleFunc("POST /conversations", s.handleCreateConversation)
	mux.HandleFunc("GET /conversations", s.handleListConversations)
	mux.HandleFunc("GET /conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("DELETE /conversations/{id}", s.handleDeleteConversation)
	mux.HandleFunc("GET /conversations/{id}/messages", s.handleGetMessages)
	mux.HandleFunc("POST /conversations/{id}/messages", s.handlePostMessage)
	mux.HandleFunc("GET /conversations/{id}/summary", s.handleGetSummary)
	mux.HandleFunc("GET /conversations/{id}/watch", s.handleWatch)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

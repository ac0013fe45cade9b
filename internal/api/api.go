// Package api provides HTTP handlers and the main API server logic for
// BotWeave.
//
// It exposes RESTful endpoints for storing flow definitions and driving
// chat sessions through the flow execution engine. Message delivery and
// rendering are entirely the caller's concern; the API returns structured
// messages plus an optional pending input block.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BotWeave/BotWeave/internal/engine"
	"github.com/BotWeave/BotWeave/internal/session"
	"github.com/BotWeave/BotWeave/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// DefaultAddr is the default API listen address.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr      string
	RedisAddr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithRedisAddr enables the Redis session store at the given address.
func WithRedisAddr(addr string) Option {
	return func(o *Opts) { o.RedisAddr = addr }
}

// Server wires the engine, session store, and persistence behind HTTP
// endpoints.
type Server struct {
	engine   *engine.Engine
	sessions session.Store
	store    store.Store
	addr     string
}

// NewServer creates an API server from its collaborators.
func NewServer(eng *engine.Engine, sessions session.Store, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{engine: eng, sessions: sessions, store: st, addr: cfg.Addr}
}

// Handler returns the server's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/flows", s.saveFlowHandler)
	mux.HandleFunc("GET /v1/flows/{id}", s.getFlowHandler)
	mux.HandleFunc("POST /v1/sessions/start", s.startSessionHandler)
	mux.HandleFunc("POST /v1/sessions/{id}/continue", s.continueSessionHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// ListenAndServe runs the server until it fails.
func (s *Server) ListenAndServe() error {
	slog.Info("BotWeave API listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// Run bootstraps the service: it selects a storage backend from the DSN,
// a session store (Redis when configured, in-memory otherwise), builds the
// engine, and serves the API.
func Run(storeOpts []store.Option, sessionOpts []session.Option, engineOpts []engine.Option, apiOpts []Option) error {
	var storeCfg store.Opts
	for _, opt := range storeOpts {
		opt(&storeCfg)
	}

	var st store.Store
	var err error
	switch {
	case storeCfg.DSN == "":
		slog.Info("No database DSN provided, using in-memory store")
		st = store.NewInMemoryStore()
	case store.DetectDSNType(storeCfg.DSN) == "postgres":
		slog.Info("Using PostgreSQL store")
		st, err = store.NewPostgresStore(storeOpts...)
	default:
		slog.Info("Using SQLite store")
		st, err = store.NewSQLiteStore(storeOpts...)
	}
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	var sessions session.Store
	if cfg.RedisAddr != "" {
		slog.Info("Using Redis session store", "addr", cfg.RedisAddr)
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		sessions = session.NewRedisStore(client, sessionOpts...)
	} else {
		slog.Info("Using in-memory session store")
		sessions = session.NewInMemoryStore(sessionOpts...)
	}

	eng := engine.New(st, engineOpts...)
	return NewServer(eng, sessions, st, apiOpts...).ListenAndServe()
}

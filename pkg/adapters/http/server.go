package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/agentflow/internal/logging"
	"github.com/aretw0/agentflow/internal/presentation/graph"
	"github.com/aretw0/agentflow/pkg/dispatch"
	"github.com/aretw0/agentflow/pkg/domain"
	"github.com/aretw0/agentflow/pkg/fsm"
	"github.com/aretw0/agentflow/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves a read-only view of a running engine.
type Server struct {
	machine    *fsm.Machine
	dispatcher *dispatch.Dispatcher
	sessions   ports.SessionStore
	gatherer   prometheus.Gatherer
	streams    *StreamManager
	version    string
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithSessions exposes stored session documents under /sessions.
func WithSessions(store ports.SessionStore) Option {
	return func(s *Server) {
		s.sessions = store
	}
}

// WithGatherer serves its metrics on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithStreams serves call events from sm on /events and /sessions/{name}/events.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithVersion is reported by /healthz.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// CommandInfo is the JSON form of an available command.
type CommandInfo struct {
	Name    string `json:"name"`
	Help    string `json:"help,omitempty"`
	Confirm bool   `json:"confirm,omitempty"`
	Always  bool   `json:"always,omitempty"`
}

// NewHandler creates the HTTP handler for a machine and its dispatcher.
func NewHandler(machine *fsm.Machine, dispatcher *dispatch.Dispatcher, opts ...Option) http.Handler {
	s := &Server{
		machine:    machine,
		dispatcher: dispatcher,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Get("/state", s.state)
	r.Get("/commands", s.commands)
	r.Get("/machine", s.graph)
	r.Get("/sessions", s.listSessions)
	r.Get("/sessions/{name}", s.getSession)
	if s.streams != nil {
		r.Get("/events", s.streams.ServeHTTP)
		r.Get("/sessions/{name}/events", s.sessionEvents)
	}
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	s.streams.ServeTopic(w, r, chi.URLParam(r, "name"))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"machine": s.machine.Name(),
		"version": s.version,
	})
}

func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.machine.Snapshot())
}

func (s *Server) commands(w http.ResponseWriter, r *http.Request) {
	available := s.dispatcher.Available()
	out := make([]CommandInfo, 0, len(available))
	for _, cmd := range available {
		out = append(out, CommandInfo{
			Name:    cmd.Name,
			Help:    cmd.Help,
			Confirm: cmd.Confirm != "",
			Always:  cmd.Always,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// graph renders the machine as Mermaid, or as a definition with ?format=json.
func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "json" {
		s.writeJSON(w, http.StatusOK, fsm.DefinitionOf(s.machine))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.Mermaid(s.machine, &graph.Overlay{Current: s.machine.CurrentName()})))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		http.Error(w, "No session store configured", http.StatusServiceUnavailable)
		return
	}
	names, err := s.sessions.List(r.Context())
	if err != nil {
		s.logger.Error("list sessions failed", "err", err)
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, names)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		http.Error(w, "No session store configured", http.StatusServiceUnavailable)
		return
	}
	name := chi.URLParam(r, "name")
	data, err := s.sessions.Load(r.Context(), name)
	if errors.Is(err, domain.ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("load session failed", "session", name, "err", err)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

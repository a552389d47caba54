// Package gateway exposes the engine over HTTP. The server is stateless
// between requests: every turn rehydrates the session from its checkpoint,
// processes, and re-checkpoints. A per-session mutex serializes concurrent
// turns for the same session.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/chatguide/internal/checkpoint"
	"github.com/dohr-michael/chatguide/internal/config"
	"github.com/dohr-michael/chatguide/internal/events"
	"github.com/dohr-michael/chatguide/internal/guide"
	"github.com/dohr-michael/chatguide/internal/model"
	"github.com/dohr-michael/chatguide/internal/storage"
	"github.com/dohr-michael/chatguide/internal/tools"
)

// Server is the conversation gateway.
type Server struct {
	httpServer *http.Server
	store      checkpoint.Store
	invoker    model.Invoker
	registry   *tools.Registry
	bus        *events.Bus
	eventLog   *storage.EventLogger
	host       string
	port       int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Options configures the server's collaborators.
type Options struct {
	Store    checkpoint.Store
	Invoker  model.Invoker
	Registry *tools.Registry
	Bus      *events.Bus
	EventLog *storage.EventLogger
	Host     string
	Port     int
}

// NewServer wires the router.
func NewServer(opts Options) *Server {
	registry := opts.Registry
	if registry == nil {
		registry = tools.NewRegistry()
	}

	s := &Server{
		store:    opts.Store,
		invoker:  opts.Invoker,
		registry: registry,
		bus:      opts.Bus,
		eventLog: opts.EventLog,
		host:     opts.Host,
		port:     opts.Port,
		locks:    map[string]*sync.Mutex{},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/sessions", s.handleCreateSession)
	r.Get("/api/sessions", s.handleListSessions)
	r.Get("/api/sessions/{id}", s.handleGetSession)
	r.Delete("/api/sessions/{id}", s.handleDeleteSession)
	r.Post("/api/sessions/{id}/turn", s.handleTurn)
	r.Post("/api/sessions/{id}/tools/{tool}", s.handleToolResponse)
	r.Get("/api/sessions/{id}/prompt", s.handlePrompt)
	r.Get("/api/sessions/{id}/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler: r,
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and blocks until the server stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// rehydrate rebuilds a Guide from the stored checkpoint. The config always
// travels embedded in gateway checkpoints, so no external document is
// needed.
func (s *Server) rehydrate(ctx context.Context, id string) (*guide.Guide, error) {
	cp, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return guide.FromCheckpoint(cp, nil, s.invoker, guide.Options{
		Registry: s.registry,
		Bus:      s.bus,
	})
}

func (s *Server) persist(ctx context.Context, g *guide.Guide) error {
	return s.store.Save(ctx, g.Checkpoint(true))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	Config    string `json:"config"`
	SessionID string `json:"session_id,omitempty"`
}

type createSessionResponse struct {
	SessionID string            `json:"session_id"`
	Reply     string            `json:"reply,omitempty"`
	Status    guide.Status      `json:"status"`
	Result    *guide.TurnResult `json:"result,omitempty"`
}

// handleCreateSession parses the posted config, opens a session and runs
// the opening turn (no user message) to produce the first reply.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	doc, err := config.Parse([]byte(req.Config))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	g := guide.New(doc, s.invoker, guide.Options{
		SessionID: req.SessionID,
		Registry:  s.registry,
		Bus:       s.bus,
		RawConfig: []byte(req.Config),
	})

	res, err := g.ProcessTurn(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.persist(r.Context(), g); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: g.SessionID(),
		Reply:     res.Reply,
		Status:    g.Status(),
		Result:    res,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	g, err := s.rehydrate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":   g.SessionID(),
		"status":       g.Status(),
		"state":        g.State(),
		"progress":     g.Progress(),
		"current_task": g.CurrentTaskID(),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type turnRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	g, err := s.rehydrate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	res, err := g.ProcessTurn(r.Context(), req.Message)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err := s.persist(r.Context(), g); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleToolResponse merges a UI tool result and resumes processing.
func (s *Server) handleToolResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tool := chi.URLParam(r, "tool")

	var result map[string]any
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	g, err := s.rehydrate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err := g.HandleToolResponse(tool, result); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	res, err := g.ProcessTurn(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err := s.persist(r.Context(), g); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	g, err := s.rehydrate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": g.BuildPrompt()})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.eventLog == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("event log not enabled"))
		return
	}
	id := chi.URLParam(r, "id")
	evs, err := s.eventLog.SessionEvents(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	slog.Warn("gateway request failed", "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

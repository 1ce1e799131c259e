package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mimic-ml/mimic/api"
	"github.com/mimic-ml/mimic/internal/engine"
	"github.com/mimic-ml/mimic/internal/graph"
	"github.com/mimic-ml/mimic/internal/wire"
	"github.com/mimic-ml/mimic/version"
)

type entry struct {
	id       string
	backend  string
	session  *engine.Session
	lastUsed time.Time
}

func (e *entry) response() api.SessionResponse {
	return api.SessionResponse{
		ID:       e.id,
		Backend:  e.backend,
		Kind:     e.session.Kind(),
		Progress: e.session.Progress(),
	}
}

// lookup returns the session named by the :id parameter and marks it used.
func (s *Server) lookup(c *gin.Context) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[c.Param("id")]
	if !ok {
		abort(c, fmt.Errorf("%w: %s", errSessionNotFound, c.Param("id")))
		return nil, false
	}
	e.lastUsed = s.now()
	return e, true
}

func wantsWire(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), wire.ContentType)
}

func (s *Server) VersionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.VersionResponse{Version: version.Version})
}

func (s *Server) BackendsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.BackendsResponse{Backends: engine.Backends(), Default: s.backend})
}

func (s *Server) ListHandler(c *gin.Context) {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	slices.SortFunc(entries, func(a, b *entry) int { return strings.Compare(a.id, b.id) })

	resp := api.ListSessionsResponse{Sessions: []api.SessionResponse{}}
	for _, e := range entries {
		resp.Sessions = append(resp.Sessions, e.response())
	}
	c.JSON(http.StatusOK, resp)
}

// CreateHandler accepts a JSON CreateSessionRequest, or a wire-encoded
// session with the backend in the query string.
func (s *Server) CreateHandler(c *gin.Context) {
	var req api.CreateSessionRequest
	if c.ContentType() == wire.ContentType {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ws, err := wire.UnmarshalSession(body)
		if err != nil {
			abort(c, err)
			return
		}
		req = api.CreateSessionRequest{
			Backend: c.Query("backend"),
			Kind:    ws.Kind,
			Graph:   ws.Graph,
			DataSet: ws.DataSet,
			Epochs:  ws.Epochs,
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Backend == "" {
		req.Backend = s.backend
	}
	b, err := engine.NewBackend(req.Backend)
	if err != nil {
		abort(c, err)
		return
	}

	sess, err := engine.NewSession(b, req.Kind, req.Graph, req.DataSet, engine.WithEpochs(req.Epochs))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		abort(c, err)
		return
	}

	e := &entry{id: id.String(), backend: req.Backend, session: sess}

	s.mu.Lock()
	if len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		abort(c, errTooManySessions)
		return
	}
	e.lastUsed = s.now()
	s.sessions[e.id] = e
	s.mu.Unlock()

	slog.Info("session created", "id", e.id, "backend", e.backend, "kind", req.Kind, "epochs", req.Epochs)
	c.JSON(http.StatusOK, e.response())
}

func (s *Server) ProgressHandler(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e.response())
}

func (s *Server) CompileHandler(c *gin.Context) {
	var req api.CompileRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	e, ok := s.lookup(c)
	if !ok {
		return
	}

	device := s.device
	if req.Device != nil {
		device = *req.Device
	}

	if err := s.sem.Acquire(c.Request.Context(), 1); err != nil {
		abort(c, err)
		return
	}
	defer s.sem.Release(1)

	if err := e.session.Compile(c.Request.Context(), device); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, e.response())
}

func (s *Server) NextHandler(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}

	if err := s.sem.Acquire(c.Request.Context(), 1); err != nil {
		abort(c, err)
		return
	}
	out, more, err := e.session.ExecuteNext(c.Request.Context())
	s.sem.Release(1)
	if err != nil {
		abort(c, err)
		return
	}

	if wantsWire(c) {
		if !more {
			c.Header(api.DoneHeader, "true")
		}
		c.Data(http.StatusOK, wire.ContentType, wire.MarshalTensors(out))
		return
	}
	c.JSON(http.StatusOK, api.NextResponse{Outputs: out, Done: !more})
}

func (s *Server) GraphHandler(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}
	g, err := e.session.RetrieveGraph(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	writeGraph(c, g)
}

func (s *Server) LayerHandler(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}
	l, err := e.session.RetrieveLayer(c.Request.Context(), c.Param("label"))
	if err != nil {
		abort(c, err)
		return
	}
	if wantsWire(c) {
		c.Data(http.StatusOK, wire.ContentType, wire.MarshalLayer(l))
		return
	}
	c.JSON(http.StatusOK, api.LayerResponse{Layer: l})
}

// EndHandler finalizes a session, forgets it and returns its final graph.
func (s *Server) EndHandler(c *gin.Context) {
	e, ok := s.lookup(c)
	if !ok {
		return
	}

	s.mu.Lock()
	delete(s.sessions, e.id)
	s.mu.Unlock()

	g, err := e.session.End(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	slog.Info("session ended", "id", e.id)
	writeGraph(c, g)
}

func writeGraph(c *gin.Context, g graph.Graph) {
	if wantsWire(c) {
		c.Data(http.StatusOK, wire.ContentType, wire.MarshalGraph(g))
		return
	}
	c.JSON(http.StatusOK, api.GraphResponse{Graph: g})
}

// reap ends sessions idle for longer than the keep-alive and returns how
// many it removed.
func (s *Server) reap(ctx context.Context) int {
	cutoff := s.now().Add(-s.keepAlive)

	s.mu.Lock()
	var idle []*entry
	for id, e := range s.sessions {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, e)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, e := range idle {
		if _, err := e.session.End(ctx); err != nil {
			slog.Warn("ending idle session", "id", e.id, "error", err)
			continue
		}
		slog.Debug("idle session ended", "id", e.id, "idle", s.now().Sub(e.lastUsed))
	}
	return len(idle)
}

// reapIdle reaps on a timer until ctx is done.
func (s *Server) reapIdle(ctx context.Context) {
	interval := min(max(s.keepAlive/2, time.Second), time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reap(ctx)
		}
	}
}

func (s *Server) endAll(ctx context.Context) {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range entries {
		if _, err := e.session.End(ctx); err != nil {
			slog.Warn("ending session", "id", e.id, "error", err)
		}
	}
}

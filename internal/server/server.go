// Package server is the thin HTTP boundary over the engine: JSON listing
// endpoints, a markdown export download, and a server-sent-events stream for
// live updates.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"github.com/loglens/loglens/internal/core/model"
	"github.com/loglens/loglens/internal/engine/broadcast"
	"github.com/loglens/loglens/internal/engine/index"
	"github.com/loglens/loglens/internal/export"
	"github.com/loglens/loglens/internal/util"
)

// Engine is the surface the server needs. Satisfied by *engine.Engine.
type Engine interface {
	ListProjects() []index.ProjectSummary
	ListSessions(project string) ([]index.SessionSummary, error)
	GetEntries(project, session string) ([]model.LogEntry, error)
	Subscribe(project, session string, from *int64) (*broadcast.Subscription, error)
}

// Server serves the engine API over HTTP.
type Server struct {
	api Engine
	mux *http.ServeMux
}

// New creates a server for api.
func New(api Engine) *Server {
	s := &Server{api: api, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /api/projects", s.handleProjects)
	s.mux.HandleFunc("GET /api/projects/{project}/sessions", s.handleSessions)
	s.mux.HandleFunc("GET /api/projects/{project}/sessions/{session}/entries", s.handleEntries)
	s.mux.HandleFunc("GET /api/projects/{project}/sessions/{session}/export", s.handleExport)
	s.mux.HandleFunc("GET /api/stream", s.handleStream)
	return s
}

// Handler returns the route table, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			util.LogWarnf("http shutdown: %v", err)
		}
	}()

	util.LogInfof("http server listening on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.api.ListProjects())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.api.ListSessions(r.PathValue("project"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.api.GetEntries(r.PathValue("project"), r.PathValue("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	session := r.PathValue("session")

	entries, err := s.api.GetEntries(project, session)
	if err != nil {
		writeError(w, err)
		return
	}

	title := ""
	if sessions, err := s.api.ListSessions(project); err == nil {
		for _, sess := range sessions {
			if sess.ID == session {
				title = sess.Summary
				break
			}
		}
	}

	doc := export.Markdown(project, session, title, entries)
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", session+".md"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(doc)); err != nil {
		util.LogDebugf("export write: %v", err)
	}
}

// handleStream is the SSE endpoint. With project and session query params it
// streams that session's events; without them it streams the global activity
// feed. An optional from= replays entries after that sequence first.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	project := q.Get("project")
	session := q.Get("session")

	var from *int64
	if raw := q.Get("from"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid from cursor", http.StatusBadRequest)
			return
		}
		from = &v
	}

	sub, err := s.api.Subscribe(project, session, from)
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			data, err := sonic.Marshal(ev)
			if err != nil {
				util.LogWarnf("sse encode: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "encoding failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, index.ErrProjectNotFound) || errors.Is(err, index.ErrSessionNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

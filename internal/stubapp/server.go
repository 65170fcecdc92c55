// Package stubapp serves a minimal stand-in for the Viba web UI: a recent
// repository list, a session form and a session view. It persists created
// sessions the way the real app does so the harness can be exercised
// without it.
package stubapp

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"pkt.systems/pslog"
)

//go:embed assets/*.html
var assets embed.FS

var pages = template.Must(template.ParseFS(assets, "assets/*.html"))

// Config shapes the stub's behaviour, including deliberate faults.
type Config struct {
	Repos            []string
	SessionsDir      string
	TitlePlaceholder string
	SubmitName       string
	// NoRedirect keeps the browser on the form after a session is created.
	NoRedirect bool
	// NoPersist skips writing the session file.
	NoPersist bool
	// PersistDelay defers the session file write.
	PersistDelay time.Duration
}

// Server is the stub HTTP application.
type Server struct {
	cfg   Config
	store *Store
	log   pslog.Logger

	pending   sync.WaitGroup
	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer constructs a stub server.
func NewServer(cfg Config, logger pslog.Logger) (*Server, error) {
	if cfg.TitlePlaceholder == "" {
		cfg.TitlePlaceholder = "Task Title"
	}
	if cfg.SubmitName == "" {
		cfg.SubmitName = "Start Session"
	}
	s := &Server{cfg: cfg, log: logger, closing: make(chan struct{})}
	if !cfg.NoPersist {
		store, err := NewStore(cfg.SessionsDir, logger)
		if err != nil {
			return nil, err
		}
		s.store = store
	}
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))
	r.Use(s.withRequestLogging)

	r.Get("/", s.handleIndex)
	r.Get("/session", s.handleSession)
	r.Route("/api", func(r chi.Router) {
		r.Get("/repos", s.handleRepos)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
	})
	return r
}

type indexPage struct {
	Repos            []string
	TitlePlaceholder string
	SubmitName       string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", indexPage{
		Repos:            s.cfg.Repos,
		TitlePlaceholder: s.cfg.TitlePlaceholder,
		SubmitName:       s.cfg.SubmitName,
	})
}

type sessionPage struct {
	ID    string
	Repo  string
	Title string
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := sessionPage{ID: q.Get("id"), Repo: q.Get("repo"), Title: q.Get("title")}
	if s.store != nil && page.ID != "" {
		if rec, ok, err := s.store.Load(page.ID); err == nil && ok {
			page.Repo, page.Title = rec.Repo, rec.Title
		}
	}
	if page.Title == "" {
		page.Title = "Session"
	}
	s.render(w, r, "session.html", page)
}

func (s *Server) handleRepos(w http.ResponseWriter, _ *http.Request) {
	repos := s.cfg.Repos
	if repos == nil {
		repos = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"repos": repos})
}

type createSessionRequest struct {
	Repo  string `json:"repo"`
	Title string `json:"title"`
}

type createSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid json"))
		return
	}
	req.Repo = strings.TrimSpace(req.Repo)
	req.Title = strings.TrimSpace(req.Title)
	if req.Repo == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, errors.New("repo and title are required"))
		return
	}
	if !s.knownRepo(req.Repo) {
		writeError(w, http.StatusNotFound, errors.New("unknown repository"))
		return
	}

	rec := SessionRecord{
		ID:        uuid.NewString(),
		Repo:      req.Repo,
		Title:     req.Title,
		CreatedAt: time.Now().UTC(),
	}
	logger := pslog.Ctx(r.Context()).With("session", rec.ID, "repo", rec.Repo)
	switch {
	case s.store == nil:
		logger.Info("session not persisted")
	case s.cfg.PersistDelay > 0:
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			s.saveLater(context.WithoutCancel(r.Context()), rec)
		}()
	default:
		if _, err := s.store.Save(rec); err != nil {
			writeError(w, http.StatusInternalServerError, errors.New("session could not be saved"))
			return
		}
	}

	resp := createSessionResponse{ID: rec.ID}
	if !s.cfg.NoRedirect {
		resp.URL = SessionURL(rec)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errors.New("session not found"))
		return
	}
	rec, ok, err := s.store.Load(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("session not found"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// saveLater writes rec after the persist delay, or at once when the server
// is closing.
func (s *Server) saveLater(ctx context.Context, rec SessionRecord) {
	timer := time.NewTimer(s.cfg.PersistDelay)
	defer timer.Stop()
	select {
	case <-s.closing:
		pslog.Ctx(ctx).Debug("flushing delayed session save", "session", rec.ID)
	case <-timer.C:
	}
	if _, err := s.store.Save(rec); err != nil {
		pslog.Ctx(ctx).Warn("delayed session save failed", "session", rec.ID, "err", err)
	}
}

// Serve serves the stub on ln until ctx is cancelled, then flushes delayed
// saves.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()
	return Serve(ctx, ln, s.Handler())
}

// ListenAndServe is Serve on a fresh listener for addr.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	defer s.Close()
	return ListenAndServe(ctx, addr, s.Handler())
}

// Close flushes pending delayed saves and waits for them. Call it once the
// handler no longer receives requests.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
	s.pending.Wait()
}

func (s *Server) knownRepo(name string) bool {
	return slices.Contains(s.cfg.Repos, name)
}

// SessionURL is the session-view location the stub redirects to.
func SessionURL(rec SessionRecord) string {
	q := url.Values{}
	q.Set("repo", rec.Repo)
	q.Set("title", rec.Title)
	q.Set("id", rec.ID)
	return "/session?" + q.Encode()
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		pslog.Ctx(r.Context()).Warn("render failed", "page", name, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

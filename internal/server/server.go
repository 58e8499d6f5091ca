package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kotobaworks/kotoba/internal/engine"
	"github.com/kotobaworks/kotoba/internal/store"
)

// Server is the kotoba HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the given store and engine.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/words/next", s.handleNextWords)
		r.Post("/words/{wordID}/introduce", s.handleIntroduce)
		r.Post("/words/{wordID}/review", s.handleReview)
		r.Post("/words/{wordID}/suspend", s.handleSuspend)
		r.Post("/words/{wordID}/unsuspend", s.handleUnsuspend)
		r.Post("/words/{wordID}/sentences", s.handleGenerateSentences)

		r.Get("/cohort", s.handleCohort)

		r.Post("/sentences/{sentenceID}/review", s.handleSentenceReview)
		r.Get("/sentences/{sentenceID}/listening", s.handleListening)
		r.Get("/sentences/listening", s.handleListeningForTarget)

		r.Get("/topics", s.handleTopics)
		r.Post("/topics/active", s.handleSetTopic)
		r.Get("/topics/history", s.handleTopicHistory)

		r.Get("/grammar", s.handleGrammar)
		r.Get("/stats", s.handleStats)
		r.Get("/activity", s.handleActivity)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

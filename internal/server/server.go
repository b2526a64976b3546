package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/engine"
	"github.com/reverie-ai/reverie/internal/store"
)

// Server is the reverie HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	log     zerolog.Logger
	version string
	started time.Time
}

// New creates a new Server over the given database and engine.
func New(db *store.DB, eng *engine.Engine, log zerolog.Logger, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		log:     log,
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
		r.Get("/search", s.handleSearch)

		r.Post("/memories", s.handleCreateMemory)
		r.Get("/memories", s.handleListMemories)
		r.Post("/memories/{memoryID}/pin", s.handlePin)
		r.Post("/memories/{memoryID}/unpin", s.handleUnpin)

		r.Post("/index/rebuild", s.handleRebuildIndex)

		r.Put("/config/fusion", s.handleSetFusion)
		r.Put("/config/rerank", s.handleSetRerank)
		r.Put("/config/decay", s.handleSetDecay)

		r.Post("/retention/run", s.handleRunRetention)
		r.Post("/retention/prune", s.handlePrune)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	stats := s.engine.Index.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime":         time.Since(s.started).Seconds(),
		"db":             dbOK,
		"db_path":        s.db.Path,
		"index_built":    s.engine.Index.Built(),
		"indexed_docs":   stats.TotalDocs,
		"avg_doc_length": stats.AvgDocLen,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nzaccagnino/go-notepad/internal/api"
	"github.com/nzaccagnino/go-notepad/internal/db"
	"github.com/nzaccagnino/go-notepad/internal/logging"
)

// NoteStore is the persistence the proxy needs. *db.ServerDB implements it.
type NoteStore interface {
	ListNotes(ctx context.Context) ([]db.ServerNote, error)
	SearchNotes(ctx context.Context, term string) ([]db.ServerNote, error)
	GetNote(ctx context.Context, id string) (*db.ServerNote, error)
	UpsertNote(ctx context.Context, id, name, content string) (*db.ServerNote, error)
	ValidateAPIKey(ctx context.Context, key string) (bool, error)
}

type Options struct {
	RateLimit      int
	RequestTimeout time.Duration
	Logger         *logging.Logger
}

type Server struct {
	db      NoteStore
	logger  *logging.Logger
	limiter *RateLimiter
	router  *chi.Mux

	keysMu sync.Mutex
	keys   map[string]time.Time
}

// Validated keys are remembered for this long to keep bcrypt off the hot path.
const keyCacheTTL = time.Minute

func New(store NoteStore, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 100
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	s := &Server{
		db:      store,
		logger:  opts.Logger,
		limiter: NewRateLimiter(opts.RateLimit, time.Minute),
		router:  chi.NewRouter(),
		keys:    make(map[string]time.Time),
	}
	s.setupRoutes(opts.RequestTimeout)
	return s
}

func (s *Server) setupRoutes(timeout time.Duration) {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(timeout))

	s.router.Get("/health", s.healthHandler)

	s.router.Route("/api/notes", func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Use(s.authMiddleware)
		r.Get("/", s.getNotesHandler)
		r.Post("/", s.upsertNoteHandler)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work. In-flight requests are not affected.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(api.APIKeyHeader)
		if key == "" {
			jsonError(w, "missing api key", http.StatusUnauthorized)
			return
		}

		if !s.cachedKey(key) {
			ok, err := s.db.ValidateAPIKey(r.Context(), key)
			if err != nil {
				s.logger.Errorf("api key lookup failed: %v", err)
				jsonError(w, "internal error", http.StatusInternalServerError)
				return
			}
			if !ok {
				jsonError(w, "invalid api key", http.StatusUnauthorized)
				return
			}
			s.rememberKey(key)
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) cachedKey(key string) bool {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()
	exp, ok := s.keys[key]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(s.keys, key)
		return false
	}
	return true
}

func (s *Server) rememberKey(key string) {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()
	s.keys[key] = time.Now().Add(keyCacheTTL)
}

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, api.ErrorResponse{Error: message}, status)
}

package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nzaccagnino/go-notepad/internal/api"
	"github.com/nzaccagnino/go-notepad/internal/db"
)

const maxNoteBody = 10 << 20

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func toAPINote(n db.ServerNote) api.Note {
	return api.Note{
		ID:        n.ID,
		Name:      n.Name,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func toAPINotes(notes []db.ServerNote) []api.Note {
	out := make([]api.Note, len(notes))
	for i, n := range notes {
		out[i] = toAPINote(n)
	}
	return out
}

// getNotesHandler serves the three read forms of GET /api/notes:
// ?id= returns one note, ?search= filters by name, otherwise everything.
func (s *Server) getNotesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		note, err := s.db.GetNote(r.Context(), id)
		if err != nil {
			s.logger.Errorf("get note %s: %v", id, err)
			jsonError(w, "failed to get note", http.StatusInternalServerError)
			return
		}
		if note == nil {
			jsonError(w, "note not found", http.StatusNotFound)
			return
		}
		jsonResponse(w, toAPINote(*note), http.StatusOK)
		return
	}

	if q.Has("search") {
		notes, err := s.db.SearchNotes(r.Context(), q.Get("search"))
		if err != nil {
			s.logger.Errorf("search notes: %v", err)
			jsonError(w, "failed to search notes", http.StatusInternalServerError)
			return
		}
		jsonResponse(w, toAPINotes(notes), http.StatusOK)
		return
	}

	notes, err := s.db.ListNotes(r.Context())
	if err != nil {
		s.logger.Errorf("list notes: %v", err)
		jsonError(w, "failed to list notes", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, toAPINotes(notes), http.StatusOK)
}

func (s *Server) upsertNoteHandler(w http.ResponseWriter, r *http.Request) {
	var req api.UpsertNoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNoteBody)).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, "name required", http.StatusBadRequest)
		return
	}
	if _, err := base64.StdEncoding.DecodeString(req.Content); err != nil {
		jsonError(w, "content must be base64", http.StatusBadRequest)
		return
	}

	note, err := s.db.UpsertNote(r.Context(), req.ID, req.Name, req.Content)
	if err != nil {
		s.logger.Errorf("upsert note %q: %v", req.Name, err)
		jsonError(w, "failed to save note", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, toAPINote(*note), http.StatusOK)
}

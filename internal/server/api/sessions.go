package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/holistic/internal/store"
)

// SessionHandler serves recorded sessions.
//
//	GET    /api/sessions              list sessions
//	GET    /api/sessions/{id}         one session
//	GET    /api/sessions/{id}/frames  frame summaries
//	DELETE /api/sessions/{id}         delete a session and its frames
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a SessionHandler backed by s.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch {
	case sub == "frames" && r.Method == http.MethodGet:
		h.frames(w, r, id)
	case sub != "":
		writeError(w, http.StatusNotFound, "not found")
	case r.Method == http.MethodGet:
		h.get(w, r, id)
	case r.Method == http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sessionResponse struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Mode      string `json:"mode"`
	Frames    int    `json:"frames"`
	Active    bool   `json:"active"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type framesResponse struct {
	SessionID string               `json:"session_id"`
	Frames    []store.FrameSummary `json:"frames"`
}

func toResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		Source:    s.Source,
		Mode:      s.Mode,
		Frames:    s.Frames,
		Active:    s.Active(),
		StartedAt: s.StartedAt.Format(time.RFC3339),
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(s))
}

func (h *SessionHandler) frames(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}

	frames, err := h.store.Frames().Summaries(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list frames")
		return
	}
	if frames == nil {
		frames = []store.FrameSummary{}
	}

	writeJSON(w, http.StatusOK, framesResponse{SessionID: id, Frames: frames})
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

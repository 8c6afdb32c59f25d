package sessions

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the session API routes.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", handleCreateSession(store))
		r.Get("/", handleListSessions(store))
		r.Delete("/{id}", handleDeleteSession(store))
		r.Get("/{id}/messages", handleGetMessages(store))
	})
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

func handleCreateSession(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		if req.UserID == "" {
			req.UserID = "anonymous"
		}

		sess, err := store.CreateSession(r.Context(), req.UserID, req.Title)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

func handleListSessions(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			userID = "anonymous"
		}
		list, err := store.ListSessions(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if list == nil {
			list = []Session{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleDeleteSession(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGetMessages(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, err := store.GetSession(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if sess == nil {
			writeError(w, http.StatusNotFound, ErrSessionNotFound.Error())
			return
		}

		msgs, err := store.GetMessages(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if msgs == nil {
			msgs = []Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

package suggestions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the suggestion review API.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/suggestions", func(r chi.Router) {
		r.Post("/", handleCreate(store))
		r.Get("/", handleList(store))
		r.Get("/{id}", handleGet(store))
		r.Post("/{id}/edit", handleEdit(store))
		r.Post("/{id}/accept", handleDecision(store.Accept))
		r.Post("/{id}/reject", handleDecision(store.Reject))
	})
}

type createRequest struct {
	Content  string `json:"content"`
	Type     Type   `json:"type"`
	OwnerRef string `json:"owner_ref"`
}

func handleCreate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sg, err := store.Create(r.Context(), req.Content, req.Type, req.OwnerRef)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sg)
	}
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context(), ListFilter{
			OwnerRef: r.URL.Query().Get("owner_ref"),
			Status:   Status(r.URL.Query().Get("status")),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if list == nil {
			list = []Suggestion{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sg, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if sg == nil {
			writeError(w, http.StatusNotFound, ErrNotFound.Error())
			return
		}
		writeJSON(w, http.StatusOK, sg)
	}
}

type editRequest struct {
	Content string `json:"content"`
}

func handleEdit(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sg, err := store.Edit(r.Context(), chi.URLParam(r, "id"), req.Content)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sg)
	}
}

func handleDecision(decide func(context.Context, string) (*Suggestion, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sg, err := decide(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sg)
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrEmptyContent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
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

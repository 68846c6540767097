package handlers

import (
	"encoding/json"
	"net/http"

	"fieldops-backend/internal/models"
	"fieldops-backend/internal/repositories"

	"github.com/gorilla/mux"
)

type HistoryHandler struct {
	Repo *repositories.HistoryRepository
}

func NewHistoryHandler(repo *repositories.HistoryRepository) *HistoryHandler {
	return &HistoryHandler{Repo: repo}
}

// ListHistory returns all archived operations, newest first
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Repo.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Ensure we return empty array instead of null
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// GetHistory returns one archived operation
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	entry, err := h.Repo.Get(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entry == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"fieldops-backend/internal/middleware"
	"fieldops-backend/internal/models"
	"fieldops-backend/internal/repositories"
	"fieldops-backend/internal/schedule"
	"fieldops-backend/internal/services"
	"fieldops-backend/internal/timeutil"

	"github.com/gorilla/mux"
)

type ScheduleHandler struct {
	Repo       *repositories.ScheduleRepository
	Assigner   *services.AssignmentService
	Completer  *services.CompletionService
	Reconciler *services.Reconciler
	Policy     *services.AccessPolicy
}

func NewScheduleHandler(
	repo *repositories.ScheduleRepository,
	assigner *services.AssignmentService,
	completer *services.CompletionService,
	reconciler *services.Reconciler,
	policy *services.AccessPolicy,
) *ScheduleHandler {
	return &ScheduleHandler{
		Repo:       repo,
		Assigner:   assigner,
		Completer:  completer,
		Reconciler: reconciler,
		Policy:     policy,
	}
}

// ScheduleEntryView is a schedule entry annotated with the derived temporal
// status and assignment state for the list/detail screens
type ScheduleEntryView struct {
	*models.ScheduleEntry
	Status string `json:"status"` // atrasado | hoje | agendado
	Estado string `json:"estado"` // unassigned | operation_claimed | fully_staffed
}

// AnnotateEntries derives status and assignment state for each entry.
// Shared with the WebSocket stream handler.
func AnnotateEntries(entries []*models.ScheduleEntry) []ScheduleEntryView {
	today := timeutil.Now()
	views := make([]ScheduleEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, ScheduleEntryView{
			ScheduleEntry: e,
			Status:        schedule.Classify(e.DeliveryDate, today).String(),
			Estado:        schedule.StateOf(e).String(),
		})
	}
	return views
}

// ListSchedule returns the ordered active schedule with derived annotations
func (h *ScheduleHandler) ListSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Repo.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AnnotateEntries(entries))
}

// CreateSchedule stores a new delivery (planning flow, advanced access)
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.Policy.HasAccess(user, models.ModuleOperacao, models.AccessAdvanced) {
		http.Error(w, "Forbidden: operacao planning access required", http.StatusForbidden)
		return
	}

	var req models.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.Repo.Create(r.Context(), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// ClaimOperation claims operational responsibility for a delivery
func (h *ScheduleHandler) ClaimOperation(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entry, err := h.Assigner.ClaimOperation(r.Context(), mux.Vars(r)["key"], user)
	if err != nil {
		writeScheduleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// ClaimLoading delegates the loading task to a named person
func (h *ScheduleHandler) ClaimLoading(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.ClaimLoadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.Assigner.ClaimLoading(r.Context(), mux.Vars(r)["key"], req.Nome, user)
	if err != nil {
		writeScheduleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// EditClaim re-opens the claim for the operation responsible (no transition)
func (h *ScheduleHandler) EditClaim(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entry, err := h.Assigner.Edit(r.Context(), mux.Vars(r)["key"], user)
	if err != nil {
		writeScheduleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// Complete concludes the operation: archive to history, remove from active
func (h *ScheduleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	archived, err := h.Completer.Complete(r.Context(), mux.Vars(r)["key"], user)
	if err != nil {
		writeScheduleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(archived)
}

// RetryDelete finishes a partial completion for an already-archived entry
func (h *ScheduleHandler) RetryDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.Completer.RetryDelete(r.Context(), mux.Vars(r)["key"], user); err != nil {
		writeScheduleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reconcile triggers a reconciliation scan on demand (admin only)
func (h *ScheduleHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.Reconciler.RunOnce(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"repaired": repaired})
}

package handlers

import (
	"errors"
	"net/http"

	"fieldops-backend/internal/schedule"
)

// writeScheduleError maps the schedule error taxonomy to HTTP statuses.
// Partial completions get their own status body so the UI can offer the
// retry-delete action instead of a generic failure.
func writeScheduleError(w http.ResponseWriter, err error) {
	var permErr *schedule.PermissionDeniedError
	var valErr *schedule.ValidationError
	var conflictErr *schedule.ConflictError
	var partialErr *schedule.PartialCompletionError
	var storeErr *schedule.StoreWriteError

	switch {
	case errors.As(err, &permErr):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.As(err, &valErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &conflictErr):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &partialErr):
		// Archived but not removed from the active schedule; retryable
		http.Error(w, err.Error(), http.StatusAccepted)
	case errors.As(err, &storeErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

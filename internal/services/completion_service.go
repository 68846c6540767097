package services

import (
	"context"
	"strconv"
	"time"

	"fieldops-backend/internal/metrics"
	"fieldops-backend/internal/models"
	"fieldops-backend/internal/recordstore"
	"fieldops-backend/internal/repositories"
	"fieldops-backend/internal/schedule"
	"fieldops-backend/internal/timeutil"
)

// CompletionService runs the two-phase conclude transition: write the archive
// record to the history collection, then delete the active entry. The two
// phases span two collections with no cross-collection atomicity, so phase 2
// can fail after phase 1 succeeded; that outcome is surfaced as
// PartialCompletionError and repaired by RetryDelete or the reconciler. The
// archive write is overwrite-safe, so retrying the whole completion with the
// same payload is harmless.
type CompletionService struct {
	ScheduleRepo *repositories.ScheduleRepository
	HistoryRepo  *repositories.HistoryRepository
	Policy       *AccessPolicy
}

func NewCompletionService(scheduleRepo *repositories.ScheduleRepository, historyRepo *repositories.HistoryRepository, policy *AccessPolicy) *CompletionService {
	return &CompletionService{
		ScheduleRepo: scheduleRepo,
		HistoryRepo:  historyRepo,
		Policy:       policy,
	}
}

func (s *CompletionService) store() recordstore.Store {
	return s.ScheduleRepo.Store()
}

// Complete archives the entry and removes it from the active schedule.
// Preconditions (client-side, the store does not enforce them): the caller is
// the operation responsible, loading is assigned, and the caller holds basic
// operacao access.
func (s *CompletionService) Complete(ctx context.Context, key string, user *models.User) (*models.HistoryEntry, error) {
	entry, err := s.ScheduleRepo.Get(ctx, key)
	if err != nil {
		metrics.CompletionsTotal.WithLabelValues("failed").Inc()
		return nil, &schedule.StoreWriteError{Op: "read " + repositories.CollectionActive, Err: err}
	}
	if entry == nil {
		metrics.CompletionsTotal.WithLabelValues("rejected").Inc()
		return nil, &schedule.ConflictError{Reason: "entry " + key + " is not in the active schedule"}
	}

	if schedule.StateOf(entry) != schedule.FullyStaffed {
		metrics.CompletionsTotal.WithLabelValues("rejected").Inc()
		return nil, &schedule.ValidationError{Reason: "both responsibles must be set before completion"}
	}
	if !isOperationResponsible(entry, user) {
		metrics.CompletionsTotal.WithLabelValues("denied").Inc()
		return nil, &schedule.PermissionDeniedError{Reason: "only the operation responsible may conclude the operation"}
	}
	if !s.Policy.HasAccess(user, models.ModuleOperacao, models.AccessBasic) {
		metrics.CompletionsTotal.WithLabelValues("denied").Inc()
		return nil, &schedule.PermissionDeniedError{Reason: "operacao access required"}
	}

	// Build the archive payload from the raw stored fields, not a re-encoded
	// struct, so the archived record carries the entry exactly as stored
	rawFields, ok, err := s.store().Get(ctx, repositories.CollectionActive, key)
	if err != nil || !ok {
		metrics.CompletionsTotal.WithLabelValues("failed").Inc()
		return nil, &schedule.StoreWriteError{Op: "read " + repositories.CollectionActive, Err: err}
	}

	now := timeutil.Now()
	archive := make(map[string]interface{}, len(rawFields)+2)
	for f, v := range rawFields {
		archive[f] = v
	}
	archive[repositories.FieldDataConclusao] = now.Format(time.RFC3339)
	archive[repositories.FieldResponsavelConclusao] = models.Responsible{
		Nome:      user.Name,
		UserID:    strconv.Itoa(user.ID),
		Timestamp: now.UnixMilli(),
	}

	// Phase 1: archive. On failure nothing happened; the active entry is
	// untouched and the caller may simply retry.
	if err := s.store().SetRecord(ctx, repositories.CollectionHistory, key, archive); err != nil {
		metrics.CompletionsTotal.WithLabelValues("failed").Inc()
		return nil, &schedule.StoreWriteError{Op: "archive to " + repositories.CollectionHistory, Err: err}
	}

	// Phase 2: delete the active entry. On failure the record now exists in
	// both collections until RetryDelete or the reconciler finishes the job.
	if err := s.store().Remove(ctx, repositories.CollectionActive, key); err != nil {
		metrics.CompletionsTotal.WithLabelValues("partial").Inc()
		metrics.PartialCompletionsOpen.Inc()
		return nil, &schedule.PartialCompletionError{Key: key, Err: err}
	}

	metrics.CompletionsTotal.WithLabelValues("ok").Inc()
	return s.HistoryRepo.Get(ctx, key)
}

// RetryDelete finishes a partial completion: the entry key is the idempotency
// token, the archive record must already exist.
func (s *CompletionService) RetryDelete(ctx context.Context, key string, user *models.User) error {
	if !s.Policy.HasAccess(user, models.ModuleOperacao, models.AccessBasic) {
		return &schedule.PermissionDeniedError{Reason: "operacao access required"}
	}

	archived, err := s.HistoryRepo.Get(ctx, key)
	if err != nil {
		return &schedule.StoreWriteError{Op: "read " + repositories.CollectionHistory, Err: err}
	}
	if archived == nil {
		return &schedule.ValidationError{Reason: "entry " + key + " has no archive record; nothing to finish"}
	}

	if err := s.store().Remove(ctx, repositories.CollectionActive, key); err != nil {
		return &schedule.StoreWriteError{Op: "remove from " + repositories.CollectionActive, Err: err}
	}
	return nil
}

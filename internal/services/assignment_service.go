package services

import (
	"context"
	"strconv"
	"strings"

	"fieldops-backend/internal/config"
	"fieldops-backend/internal/metrics"
	"fieldops-backend/internal/models"
	"fieldops-backend/internal/recordstore"
	"fieldops-backend/internal/repositories"
	"fieldops-backend/internal/schedule"
	"fieldops-backend/internal/timeutil"
)

// AssignmentService enforces the responsibility state machine over a single
// schedule entry. State is derived once from the decoded entry; every
// transition re-reads the entry and re-evaluates access, so a stale client
// view can only produce a rejected transition, never a corrupting write.
type AssignmentService struct {
	ScheduleRepo *repositories.ScheduleRepository
	Policy       *AccessPolicy
	ClaimMode    string
}

func NewAssignmentService(scheduleRepo *repositories.ScheduleRepository, policy *AccessPolicy, claimMode string) *AssignmentService {
	if claimMode == "" {
		claimMode = config.ClaimModeLastWriteWins
	}
	return &AssignmentService{
		ScheduleRepo: scheduleRepo,
		Policy:       policy,
		ClaimMode:    claimMode,
	}
}

func (s *AssignmentService) store() recordstore.Store {
	return s.ScheduleRepo.Store()
}

// getActive loads an entry and rejects absent keys (absence is the terminal
// Completed state).
func (s *AssignmentService) getActive(ctx context.Context, key string) (*models.ScheduleEntry, error) {
	entry, err := s.ScheduleRepo.Get(ctx, key)
	if err != nil {
		return nil, &schedule.StoreWriteError{Op: "read " + repositories.CollectionActive, Err: err}
	}
	if entry == nil {
		return nil, &schedule.ConflictError{Reason: "entry " + key + " is not in the active schedule"}
	}
	return entry, nil
}

func isOperationResponsible(entry *models.ScheduleEntry, user *models.User) bool {
	return entry.ResponsavelOperacao != nil &&
		entry.ResponsavelOperacao.UserID == strconv.Itoa(user.ID)
}

// ClaimOperation moves an entry from Unassigned to OperationClaimed, making
// the caller accountable for the whole operation. In last-write-wins mode two
// concurrent claimers race and the later write silently prevails (the loser
// finds out on the next snapshot); in cas mode the first claim wins and later
// claimers get a conflict.
func (s *AssignmentService) ClaimOperation(ctx context.Context, key string, user *models.User) (*models.ScheduleEntry, error) {
	entry, err := s.getActive(ctx, key)
	if err != nil {
		return nil, err
	}

	if state := schedule.StateOf(entry); state != schedule.Unassigned {
		metrics.ClaimsTotal.WithLabelValues("operation", "rejected").Inc()
		return nil, &schedule.ConflictError{Reason: "operation already claimed by " + entry.ResponsavelOperacao.Nome}
	}
	if !s.Policy.HasAccess(user, models.ModuleOperacao, models.AccessBasic) {
		metrics.ClaimsTotal.WithLabelValues("operation", "denied").Inc()
		return nil, &schedule.PermissionDeniedError{Reason: "operacao access required"}
	}

	resp := models.Responsible{
		Nome:      user.Name,
		UserID:    strconv.Itoa(user.ID),
		Timestamp: timeutil.Now().UnixMilli(),
	}

	if s.ClaimMode == config.ClaimModeCAS {
		set, err := s.store().SetFieldIfAbsent(ctx, repositories.CollectionActive, key,
			repositories.FieldResponsavelOperacao, resp)
		if err != nil {
			metrics.ClaimsTotal.WithLabelValues("operation", "failed").Inc()
			return nil, &schedule.StoreWriteError{Op: "claim operation", Err: err}
		}
		if !set {
			metrics.ClaimsTotal.WithLabelValues("operation", "rejected").Inc()
			return nil, &schedule.ConflictError{Reason: "operation was claimed concurrently"}
		}
	} else {
		if err := s.store().SetField(ctx, repositories.CollectionActive, key,
			repositories.FieldResponsavelOperacao, resp); err != nil {
			metrics.ClaimsTotal.WithLabelValues("operation", "failed").Inc()
			return nil, &schedule.StoreWriteError{Op: "claim operation", Err: err}
		}
	}

	metrics.ClaimsTotal.WithLabelValues("operation", "ok").Inc()
	entry.ResponsavelOperacao = &resp
	return entry, nil
}

// ClaimLoading assigns (or re-assigns) the loading responsibility to a named
// person, who may not have an account. Only the current operation responsible
// may delegate. Idempotent when already fully staffed with the same name,
// aside from the claim timestamp.
func (s *AssignmentService) ClaimLoading(ctx context.Context, key, nome string, user *models.User) (*models.ScheduleEntry, error) {
	nome = strings.TrimSpace(nome)
	if nome == "" {
		return nil, &schedule.ValidationError{Reason: "loading responsible name must not be empty"}
	}

	entry, err := s.getActive(ctx, key)
	if err != nil {
		return nil, err
	}

	if schedule.StateOf(entry) == schedule.Unassigned {
		metrics.ClaimsTotal.WithLabelValues("loading", "rejected").Inc()
		return nil, &schedule.ConflictError{Reason: "operation must be claimed before loading is assigned"}
	}
	if !isOperationResponsible(entry, user) {
		metrics.ClaimsTotal.WithLabelValues("loading", "denied").Inc()
		return nil, &schedule.PermissionDeniedError{Reason: "only the operation responsible may assign loading"}
	}

	resp := models.Responsible{
		Nome:      nome,
		UserID:    models.ManualUserID,
		Timestamp: timeutil.Now().UnixMilli(),
	}

	if err := s.store().SetField(ctx, repositories.CollectionActive, key,
		repositories.FieldResponsavelCarregamento, resp); err != nil {
		metrics.ClaimsTotal.WithLabelValues("loading", "failed").Inc()
		return nil, &schedule.StoreWriteError{Op: "claim loading", Err: err}
	}

	metrics.ClaimsTotal.WithLabelValues("loading", "ok").Inc()
	entry.ResponsavelCarregamento = &resp
	return entry, nil
}

// Edit re-opens the claim for the operation responsible. No state transition
// and no write; it only verifies ownership and hands the entry back.
func (s *AssignmentService) Edit(ctx context.Context, key string, user *models.User) (*models.ScheduleEntry, error) {
	entry, err := s.getActive(ctx, key)
	if err != nil {
		return nil, err
	}
	if !isOperationResponsible(entry, user) {
		return nil, &schedule.PermissionDeniedError{Reason: "only the operation responsible may edit the claim"}
	}
	return entry, nil
}

package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops-backend/internal/models"
	"fieldops-backend/internal/recordstore"
	"fieldops-backend/internal/repositories"
	"fieldops-backend/internal/schedule"
)

func newCompletionFixture(t *testing.T) (*recordstore.MemoryStore, *CompletionService) {
	t.Helper()
	store := recordstore.NewMemoryStore()
	scheduleRepo := repositories.NewScheduleRepository(store)
	historyRepo := repositories.NewHistoryRepository(store)
	return store, NewCompletionService(scheduleRepo, historyRepo, NewAccessPolicy())
}

func seedFullyStaffed(t *testing.T, store *recordstore.MemoryStore, key string) {
	t.Helper()
	seedEntry(t, store, key, map[string]interface{}{
		repositories.FieldEquipamentos: []models.Equipment{{Tipo: "caçamba", Quantidade: 2}},
		repositories.FieldObservacoes:  "portão lateral",
		repositories.FieldResponsavelOperacao: models.Responsible{
			Nome: "Ana", UserID: "7", Timestamp: 100,
		},
		repositories.FieldResponsavelCarregamento: models.Responsible{
			Nome: "Maria", UserID: models.ManualUserID, Timestamp: 200,
		},
	})
}

func TestComplete_ArchivesAndRemoves(t *testing.T) {
	store, svc := newCompletionFixture(t)
	seedFullyStaffed(t, store, "k1")
	ana := operatorUser(7, "Ana")

	hist, err := svc.Complete(context.Background(), "k1", ana)
	require.NoError(t, err)
	require.NotNil(t, hist)
	assert.NotEmpty(t, hist.DataConclusao)
	require.NotNil(t, hist.ResponsavelConclusao)
	assert.Equal(t, "Ana", hist.ResponsavelConclusao.Nome)
	assert.Equal(t, "7", hist.ResponsavelConclusao.UserID)

	// Gone from the active schedule, present in history
	active, err := svc.ScheduleRepo.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Nil(t, active)
	archived, err := svc.HistoryRepo.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.Equal(t, "Condomínio Jardim", archived.Cliente)
	assert.Equal(t, "Maria", archived.ResponsavelCarregamento.Nome)
}

func TestComplete_ArchivePreservesStoredBytes(t *testing.T) {
	store, svc := newCompletionFixture(t)
	seedFullyStaffed(t, store, "k1")

	before, ok, err := store.Get(context.Background(), repositories.CollectionActive, "k1")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Complete(context.Background(), "k1", operatorUser(7, "Ana"))
	require.NoError(t, err)

	after, ok, err := store.Get(context.Background(), repositories.CollectionHistory, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	for field, raw := range before {
		assert.True(t, bytes.Equal(raw, after[field]),
			"archived field %s must be byte-identical to the active record", field)
	}
}

func TestComplete_LoadingUnsetIsRejectedWithoutWrite(t *testing.T) {
	store, svc := newCompletionFixture(t)
	seedEntry(t, store, "k1", map[string]interface{}{
		repositories.FieldResponsavelOperacao: models.Responsible{Nome: "Ana", UserID: "7", Timestamp: 100},
	})
	writesBefore := store.WriteCount()

	_, err := svc.Complete(context.Background(), "k1", operatorUser(7, "Ana"))

	var valErr *schedule.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, writesBefore, store.WriteCount())

	archived, err := svc.HistoryRepo.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Nil(t, archived)
}

func TestComplete_NonOwnerIsDenied(t *testing.T) {
	store, svc := newCompletionFixture(t)
	seedFullyStaffed(t, store, "k1")

	_, err := svc.Complete(context.Background(), "k1", operatorUser(3, "Bruno"))

	var permErr *schedule.PermissionDeniedError
	assert.ErrorAs(t, err, &permErr)
}

func TestComplete_AbsentEntryIsConflict(t *testing.T) {
	_, svc := newCompletionFixture(t)

	_, err := svc.Complete(context.Background(), "gone", operatorUser(7, "Ana"))

	var conflictErr *schedule.ConflictError
	assert.ErrorAs(t, err, &conflictErr, "completing twice lands here: absence is terminal")
}

func TestComplete_ArchiveFailureLeavesActiveUntouched(t *testing.T) {
	store, svc := newCompletionFixture(t)
	seedFullyStaffed(t, store, "k1")

	before, _, err := store.Get(context.Background(), repositories.CollectionActive, "k1")
	require.NoError(t, err)

	store.FailSetRecord = errors.New("history shard down")
	_, err = svc.Complete(context.Background(), "k1", operatorUser(7, "Ana"))
	store.FailSetRecord = nil

	var storeErr *schedule.StoreWriteError
	require.ErrorAs(t, err, &storeErr)

	// Phase 1 failed, so the active record is exactly what it was
	after, ok, err := store.Get(context.Background(), repositories.CollectionActive, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	for field, raw := range before {
		assert.True(t, bytes.Equal(raw, after[field]))
	}
	archived, err := svc.HistoryRepo.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Nil(t, archived)
}

func TestComplete_RemoveFailureIsPartialCompletion(t *testing.T) {
	store, svc := newCompletionFixture(t)
	seedFullyStaffed(t, store, "k1")

	store.FailRemove = errors.New("transient")
	_, err := svc.Complete(context.Background(), "k1", operatorUser(7, "Ana"))
	store.FailRemove = nil

	var partial *schedule.PartialCompletionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "k1", partial.Key)

	// Archive landed, active entry still there: the in-between state
	archived, err := svc.HistoryRepo.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.NotEmpty(t, archived.DataConclusao)
	active, err := svc.ScheduleRepo.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.NotNil(t, active)
}

func TestRetryDelete_FinishesPartialCompletion(t *testing.T) {
	store, svc := newCompletionFixture(t)
	seedFullyStaffed(t, store, "k1")
	ana := operatorUser(7, "Ana")

	store.FailRemove = errors.New("transient")
	_, err := svc.Complete(context.Background(), "k1", ana)
	store.FailRemove = nil
	var partial *schedule.PartialCompletionError
	require.ErrorAs(t, err, &partial)

	require.NoError(t, svc.RetryDelete(context.Background(), "k1", ana))

	active, err := svc.ScheduleRepo.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.Nil(t, active)
	archived, err := svc.HistoryRepo.Get(context.Background(), "k1")
	require.NoError(t, err)
	assert.NotNil(t, archived)
}

func TestRetryDelete_WithoutArchiveIsValidationError(t *testing.T) {
	store, svc := newCompletionFixture(t)
	seedFullyStaffed(t, store, "k1")

	err := svc.RetryDelete(context.Background(), "k1", operatorUser(7, "Ana"))

	var valErr *schedule.ValidationError
	require.ErrorAs(t, err, &valErr)

	// Guard held: the active entry was not deleted without its archive
	active, getErr := svc.ScheduleRepo.Get(context.Background(), "k1")
	require.NoError(t, getErr)
	assert.NotNil(t, active)
}

func TestRetryDelete_RequiresAccess(t *testing.T) {
	_, svc := newCompletionFixture(t)

	noAccess := &models.User{ID: 9, Name: "Caio", Role: "employee", IsActive: true}
	err := svc.RetryDelete(context.Background(), "k1", noAccess)

	var permErr *schedule.PermissionDeniedError
	assert.ErrorAs(t, err, &permErr)
}

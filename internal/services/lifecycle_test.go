package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops-backend/internal/config"
	"fieldops-backend/internal/models"
	"fieldops-backend/internal/recordstore"
	"fieldops-backend/internal/repositories"
	"fieldops-backend/internal/schedule"
	"fieldops-backend/internal/timeutil"
)

// Walks one entry through its whole life: created for yesterday, shows up
// overdue, operation claimed, loading delegated to someone without an
// account, concluded, archived.
func TestScheduleLifecycle(t *testing.T) {
	ctx := context.Background()
	store := recordstore.NewMemoryStore()
	scheduleRepo := repositories.NewScheduleRepository(store)
	historyRepo := repositories.NewHistoryRepository(store)
	policy := NewAccessPolicy()
	assignments := NewAssignmentService(scheduleRepo, policy, config.ClaimModeLastWriteWins)
	completions := NewCompletionService(scheduleRepo, historyRepo, policy)

	carlos := operatorUser(12, "Carlos")
	yesterday := timeutil.Now().AddDate(0, 0, -1).Format(timeutil.DateLayout)

	created, err := scheduleRepo.Create(ctx, &models.CreateScheduleRequest{
		Cliente:     "Condomínio Vila Verde",
		Endereco:    "Av. Paulista, 900",
		DataEntrega: yesterday,
		Equipamentos: []models.Equipment{
			{Tipo: "caçamba", Quantidade: 1},
		},
	})
	require.NoError(t, err)
	key := created.Key

	entry, err := scheduleRepo.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, schedule.Overdue, schedule.Classify(entry.DeliveryDate, timeutil.Now()))
	assert.Equal(t, schedule.Unassigned, schedule.StateOf(entry))

	// Loading cannot be delegated before anyone owns the operation
	_, err = assignments.ClaimLoading(ctx, key, "Maria", carlos)
	var conflictErr *schedule.ConflictError
	require.ErrorAs(t, err, &conflictErr)

	entry, err = assignments.ClaimOperation(ctx, key, carlos)
	require.NoError(t, err)
	assert.Equal(t, schedule.OperationClaimed, schedule.StateOf(entry))

	// Completion needs both responsibles
	_, err = completions.Complete(ctx, key, carlos)
	var valErr *schedule.ValidationError
	require.ErrorAs(t, err, &valErr)

	entry, err = assignments.ClaimLoading(ctx, key, "Maria", carlos)
	require.NoError(t, err)
	assert.Equal(t, schedule.FullyStaffed, schedule.StateOf(entry))
	assert.Equal(t, models.ManualUserID, entry.ResponsavelCarregamento.UserID)

	hist, err := completions.Complete(ctx, key, carlos)
	require.NoError(t, err)
	assert.Equal(t, "Carlos", hist.ResponsavelConclusao.Nome)
	assert.Equal(t, "Condomínio Vila Verde", hist.Cliente)
	assert.Equal(t, "Maria", hist.ResponsavelCarregamento.Nome)
	assert.NotEmpty(t, hist.DataConclusao)

	// Terminal: gone from the active schedule, further transitions conflict
	active, err := scheduleRepo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = assignments.ClaimOperation(ctx, key, carlos)
	require.ErrorAs(t, err, &conflictErr)
	_, err = completions.Complete(ctx, key, carlos)
	require.ErrorAs(t, err, &conflictErr)

	archived, err := historyRepo.List(ctx)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, key, archived[0].Key)
}

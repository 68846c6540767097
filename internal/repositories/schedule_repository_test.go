package repositories

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops-backend/internal/models"
	"fieldops-backend/internal/recordstore"
)

func seedActive(t *testing.T, store *recordstore.MemoryStore, key, date string, extra map[string]interface{}) {
	t.Helper()
	fields := map[string]interface{}{
		FieldCliente:     "Condomínio Jardim",
		FieldEndereco:    "Rua das Acácias, 100",
		FieldDataEntrega: date,
	}
	for f, v := range extra {
		fields[f] = v
	}
	require.NoError(t, store.SetRecord(context.Background(), CollectionActive, key, fields))
}

func TestDecodeEntry_DefaultsMissingFields(t *testing.T) {
	entry, err := DecodeEntry("k1", map[string]json.RawMessage{
		FieldCliente:     json.RawMessage(`"Acme"`),
		FieldDataEntrega: json.RawMessage(`"2026-04-01"`),
	})
	require.NoError(t, err)

	assert.Equal(t, "k1", entry.Key)
	assert.NotNil(t, entry.Equipamentos)
	assert.Empty(t, entry.Equipamentos, "missing list defaults to empty, not nil")
	assert.NotNil(t, entry.Containers)
	assert.Nil(t, entry.ResponsavelOperacao, "absent responsible decodes to nil")
	assert.Nil(t, entry.ResponsavelCarregamento)
	assert.Equal(t, 2026, entry.DeliveryDate.Year())
}

func TestDecodeEntry_MalformedDate(t *testing.T) {
	_, err := DecodeEntry("k1", map[string]json.RawMessage{
		FieldDataEntrega: json.RawMessage(`"04/01/2026"`),
	})
	assert.Error(t, err)
}

func TestDecodeEntry_FullRecord(t *testing.T) {
	capacidade := "5m3"
	entry, err := DecodeEntry("k1", map[string]json.RawMessage{
		FieldCliente:                 json.RawMessage(`"Acme"`),
		FieldEndereco:                json.RawMessage(`"Av. Brasil, 9"`),
		FieldDataEntrega:             json.RawMessage(`"2026-04-01"`),
		FieldEquipamentos:            json.RawMessage(`[{"tipo":"munck","quantidade":1}]`),
		FieldContainers:              json.RawMessage(`[{"tipo":"cacamba","capacidade":"5m3","quantidade":2}]`),
		FieldObservacoes:             json.RawMessage(`"portão estreito"`),
		FieldResponsavelOperacao:     json.RawMessage(`{"nome":"Ana","userId":"7","timestamp":1700000000000}`),
		FieldResponsavelCarregamento: json.RawMessage(`{"nome":"Maria","userId":"manual","timestamp":1700000100000}`),
	})
	require.NoError(t, err)

	assert.Equal(t, []models.Equipment{{Tipo: "munck", Quantidade: 1}}, entry.Equipamentos)
	require.Len(t, entry.Containers, 1)
	assert.Equal(t, &capacidade, entry.Containers[0].Capacidade)
	require.NotNil(t, entry.ResponsavelOperacao)
	assert.Equal(t, "7", entry.ResponsavelOperacao.UserID)
	require.NotNil(t, entry.ResponsavelCarregamento)
	assert.Equal(t, models.ManualUserID, entry.ResponsavelCarregamento.UserID)
}

func TestScheduleRepository_ListSortedByDeliveryDate(t *testing.T) {
	store := recordstore.NewMemoryStore()
	repo := NewScheduleRepository(store)

	seedActive(t, store, "k-late", "2026-05-20", nil)
	seedActive(t, store, "k-early", "2026-05-01", nil)
	seedActive(t, store, "k-mid", "2026-05-10", nil)

	entries, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "k-early", entries[0].Key)
	assert.Equal(t, "k-mid", entries[1].Key)
	assert.Equal(t, "k-late", entries[2].Key)
}

func TestScheduleRepository_SortIsStableOnTies(t *testing.T) {
	store := recordstore.NewMemoryStore()
	repo := NewScheduleRepository(store)

	// Same date: store-key order is the tiebreak
	seedActive(t, store, "b", "2026-05-10", nil)
	seedActive(t, store, "a", "2026-05-10", nil)
	seedActive(t, store, "c", "2026-05-10", nil)

	entries, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
	assert.Equal(t, "c", entries[2].Key)
}

func TestScheduleRepository_MalformedRecordIsSkippedNotFatal(t *testing.T) {
	store := recordstore.NewMemoryStore()
	repo := NewScheduleRepository(store)

	seedActive(t, store, "good", "2026-05-01", nil)
	require.NoError(t, store.SetRecord(context.Background(), CollectionActive, "bad",
		map[string]interface{}{FieldDataEntrega: "not-a-date"}))

	entries, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1, "bad record skipped, collection still served")
	assert.Equal(t, "good", entries[0].Key)
}

func TestScheduleRepository_SubscribeResortsOnEarlierInsert(t *testing.T) {
	store := recordstore.NewMemoryStore()
	repo := NewScheduleRepository(store)
	ctx := context.Background()

	seedActive(t, store, "k1", "2026-05-10", nil)

	snapshots, unsubscribe, err := repo.Subscribe(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	entries := mustReceiveEntries(t, snapshots)
	require.Len(t, entries, 1)

	// An entry with an earlier date lands at the front of the next snapshot
	seedActive(t, store, "k0", "2026-05-01", nil)
	entries = mustReceiveEntries(t, snapshots)
	require.Len(t, entries, 2)
	assert.Equal(t, "k0", entries[0].Key)
	assert.Equal(t, "k1", entries[1].Key)
}

func TestScheduleRepository_GetAbsentKey(t *testing.T) {
	store := recordstore.NewMemoryStore()
	repo := NewScheduleRepository(store)

	entry, err := repo.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestScheduleRepository_Create(t *testing.T) {
	store := recordstore.NewMemoryStore()
	repo := NewScheduleRepository(store)

	entry, err := repo.Create(context.Background(), &models.CreateScheduleRequest{
		Cliente:      "Acme",
		Endereco:     "Av. Brasil, 9",
		DataEntrega:  "2026-06-01",
		Equipamentos: []models.Equipment{{Tipo: "munck", Quantidade: 1}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, entry.Key)
	assert.Nil(t, entry.ResponsavelOperacao, "new entries start unassigned")
	assert.Nil(t, entry.ResponsavelCarregamento)

	_, err = repo.Create(context.Background(), &models.CreateScheduleRequest{
		Cliente:     "Acme",
		DataEntrega: "junho",
	})
	assert.Error(t, err, "unparseable date is rejected before any write")
}

func mustReceiveEntries(t *testing.T, ch <-chan []*models.ScheduleEntry) []*models.ScheduleEntry {
	t.Helper()
	select {
	case entries := <-ch:
		return entries
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for schedule snapshot")
		return nil
	}
}

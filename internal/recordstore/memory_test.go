package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetFieldAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SetField(ctx, "col", "k1", "cliente", "Acme"))

	fields, ok, err := s.Get(ctx, "col", "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `"Acme"`, string(fields["cliente"]))

	_, ok, err = s.Get(ctx, "col", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_SetFieldIfAbsent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	set, err := s.SetFieldIfAbsent(ctx, "col", "k1", "owner", "first")
	require.NoError(t, err)
	assert.True(t, set)

	set, err = s.SetFieldIfAbsent(ctx, "col", "k1", "owner", "second")
	require.NoError(t, err)
	assert.False(t, set, "second writer must lose")

	fields, _, err := s.Get(ctx, "col", "k1")
	require.NoError(t, err)
	assert.JSONEq(t, `"first"`, string(fields["owner"]))
}

func TestMemoryStore_RemoveIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SetField(ctx, "col", "k1", "f", 1))
	require.NoError(t, s.Remove(ctx, "col", "k1"))
	require.NoError(t, s.Remove(ctx, "col", "k1"))

	keys, err := s.Keys(ctx, "col")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStore_ListIsKeyOrdered(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, s.SetField(ctx, "col", k, "f", k))
	}

	records, err := s.List(ctx, "col")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "a", records[0].Key)
	assert.Equal(t, "b", records[1].Key)
	assert.Equal(t, "c", records[2].Key)
}

func TestMemoryStore_SubscribeDeliversInitialAndUpdates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SetField(ctx, "col", "k1", "f", 1))

	snapshots, unsubscribe, err := s.Subscribe(ctx, "col")
	require.NoError(t, err)
	defer unsubscribe()

	snap := mustReceive(t, snapshots)
	require.Len(t, snap.Records, 1)

	require.NoError(t, s.SetField(ctx, "col", "k2", "f", 2))
	snap = mustReceive(t, snapshots)
	require.Len(t, snap.Records, 2)

	require.NoError(t, s.Remove(ctx, "col", "k1"))
	snap = mustReceive(t, snapshots)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "k2", snap.Records[0].Key)
}

func TestMemoryStore_SubscribeCoalescesForSlowConsumers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	snapshots, unsubscribe, err := s.Subscribe(ctx, "col")
	require.NoError(t, err)
	defer unsubscribe()

	// Nobody reads while three writes land; the consumer must then observe
	// the latest state, not a stale intermediate
	require.NoError(t, s.SetField(ctx, "col", "k1", "f", 1))
	require.NoError(t, s.SetField(ctx, "col", "k2", "f", 2))
	require.NoError(t, s.SetField(ctx, "col", "k3", "f", 3))

	var last Snapshot
	for drained := false; !drained; {
		select {
		case snap := <-snapshots:
			last = snap
		default:
			drained = true
		}
	}
	assert.Len(t, last.Records, 3)
}

func TestMemoryStore_UnsubscribeClosesChannel(t *testing.T) {
	s := NewMemoryStore()

	snapshots, unsubscribe, err := s.Subscribe(context.Background(), "col")
	require.NoError(t, err)

	mustReceive(t, snapshots) // initial
	unsubscribe()
	unsubscribe() // second call must be a no-op

	_, open := <-snapshots
	assert.False(t, open, "channel should be closed after unsubscribe")
}

func TestMemoryStore_FaultInjection(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	boom := errors.New("boom")
	s.FailSetRecord = boom
	err := s.SetRecord(ctx, "col", "k1", map[string]interface{}{"f": 1})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.WriteCount(), "failed write must not mutate")

	s.FailSetRecord = nil
	require.NoError(t, s.SetRecord(ctx, "col", "k1", map[string]interface{}{"f": 1}))
	assert.Equal(t, 1, s.WriteCount())
}

func TestMemoryStore_SetRecordReplacesWholeRecord(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SetField(ctx, "col", "k1", "old", "v"))
	require.NoError(t, s.SetRecord(ctx, "col", "k1", map[string]interface{}{"new": "v"}))

	fields, _, err := s.Get(ctx, "col", "k1")
	require.NoError(t, err)
	_, hasOld := fields["old"]
	assert.False(t, hasOld)
	assert.Contains(t, fields, "new")
}

func TestMemoryStore_RawMessagePassthrough(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	raw := json.RawMessage(`{"nome":"Ana","userId":"7"}`)
	require.NoError(t, s.SetRecord(ctx, "col", "k1", map[string]interface{}{"resp": raw}))

	fields, _, err := s.Get(ctx, "col", "k1")
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(fields["resp"]))
}

func mustReceive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

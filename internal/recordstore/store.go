// Package recordstore abstracts the key-addressed, subscribable store that
// holds the scheduling collections. Records are field maps (one JSON value per
// top-level field) so concurrent writers racing on different fields of the
// same record do not clobber each other. There are no transactions across
// collections and no cross-client ordering guarantee: each subscriber sees a
// monotonically increasing sequence of snapshots, concurrent writes to the
// same field resolve last-write-wins.
package recordstore

import (
	"context"
	"encoding/json"
)

// Record is one stored record: a key plus its raw field values.
type Record struct {
	Key    string
	Fields map[string]json.RawMessage
}

// Snapshot is a full view of a collection at some point in time.
// Records are in store-key order.
type Snapshot struct {
	Collection string
	Records    []Record
}

// Store is the record store contract. Implementations: Redis (production)
// and Memory (tests, single-process mode).
type Store interface {
	// Subscribe delivers a snapshot of the collection immediately and then
	// again after every change. The returned func cancels the subscription;
	// the channel is closed afterwards. Slow consumers see coalesced
	// snapshots (always the latest), never stale ones out of order.
	Subscribe(ctx context.Context, collection string) (<-chan Snapshot, func(), error)

	// SetField writes a single field of a record (last-write-wins).
	SetField(ctx context.Context, collection, key, field string, value interface{}) error

	// SetFieldIfAbsent writes a field only if it is not already set.
	// Returns false, without writing, when the field exists.
	SetFieldIfAbsent(ctx context.Context, collection, key, field string, value interface{}) (bool, error)

	// SetRecord replaces a whole record. Overwrite-safe: writing the same
	// payload twice is idempotent.
	SetRecord(ctx context.Context, collection, key string, fields map[string]interface{}) error

	// Get reads one record. Second return is false when the key is absent.
	Get(ctx context.Context, collection, key string) (map[string]json.RawMessage, bool, error)

	// Keys lists the record keys of a collection in store-key order.
	Keys(ctx context.Context, collection string) ([]string, error)

	// List reads all records of a collection in store-key order.
	List(ctx context.Context, collection string) ([]Record, error)

	// Remove deletes one record. Removing an absent key is not an error.
	Remove(ctx context.Context, collection, key string) error
}

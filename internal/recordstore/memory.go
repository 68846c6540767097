package recordstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store with the same semantics as the Redis
// implementation. Used by tests and as the store fake for the services.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]json.RawMessage
	subscribers map[string][]*memSub
	writes      int

	// Fault injection for tests. When non-nil the matching operation fails
	// without mutating anything.
	FailSetField  error
	FailSetRecord error
	FailRemove    error
}

type memSub struct {
	ch     chan Snapshot
	ctx    context.Context
	cancel context.CancelFunc
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]json.RawMessage),
		subscribers: make(map[string][]*memSub),
	}
}

// WriteCount reports how many mutating operations have been applied.
func (s *MemoryStore) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *MemoryStore) collection(name string) map[string]map[string]json.RawMessage {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]map[string]json.RawMessage)
		s.collections[name] = c
	}
	return c
}

// snapshotLocked builds a snapshot of a collection; caller holds the lock.
func (s *MemoryStore) snapshotLocked(collection string) Snapshot {
	c := s.collection(collection)
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		fields := make(map[string]json.RawMessage, len(c[k]))
		for f, v := range c[k] {
			fields[f] = v
		}
		records = append(records, Record{Key: k, Fields: fields})
	}
	return Snapshot{Collection: collection, Records: records}
}

// broadcastLocked pushes the current snapshot to all subscribers, coalescing
// for slow consumers; caller holds the lock.
func (s *MemoryStore) broadcastLocked(collection string) {
	snap := s.snapshotLocked(collection)
	for _, sub := range s.subscribers[collection] {
		select {
		case <-sub.ctx.Done():
			continue
		default:
		}
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}
}

func (s *MemoryStore) SetField(ctx context.Context, collection, key, field string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSetField != nil {
		return s.FailSetField
	}

	c := s.collection(collection)
	if c[key] == nil {
		c[key] = make(map[string]json.RawMessage)
	}
	c[key][field] = data
	s.writes++
	s.broadcastLocked(collection)
	return nil
}

func (s *MemoryStore) SetFieldIfAbsent(ctx context.Context, collection, key, field string, value interface{}) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSetField != nil {
		return false, s.FailSetField
	}

	c := s.collection(collection)
	if _, exists := c[key][field]; exists {
		return false, nil
	}
	if c[key] == nil {
		c[key] = make(map[string]json.RawMessage)
	}
	c[key][field] = data
	s.writes++
	s.broadcastLocked(collection)
	return true, nil
}

func (s *MemoryStore) SetRecord(ctx context.Context, collection, key string, fields map[string]interface{}) error {
	encoded := make(map[string]json.RawMessage, len(fields))
	for f, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		encoded[f] = data
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSetRecord != nil {
		return s.FailSetRecord
	}

	s.collection(collection)[key] = encoded
	s.writes++
	s.broadcastLocked(collection)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, key string) (map[string]json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collection(collection)[key]
	if !ok {
		return nil, false, nil
	}
	fields := make(map[string]json.RawMessage, len(rec))
	for f, v := range rec {
		fields[f] = v
	}
	return fields, true, nil
}

func (s *MemoryStore) Keys(ctx context.Context, collection string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(collection)
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(collection).Records, nil
}

func (s *MemoryStore) Remove(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRemove != nil {
		return s.FailRemove
	}

	delete(s.collection(collection), key)
	s.writes++
	s.broadcastLocked(collection)
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string) (<-chan Snapshot, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &memSub{ch: make(chan Snapshot, 1), ctx: subCtx, cancel: cancel}

	s.mu.Lock()
	s.subscribers[collection] = append(s.subscribers[collection], sub)
	snap := s.snapshotLocked(collection)
	s.mu.Unlock()

	sub.ch <- snap

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			s.mu.Lock()
			subs := s.subscribers[collection]
			for i, candidate := range subs {
				if candidate == sub {
					s.subscribers[collection] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, unsubscribe, nil
}

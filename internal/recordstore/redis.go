package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record as a Redis hash (one hash field per record
// field, JSON-encoded) plus a per-collection index set for key listing.
// Every write publishes on the collection's pub/sub channel; subscribers
// re-read the collection and emit a fresh snapshot.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "fieldops"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Connect dials Redis and verifies the connection
func Connect(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisStore(client, ""), nil
}

// Ping verifies the store connection (used by the health checker)
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) recKey(collection, key string) string {
	return fmt.Sprintf("%s:rec:%s:%s", s.prefix, collection, key)
}

func (s *RedisStore) idxKey(collection string) string {
	return fmt.Sprintf("%s:idx:%s", s.prefix, collection)
}

func (s *RedisStore) channel(collection string) string {
	return fmt.Sprintf("%s:ch:%s", s.prefix, collection)
}

func (s *RedisStore) notify(ctx context.Context, collection, key string) {
	// Best effort: a lost notification delays the next snapshot, it does not
	// lose data. Subscribers re-read the whole collection on every message.
	if err := s.client.Publish(ctx, s.channel(collection), key).Err(); err != nil {
		log.Printf("[RecordStore] publish failed for %s/%s: %v", collection, key, err)
	}
}

func (s *RedisStore) SetField(ctx context.Context, collection, key, field string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.recKey(collection, key), field, data)
	pipe.SAdd(ctx, s.idxKey(collection), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.notify(ctx, collection, key)
	return nil
}

func (s *RedisStore) SetFieldIfAbsent(ctx context.Context, collection, key, field string, value interface{}) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	set, err := s.client.HSetNX(ctx, s.recKey(collection, key), field, data).Result()
	if err != nil {
		return false, err
	}
	if !set {
		return false, nil
	}

	if err := s.client.SAdd(ctx, s.idxKey(collection), key).Err(); err != nil {
		return true, err
	}
	s.notify(ctx, collection, key)
	return true, nil
}

func (s *RedisStore) SetRecord(ctx context.Context, collection, key string, fields map[string]interface{}) error {
	encoded := make(map[string]interface{}, len(fields))
	for f, v := range fields {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		encoded[f] = data
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.recKey(collection, key))
	pipe.HSet(ctx, s.recKey(collection, key), encoded)
	pipe.SAdd(ctx, s.idxKey(collection), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.notify(ctx, collection, key)
	return nil
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) (map[string]json.RawMessage, bool, error) {
	raw, err := s.client.HGetAll(ctx, s.recKey(collection, key)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 {
		return nil, false, nil
	}

	fields := make(map[string]json.RawMessage, len(raw))
	for f, v := range raw {
		fields[f] = json.RawMessage(v)
	}
	return fields, true, nil
}

func (s *RedisStore) Keys(ctx context.Context, collection string) ([]string, error) {
	keys, err := s.client.SMembers(ctx, s.idxKey(collection)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) List(ctx context.Context, collection string) ([]Record, error) {
	keys, err := s.Keys(ctx, collection)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		fields, ok, err := s.Get(ctx, collection, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Key indexed but hash gone: removed between SMEMBERS and HGETALL
			continue
		}
		records = append(records, Record{Key: key, Fields: fields})
	}
	return records, nil
}

func (s *RedisStore) Remove(ctx context.Context, collection, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.recKey(collection, key))
	pipe.SRem(ctx, s.idxKey(collection), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	s.notify(ctx, collection, key)
	return nil
}

func (s *RedisStore) Subscribe(ctx context.Context, collection string) (<-chan Snapshot, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := s.client.Subscribe(subCtx, s.channel(collection))

	// Force the subscription to be established before the initial snapshot
	// so no change between the two is missed
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan Snapshot, 1)

	go func() {
		defer close(out)
		defer pubsub.Close()

		emit := func() {
			records, err := s.List(subCtx, collection)
			if err != nil {
				log.Printf("[RecordStore] snapshot read failed for %s: %v", collection, err)
				return
			}
			snap := Snapshot{Collection: collection, Records: records}
			// Coalesce: a slow consumer always gets the latest snapshot
			select {
			case out <- snap:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- snap:
				case <-subCtx.Done():
				}
			}
		}

		emit()
		msgs := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				emit()
			}
		}
	}()

	return out, cancel, nil
}

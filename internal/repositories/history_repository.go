package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"fieldops-backend/internal/models"
	"fieldops-backend/internal/recordstore"
)

// HistoryRepository reads the archive of completed operations. Append-only
// from this subsystem's perspective: records are written once by the
// completion coordinator and never mutated here.
type HistoryRepository struct {
	store recordstore.Store
}

func NewHistoryRepository(store recordstore.Store) *HistoryRepository {
	return &HistoryRepository{store: store}
}

// DecodeHistoryEntry decodes an archived record, including the completion
// metadata the coordinator appended.
func DecodeHistoryEntry(key string, fields map[string]json.RawMessage) (*models.HistoryEntry, error) {
	base, err := DecodeEntry(key, fields)
	if err != nil {
		return nil, err
	}

	entry := &models.HistoryEntry{ScheduleEntry: *base}
	if raw, ok := fields[FieldDataConclusao]; ok {
		if err := json.Unmarshal(raw, &entry.DataConclusao); err != nil {
			return nil, fmt.Errorf("field %s: %w", FieldDataConclusao, err)
		}
	}
	if raw, ok := fields[FieldResponsavelConclusao]; ok {
		if err := json.Unmarshal(raw, &entry.ResponsavelConclusao); err != nil {
			return nil, fmt.Errorf("field %s: %w", FieldResponsavelConclusao, err)
		}
	}
	return entry, nil
}

// List returns all archived operations, most recently concluded first
func (r *HistoryRepository) List(ctx context.Context) ([]*models.HistoryEntry, error) {
	records, err := r.store.List(ctx, CollectionHistory)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.HistoryEntry, 0, len(records))
	for _, rec := range records {
		entry, err := DecodeHistoryEntry(rec.Key, rec.Fields)
		if err != nil {
			log.Printf("[History] skipping malformed record %s: %v", rec.Key, err)
			continue
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DataConclusao > entries[j].DataConclusao
	})
	return entries, nil
}

// Get reads a single archived operation
func (r *HistoryRepository) Get(ctx context.Context, key string) (*models.HistoryEntry, error) {
	fields, ok, err := r.store.Get(ctx, CollectionHistory, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return DecodeHistoryEntry(key, fields)
}

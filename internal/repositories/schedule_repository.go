package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"fieldops-backend/internal/models"
	"fieldops-backend/internal/recordstore"
	"fieldops-backend/internal/timeutil"

	"github.com/google/uuid"
)

// Collections in the record store
const (
	CollectionActive  = "programacoes"
	CollectionHistory = "historico"
)

// Record field names (wire shape of the stored records)
const (
	FieldCliente                 = "cliente"
	FieldEndereco                = "endereco"
	FieldDataEntrega             = "dataEntrega"
	FieldEquipamentos            = "equipamentos"
	FieldContainers              = "containers"
	FieldObservacoes             = "observacoes"
	FieldResponsavelOperacao     = "responsavelOperacao"
	FieldResponsavelCarregamento = "responsavelCarregamento"
	FieldDataConclusao           = "dataConclusao"
	FieldResponsavelConclusao    = "responsavelConclusao"
)

// ScheduleRepository is a read-mostly projection over the active collection:
// it decodes raw records, defaults missing fields, and keeps the list sorted
// by delivery date. Writes for entry creation go through Create; all
// responsibility writes belong to the services.
type ScheduleRepository struct {
	store recordstore.Store
}

func NewScheduleRepository(store recordstore.Store) *ScheduleRepository {
	return &ScheduleRepository{store: store}
}

// Store exposes the underlying record store for the services that share it
func (r *ScheduleRepository) Store() recordstore.Store {
	return r.store
}

// DecodeEntry turns a raw record into a ScheduleEntry. Missing lists default
// to empty, absent responsibles decode to nil. A record without a parseable
// delivery date is malformed.
func DecodeEntry(key string, fields map[string]json.RawMessage) (*models.ScheduleEntry, error) {
	entry := &models.ScheduleEntry{
		Key:          key,
		Equipamentos: []models.Equipment{},
		Containers:   []models.Container{},
	}

	unmarshalField := func(name string, dst interface{}) error {
		raw, ok := fields[name]
		if !ok || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		return nil
	}

	if err := unmarshalField(FieldCliente, &entry.Cliente); err != nil {
		return nil, err
	}
	if err := unmarshalField(FieldEndereco, &entry.Endereco); err != nil {
		return nil, err
	}
	if err := unmarshalField(FieldDataEntrega, &entry.DataEntrega); err != nil {
		return nil, err
	}
	if err := unmarshalField(FieldEquipamentos, &entry.Equipamentos); err != nil {
		return nil, err
	}
	if err := unmarshalField(FieldContainers, &entry.Containers); err != nil {
		return nil, err
	}
	if err := unmarshalField(FieldObservacoes, &entry.Observacoes); err != nil {
		return nil, err
	}
	if err := unmarshalField(FieldResponsavelOperacao, &entry.ResponsavelOperacao); err != nil {
		return nil, err
	}
	if err := unmarshalField(FieldResponsavelCarregamento, &entry.ResponsavelCarregamento); err != nil {
		return nil, err
	}
	if entry.Equipamentos == nil {
		entry.Equipamentos = []models.Equipment{}
	}
	if entry.Containers == nil {
		entry.Containers = []models.Container{}
	}

	date, err := timeutil.ParseInBRT(timeutil.DateLayout, entry.DataEntrega)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", FieldDataEntrega, err)
	}
	entry.DeliveryDate = date

	return entry, nil
}

// decodeSnapshot converts a store snapshot into a sorted entry list.
// Malformed records are skipped and logged, never fatal for the collection.
func decodeSnapshot(records []recordstore.Record) []*models.ScheduleEntry {
	entries := make([]*models.ScheduleEntry, 0, len(records))
	for _, rec := range records {
		entry, err := DecodeEntry(rec.Key, rec.Fields)
		if err != nil {
			log.Printf("[Schedule] skipping malformed record %s: %v", rec.Key, err)
			continue
		}
		entries = append(entries, entry)
	}

	// Records arrive in store-key order; the stable sort keeps that order
	// as the tiebreak for equal delivery dates
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DeliveryDate.Before(entries[j].DeliveryDate)
	})
	return entries
}

// Subscribe emits the ordered active schedule on every store change. The
// returned func tears the subscription down and closes the channel.
func (r *ScheduleRepository) Subscribe(ctx context.Context) (<-chan []*models.ScheduleEntry, func(), error) {
	snapshots, unsubscribe, err := r.store.Subscribe(ctx, CollectionActive)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan []*models.ScheduleEntry, 1)
	go func() {
		defer close(out)
		for snap := range snapshots {
			entries := decodeSnapshot(snap.Records)
			// Coalesce for slow consumers, same policy as the store
			select {
			case out <- entries:
			default:
				select {
				case <-out:
				default:
				}
				select {
				case out <- entries:
				default:
				}
			}
		}
	}()
	return out, unsubscribe, nil
}

// List reads the current active schedule, sorted
func (r *ScheduleRepository) List(ctx context.Context) ([]*models.ScheduleEntry, error) {
	records, err := r.store.List(ctx, CollectionActive)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(records), nil
}

// Get reads a single active entry. Returns nil, nil when the key is absent
// (completed or never existed).
func (r *ScheduleRepository) Get(ctx context.Context, key string) (*models.ScheduleEntry, error) {
	fields, ok, err := r.store.Get(ctx, CollectionActive, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return DecodeEntry(key, fields)
}

// Create stores a new schedule entry with no responsibles set (the state the
// logistics-planning flow hands over)
func (r *ScheduleRepository) Create(ctx context.Context, req *models.CreateScheduleRequest) (*models.ScheduleEntry, error) {
	if _, err := time.Parse(timeutil.DateLayout, req.DataEntrega); err != nil {
		return nil, fmt.Errorf("invalid dataEntrega %q: %w", req.DataEntrega, err)
	}

	key := uuid.NewString()
	fields := map[string]interface{}{
		FieldCliente:      req.Cliente,
		FieldEndereco:     req.Endereco,
		FieldDataEntrega:  req.DataEntrega,
		FieldEquipamentos: req.Equipamentos,
		FieldContainers:   req.Containers,
	}
	if req.Observacoes != "" {
		fields[FieldObservacoes] = req.Observacoes
	}

	if err := r.store.SetRecord(ctx, CollectionActive, key, fields); err != nil {
		return nil, err
	}
	return r.Get(ctx, key)
}

// Package memory provides an in-memory RecordStore for tests and ephemeral
// deployments.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/artpar/restmodel/core/fault"
	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/ports"
)

// table holds the records of one resource in creation order.
type table struct {
	schema  *schema.Schema
	records map[string]ports.Record
	order   []string
}

// RecordStore is an in-memory implementation of ports.RecordStore.
type RecordStore struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// NewRecordStore creates an empty in-memory store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		tables: make(map[string]*table),
	}
}

// Migrate registers a schema.
func (s *RecordStore) Migrate(ctx context.Context, sch *schema.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tables[sch.Name()]; exists {
		return fmt.Errorf("resource %q already migrated", sch.Name())
	}
	s.tables[sch.Name()] = &table{
		schema:  sch,
		records: make(map[string]ports.Record),
	}
	return nil
}

func (s *RecordStore) table(resource string) (*table, error) {
	t, ok := s.tables[resource]
	if !ok {
		return nil, fault.New(fault.KindUnknownResource, "resource %q not migrated", resource)
	}
	return t, nil
}

// Insert stores a new record.
func (s *RecordStore) Insert(ctx context.Context, resource string, rec ports.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(resource)
	if err != nil {
		return err
	}
	if _, exists := t.records[rec.ID]; exists {
		return fmt.Errorf("%s %q already exists", resource, rec.ID)
	}

	t.records[rec.ID] = rec.Clone()
	t.order = append(t.order, rec.ID)
	return nil
}

// Fetch returns a record by id.
func (s *RecordStore) Fetch(ctx context.Context, resource string, id string) (ports.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(resource)
	if err != nil {
		return ports.Record{}, err
	}
	rec, ok := t.records[id]
	if !ok {
		return ports.Record{}, fault.New(fault.KindNotFound, "%s %q not found", resource, id)
	}
	return rec.Clone(), nil
}

// List returns matching records in creation order.
func (s *RecordStore) List(ctx context.Context, resource string, filter map[string]any) ([]ports.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(resource)
	if err != nil {
		return nil, err
	}

	out := make([]ports.Record, 0, len(t.order))
	for _, id := range t.order {
		rec := t.records[id]
		if t.schema.Matches(id, rec.Values, filter) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Replace overwrites an existing record.
func (s *RecordStore) Replace(ctx context.Context, resource string, rec ports.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(resource)
	if err != nil {
		return err
	}
	if _, ok := t.records[rec.ID]; !ok {
		return fault.New(fault.KindNotFound, "%s %q not found", resource, rec.ID)
	}
	t.records[rec.ID] = rec.Clone()
	return nil
}

// Remove deletes a record.
func (s *RecordStore) Remove(ctx context.Context, resource string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(resource)
	if err != nil {
		return err
	}
	if _, ok := t.records[id]; !ok {
		return fault.New(fault.KindNotFound, "%s %q not found", resource, id)
	}

	delete(t.records, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close is a no-op.
func (s *RecordStore) Close() error {
	return nil
}

// Ensure interface compliance.
var _ ports.RecordStore = (*RecordStore)(nil)

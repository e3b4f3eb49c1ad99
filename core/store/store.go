// Package store implements the CRUD contract of one resource type on top of
// a ports.RecordStore backend.
//
// A Store owns the canonical copy of every instance. Callers receive fresh
// domain objects and must pass them back through Save, Update or Replace for
// changes to take effect. Mutations on the same id are serialized; mutations
// on different ids are independent.
package store

import (
	"context"
	"fmt"

	"github.com/artpar/restmodel/adapters/idgen"
	"github.com/artpar/restmodel/core/fault"
	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/ports"
	"github.com/rs/zerolog"
)

// Observer is notified after a mutation commits.
type Observer interface {
	Created(ctx context.Context, resource string, doc schema.Document)
	Updated(ctx context.Context, resource string, doc schema.Document)
	Deleted(ctx context.Context, resource string, id string)
}

// Store provides CRUD operations for one resource type.
type Store struct {
	schema    *schema.Schema
	backend   ports.RecordStore
	ids       ports.IDGenerator
	observers []Observer
	locks     *lockTable
	logger    zerolog.Logger

	methods map[string]Method
	order   []string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(g ports.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithObserver adds a mutation observer.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observers = append(s.observers, o) }
}

// WithLogger sets the logger for failures that happen after a commit.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a store for sch backed by backend. The backend must already
// be migrated for the schema.
func New(sch *schema.Schema, backend ports.RecordStore, opts ...Option) *Store {
	s := &Store{
		schema:  sch,
		backend: backend,
		ids:     idgen.UUID{},
		locks:   newLockTable(32),
		logger:  zerolog.Nop(),
		methods: make(map[string]Method),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.installDefaults()
	return s
}

// Schema returns the resource schema.
func (s *Store) Schema() *schema.Schema {
	return s.schema
}

// Name returns the resource name.
func (s *Store) Name() string {
	return s.schema.Name()
}

// Create assigns a fresh id, applies the writable attributes and persists
// the new instance.
func (s *Store) Create(ctx context.Context, attrs map[string]any) (schema.Object, error) {
	values, err := s.schema.Deserialize(attrs)
	if err != nil {
		return nil, err
	}

	obj := s.schema.NewObject()
	id := s.ids.New()
	obj.AssignID(id)

	if err := s.schema.Apply(obj, values); err != nil {
		return nil, err
	}

	stored, err := s.schema.Persisted(obj)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	err = s.backend.Insert(ctx, s.Name(), ports.Record{ID: id, Values: stored})
	unlock()
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", s.Name(), err)
	}

	s.notifyCreated(ctx, obj)
	return obj, nil
}

// Get returns the instance with the given id.
func (s *Store) Get(ctx context.Context, id string) (schema.Object, error) {
	rec, err := s.backend.Fetch(ctx, s.Name(), id)
	if err != nil {
		return nil, err
	}
	return s.schema.Hydrate(rec.ID, rec.Values)
}

// All returns the instances whose persisted attributes equal every filter
// value, in creation order. Filter values are coerced using the attribute
// types; unknown or virtual keys fail with a validation fault.
func (s *Store) All(ctx context.Context, filter map[string]any) ([]schema.Object, error) {
	f, err := s.schema.Filter(filter)
	if err != nil {
		return nil, err
	}

	recs, err := s.backend.List(ctx, s.Name(), f)
	if err != nil {
		return nil, err
	}

	out := make([]schema.Object, 0, len(recs))
	for _, rec := range recs {
		obj, err := s.schema.Hydrate(rec.ID, rec.Values)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Save persists the full current state of an instance obtained from this
// store.
func (s *Store) Save(ctx context.Context, obj schema.Object) (schema.Object, error) {
	id := obj.ResourceID()
	if id == "" {
		return nil, fault.New(fault.KindNotFound, "%s has no id", s.Name())
	}

	stored, err := s.schema.Persisted(obj)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	err = s.backend.Replace(ctx, s.Name(), ports.Record{ID: id, Values: stored})
	unlock()
	if err != nil {
		return nil, err
	}

	saved, err := s.schema.Hydrate(id, stored)
	if err != nil {
		return nil, err
	}
	s.notifyUpdated(ctx, saved)
	return saved, nil
}

// Update applies a partial set of writable attributes to an existing
// instance.
func (s *Store) Update(ctx context.Context, id string, attrs map[string]any) (schema.Object, error) {
	values, err := s.schema.Deserialize(attrs)
	if err != nil {
		return nil, err
	}

	return s.Modify(ctx, id, func(obj schema.Object) error {
		return s.schema.Apply(obj, values)
	})
}

// Modify loads the instance, passes it to change and persists the result,
// all while holding the id's lock. Extension methods use it for
// read-modify-write so concurrent updates are not lost.
func (s *Store) Modify(ctx context.Context, id string, change func(schema.Object) error) (schema.Object, error) {
	return s.mutate(ctx, id, func(current ports.Record) (schema.Object, error) {
		obj, err := s.schema.Hydrate(id, current.Values)
		if err != nil {
			return nil, err
		}
		return obj, change(obj)
	})
}

// Replace rebuilds an existing instance from the given attributes only.
// Attributes left out return to the domain type's zero state.
func (s *Store) Replace(ctx context.Context, id string, attrs map[string]any) (schema.Object, error) {
	values, err := s.schema.Deserialize(attrs)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(ports.Record) (schema.Object, error) {
		obj := s.schema.NewObject()
		obj.AssignID(id)
		return obj, s.schema.Apply(obj, values)
	})
}

// mutate runs a read-modify-write cycle on one id under its lock.
func (s *Store) mutate(ctx context.Context, id string, change func(ports.Record) (schema.Object, error)) (schema.Object, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.backend.Fetch(ctx, s.Name(), id)
	if err != nil {
		return nil, err
	}

	obj, err := change(current)
	if err != nil {
		return nil, err
	}

	stored, err := s.schema.Persisted(obj)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Replace(ctx, s.Name(), ports.Record{ID: id, Values: stored}); err != nil {
		return nil, err
	}

	s.notifyUpdated(ctx, obj)
	return obj, nil
}

// Delete removes the instance with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	unlock := s.locks.lock(id)
	err := s.backend.Remove(ctx, s.Name(), id)
	unlock()
	if err != nil {
		return err
	}

	for _, o := range s.observers {
		o.Deleted(ctx, s.Name(), id)
	}
	return nil
}

func (s *Store) notifyCreated(ctx context.Context, obj schema.Object) {
	if len(s.observers) == 0 {
		return
	}
	doc, err := s.schema.Serialize(obj)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("resource", s.Name()).
			Str("id", obj.ResourceID()).
			Str("event", "created").
			Msg("observers skipped: instance does not serialize")
		return
	}
	for _, o := range s.observers {
		o.Created(ctx, s.Name(), doc)
	}
}

func (s *Store) notifyUpdated(ctx context.Context, obj schema.Object) {
	if len(s.observers) == 0 {
		return
	}
	doc, err := s.schema.Serialize(obj)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("resource", s.Name()).
			Str("id", obj.ResourceID()).
			Str("event", "updated").
			Msg("observers skipped: instance does not serialize")
		return
	}
	for _, o := range s.observers {
		o.Updated(ctx, s.Name(), doc)
	}
}

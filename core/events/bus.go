// Package events publishes store mutations to in-process subscribers.
//
// Bus implements store.Observer, so attaching it to a store turns every
// committed create, update and delete into an event named
// "<resource>.<action>".
package events

import (
	"context"
	"strings"
	"sync"

	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/core/store"
	"github.com/rs/zerolog"
)

// Actions carried by store events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event describes one committed mutation.
type Event struct {
	// Name is "<resource>.<action>", e.g. "chore.created".
	Name string

	Resource string
	Action   string
	ID       string

	// Data is the serialized instance; empty for deletions.
	Data map[string]any
}

// Handler processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a synchronous publish/subscribe bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler. Patterns:
//   - "chore.created" - exact match
//   - "chore.*" - all chore events
//   - "*" - all events
func (b *Bus) Subscribe(pattern string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[pattern] = append(b.handlers[pattern], handler)
}

// Publish calls every matching handler in order: exact subscribers, then
// resource wildcards, then global ones. Handler errors are logged and do
// not stop delivery.
func (b *Bus) Publish(ctx context.Context, event Event) {
	matched := b.match(event.Name)

	b.logger.Debug().
		Str("event", event.Name).
		Str("id", event.ID).
		Int("handlers", len(matched)).
		Msg("event published")

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// HasSubscribers reports whether any handler would receive the event.
func (b *Bus) HasSubscribers(name string) bool {
	return len(b.match(name)) > 0
}

func (b *Bus) match(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Handler
	matched = append(matched, b.handlers[name]...)
	if resource, _, ok := strings.Cut(name, "."); ok {
		matched = append(matched, b.handlers[resource+".*"]...)
	}
	matched = append(matched, b.handlers["*"]...)
	return matched
}

// Created publishes "<resource>.created".
func (b *Bus) Created(ctx context.Context, resource string, doc schema.Document) {
	if b.HasSubscribers(resource + "." + ActionCreated) {
		b.Publish(ctx, newEvent(resource, ActionCreated, doc))
	}
}

// Updated publishes "<resource>.updated".
func (b *Bus) Updated(ctx context.Context, resource string, doc schema.Document) {
	if b.HasSubscribers(resource + "." + ActionUpdated) {
		b.Publish(ctx, newEvent(resource, ActionUpdated, doc))
	}
}

// Deleted publishes "<resource>.deleted".
func (b *Bus) Deleted(ctx context.Context, resource string, id string) {
	b.Publish(ctx, Event{
		Name:     resource + "." + ActionDeleted,
		Resource: resource,
		Action:   ActionDeleted,
		ID:       id,
	})
}

func newEvent(resource, action string, doc schema.Document) Event {
	id, _ := doc.Get(schema.IDField).(string)
	return Event{
		Name:     resource + "." + action,
		Resource: resource,
		Action:   action,
		ID:       id,
		Data:     doc.Map(),
	}
}

// Ensure interface compliance.
var _ store.Observer = (*Bus)(nil)

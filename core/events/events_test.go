package events

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/artpar/restmodel/adapters/idgen"
	"github.com/artpar/restmodel/adapters/memory"
	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/core/store"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestPublish_Matching(t *testing.T) {
	bus := NewBus(testLogger())

	var got []string
	record := func(tag string) Handler {
		return func(ctx context.Context, e Event) error {
			got = append(got, tag+":"+e.Name)
			return nil
		}
	}

	bus.Subscribe("*", record("all"))
	bus.Subscribe("chore.*", record("chores"))
	bus.Subscribe("chore.created", record("exact"))
	bus.Subscribe("note.created", record("other"))

	bus.Publish(context.Background(), Event{Name: "chore.created"})

	want := []string{"exact:chore.created", "chores:chore.created", "all:chore.created"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestPublish_HandlerErrorContinues(t *testing.T) {
	bus := NewBus(testLogger())

	calls := 0
	bus.Subscribe("chore.deleted", func(context.Context, Event) error {
		calls++
		return errors.New("boom")
	})
	bus.Subscribe("chore.deleted", func(context.Context, Event) error {
		calls++
		return nil
	})

	bus.Publish(context.Background(), Event{Name: "chore.deleted"})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestHasSubscribers(t *testing.T) {
	bus := NewBus(testLogger())
	if bus.HasSubscribers("chore.created") {
		t.Error("empty bus should have no subscribers")
	}

	bus.Subscribe("chore.*", func(context.Context, Event) error { return nil })

	tests := []struct {
		name string
		want bool
	}{
		{"chore.created", true},
		{"chore.deleted", true},
		{"note.created", false},
		{"chore", false},
	}
	for _, tt := range tests {
		if got := bus.HasSubscribers(tt.name); got != tt.want {
			t.Errorf("HasSubscribers(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBus_StoreObserver(t *testing.T) {
	bus := NewBus(testLogger())

	var mu sync.Mutex
	var events []Event
	bus.Subscribe("note.*", func(_ context.Context, e Event) error {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
		return nil
	})

	sch := schema.New("note", schema.NewRecord)
	get, set := schema.RecordField("text")
	sch.MustDefine("text", schema.TypeString, schema.Get(get), schema.Set(set))
	sch.Seal()

	backend := memory.NewRecordStore()
	if err := backend.Migrate(context.Background(), sch); err != nil {
		t.Fatal(err)
	}
	s := store.New(sch, backend, store.WithObserver(bus), store.WithIDGenerator(idgen.NewSequential("n")))

	ctx := context.Background()
	obj, err := s.Create(ctx, map[string]any{"text": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	s.Update(ctx, obj.ResourceID(), map[string]any{"text": "hello"})
	s.Delete(ctx, obj.ResourceID())

	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}

	tests := []struct {
		name string
		id   string
		text any
	}{
		{"note.created", "n1", "hi"},
		{"note.updated", "n1", "hello"},
		{"note.deleted", "n1", nil},
	}
	for i, tt := range tests {
		e := events[i]
		if e.Name != tt.name || e.ID != tt.id || e.Data["text"] != tt.text {
			t.Errorf("events[%d] = %+v, want %s id=%s text=%v", i, e, tt.name, tt.id, tt.text)
		}
	}
}

func TestBus_ObserverSkipsUnwatchedResources(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(zerolog.New(&buf).Level(zerolog.DebugLevel))
	bus.Subscribe("chore.*", func(context.Context, Event) error { return nil })

	doc := schema.Document{}
	bus.Created(context.Background(), "note", doc)
	bus.Updated(context.Background(), "note", doc)
	if buf.Len() != 0 {
		t.Errorf("unwatched resource published: %s", buf.String())
	}

	bus.Created(context.Background(), "chore", doc)
	if !bytes.Contains(buf.Bytes(), []byte(`"event":"chore.created"`)) {
		t.Errorf("log = %s, want chore.created published", buf.String())
	}
}

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/artpar/restmodel/adapters/idgen"
	"github.com/artpar/restmodel/adapters/memory"
	"github.com/artpar/restmodel/core/fault"
	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/ports"
	"github.com/rs/zerolog"
)

type item struct {
	ID    string
	Name  string
	Color string
	Count int64
	Owner string
	Meta  map[string]any
}

func (i *item) ResourceID() string { return i.ID }
func (i *item) AssignID(id string) { i.ID = id }

func itemSchema() *schema.Schema {
	s := schema.New("item", func() schema.Object { return &item{} })

	get, set := schema.Accessor(
		func(i *item) any { return i.Name },
		func(i *item, v any) error { i.Name, _ = v.(string); return nil },
	)
	s.MustDefine("name", schema.TypeString, schema.Get(get), schema.Set(set))

	get, set = schema.Accessor(
		func(i *item) any { return i.Color },
		func(i *item, v any) error { i.Color, _ = v.(string); return nil },
	)
	s.MustDefine("color", schema.TypeString, schema.Get(get), schema.Set(set))

	get, set = schema.Accessor(
		func(i *item) any { return i.Count },
		func(i *item, v any) error { i.Count, _ = v.(int64); return nil },
	)
	s.MustDefine("count", schema.TypeInteger, schema.Get(get), schema.Set(set))

	get, set = schema.Accessor(
		func(i *item) any { return i.Owner },
		func(i *item, v any) error { i.Owner, _ = v.(string); return nil },
	)
	s.MustDefine("owner", schema.TypeString, schema.Readonly(), schema.Get(get), schema.Set(set))

	get, set = schema.Accessor(
		func(i *item) any { return i.Meta },
		func(i *item, v any) error { i.Meta, _ = v.(map[string]any); return nil },
	)
	s.MustDefine("meta", schema.TypeJSON, schema.Get(get), schema.Set(set))

	get, _ = schema.Accessor(func(i *item) any { return i.Count > 0 }, nil)
	s.MustDefine("in_stock", schema.TypeBoolean, schema.Virtual(), schema.Readonly(), schema.Get(get))

	return s.Seal()
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	backend := memory.NewRecordStore()
	sch := itemSchema()
	if err := backend.Migrate(context.Background(), sch); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return New(sch, backend, opts...)
}

func TestStore_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, map[string]any{"name": "Widget", "count": 3.0})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ResourceID() == "" {
		t.Fatal("Create() returned empty id")
	}

	got, err := s.Get(ctx, created.ResourceID())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	want, _ := s.Schema().Persisted(created)
	have, _ := s.Schema().Persisted(got)
	for k, v := range want {
		if have[k] != v {
			t.Errorf("%s = %v, want %v", k, have[k], v)
		}
	}
}

func TestStore_CreateRejectsReadonly(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create(context.Background(), map[string]any{"name": "x", "owner": "mallory"})
	if !errors.Is(err, fault.ReadonlyWrite) {
		t.Errorf("Create() error = %v, want readonly write", err)
	}
}

func TestStore_CreateValidation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create(context.Background(), map[string]any{"count": "many"})
	if fault.KindOf(err) != fault.KindValidation {
		t.Errorf("Create() kind = %q, want validation", fault.KindOf(err))
	}
}

func TestStore_UniqueIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		obj, err := s.Create(ctx, map[string]any{"name": fmt.Sprintf("seq-%d", i)})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if seen[obj.ResourceID()] {
			t.Fatalf("duplicate id %s", obj.ResourceID())
		}
		seen[obj.ResourceID()] = true
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			obj, err := s.Create(ctx, map[string]any{"name": fmt.Sprintf("par-%d", i)})
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[obj.ResourceID()] {
				t.Errorf("duplicate id %s", obj.ResourceID())
			}
			seen[obj.ResourceID()] = true
		}(i)
	}
	wg.Wait()

	all, err := s.All(ctx, nil)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 200 {
		t.Errorf("len(All()) = %d, want 200", len(all))
	}
}

func TestStore_DeleteThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obj, _ := s.Create(ctx, map[string]any{"name": "Temp"})
	if err := s.Delete(ctx, obj.ResourceID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := s.Get(ctx, obj.ResourceID()); !errors.Is(err, fault.NotFound) {
		t.Errorf("Get() after Delete error = %v, want not found", err)
	}
	if err := s.Delete(ctx, obj.ResourceID()); !errors.Is(err, fault.NotFound) {
		t.Errorf("second Delete() error = %v, want not found", err)
	}
}

func TestStore_All(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fixtures := []map[string]any{
		{"name": "a", "color": "red", "count": 1},
		{"name": "b", "color": "blue", "count": 1},
		{"name": "c", "color": "red", "count": 2},
		{"name": "d", "color": "red", "count": 1},
	}
	for _, f := range fixtures {
		if _, err := s.Create(ctx, f); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter map[string]any
		want   []string
	}{
		{"empty filter", map[string]any{}, []string{"a", "b", "c", "d"}},
		{"nil filter", nil, []string{"a", "b", "c", "d"}},
		{"one key", map[string]any{"color": "red"}, []string{"a", "c", "d"}},
		{"two keys", map[string]any{"color": "red", "count": 1}, []string{"a", "d"}},
		{"coerced string", map[string]any{"count": "2"}, []string{"c"}},
		{"no match", map[string]any{"color": "green"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.All(ctx, tt.filter)
			if err != nil {
				t.Fatalf("All() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, obj := range got {
				if name := obj.(*item).Name; name != tt.want[i] {
					t.Errorf("[%d] = %s, want %s", i, name, tt.want[i])
				}
			}
		})
	}

	if _, err := s.All(ctx, map[string]any{"flavor": "x"}); fault.KindOf(err) != fault.KindValidation {
		t.Errorf("unknown filter kind = %q, want validation", fault.KindOf(err))
	}
}

func TestStore_AllStableOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		s.Create(ctx, map[string]any{"name": fmt.Sprint(i)})
	}

	first, _ := s.All(ctx, nil)
	second, _ := s.All(ctx, nil)
	for i := range first {
		if first[i].ResourceID() != second[i].ResourceID() {
			t.Fatalf("order changed at %d", i)
		}
	}
}

func TestStore_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obj, _ := s.Create(ctx, map[string]any{"name": "Lamp", "color": "white"})

	updated, err := s.Update(ctx, obj.ResourceID(), map[string]any{"color": "black"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if it := updated.(*item); it.Name != "Lamp" || it.Color != "black" {
		t.Errorf("Update() = %+v", it)
	}

	got, _ := s.Get(ctx, obj.ResourceID())
	if got.(*item).Color != "black" {
		t.Errorf("stored color = %s, want black", got.(*item).Color)
	}

	if _, err := s.Update(ctx, "missing", map[string]any{"color": "x"}); !errors.Is(err, fault.NotFound) {
		t.Errorf("Update(missing) error = %v, want not found", err)
	}
	if _, err := s.Update(ctx, obj.ResourceID(), map[string]any{"owner": "x"}); !errors.Is(err, fault.ReadonlyWrite) {
		t.Errorf("Update(owner) error = %v, want readonly write", err)
	}
}

func TestStore_Replace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obj, _ := s.Create(ctx, map[string]any{"name": "Lamp", "color": "white", "count": 4})

	replaced, err := s.Replace(ctx, obj.ResourceID(), map[string]any{"name": "Desk lamp"})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	it := replaced.(*item)
	if it.Name != "Desk lamp" || it.Color != "" || it.Count != 0 {
		t.Errorf("Replace() = %+v, want only name set", it)
	}

	if _, err := s.Replace(ctx, "missing", map[string]any{}); !errors.Is(err, fault.NotFound) {
		t.Errorf("Replace(missing) error = %v, want not found", err)
	}
}

func TestStore_Save(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obj, _ := s.Create(ctx, map[string]any{"name": "Chair"})
	it := obj.(*item)
	it.Count = 7

	if _, err := s.Get(ctx, it.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, it.ID)
	if got.(*item).Count != 0 {
		t.Error("changes to a returned object must not leak into the store before Save")
	}

	if _, err := s.Save(ctx, it); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, _ = s.Get(ctx, it.ID)
	if got.(*item).Count != 7 {
		t.Errorf("count = %d, want 7", got.(*item).Count)
	}

	if _, err := s.Save(ctx, &item{ID: "ghost"}); !errors.Is(err, fault.NotFound) {
		t.Errorf("Save(unknown) error = %v, want not found", err)
	}
}

func TestStore_NoLostUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obj, _ := s.Create(ctx, map[string]any{"name": "Counter"})
	id := obj.ResourceID()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Modify(ctx, id, func(o schema.Object) error {
				o.(*item).Count++
				return nil
			})
			if err != nil {
				t.Errorf("Modify() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, id)
	if got.(*item).Count != 100 {
		t.Errorf("count = %d, want 100", got.(*item).Count)
	}
}

func TestStore_ModifyWaitsForConcurrentUpdate(t *testing.T) {
	backend := &pausingBackend{RecordStore: memory.NewRecordStore()}
	sch := itemSchema()
	if err := backend.Migrate(context.Background(), sch); err != nil {
		t.Fatal(err)
	}
	s := New(sch, backend)
	ctx := context.Background()

	obj, _ := s.Create(ctx, map[string]any{"name": "Dishes", "count": 1})
	id := obj.ResourceID()

	backend.arm()
	done := make(chan error)
	go func() {
		_, err := s.Modify(ctx, id, func(o schema.Object) error {
			o.(*item).Count++
			return nil
		})
		done <- err
	}()
	<-backend.fetched

	updated := make(chan error)
	go func() {
		_, err := s.Update(ctx, id, map[string]any{"color": "blue"})
		updated <- err
	}()

	close(backend.release)
	if err := <-done; err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if err := <-updated; err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := s.Get(ctx, id)
	it := got.(*item)
	if it.Count != 2 || it.Color != "blue" {
		t.Errorf("final = count %d color %q, want 2 and blue", it.Count, it.Color)
	}
}

// pausingBackend blocks the first Fetch after arm until release is closed.
type pausingBackend struct {
	ports.RecordStore

	mu      sync.Mutex
	armed   bool
	fetched chan struct{}
	release chan struct{}
}

func (b *pausingBackend) arm() {
	b.mu.Lock()
	b.armed = true
	b.fetched = make(chan struct{})
	b.release = make(chan struct{})
	b.mu.Unlock()
}

func (b *pausingBackend) Fetch(ctx context.Context, resource, id string) (ports.Record, error) {
	rec, err := b.RecordStore.Fetch(ctx, resource, id)

	b.mu.Lock()
	pause := b.armed
	b.armed = false
	b.mu.Unlock()

	if pause {
		close(b.fetched)
		<-b.release
	}
	return rec, err
}

func TestStore_JSONValuesNotShared(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := map[string]any{"name": "Box", "meta": map[string]any{"v": "original"}}
	obj, err := s.Create(ctx, payload)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	payload["meta"].(map[string]any)["v"] = "changed payload"
	obj.(*item).Meta["v"] = "changed result"

	got, _ := s.Get(ctx, obj.ResourceID())
	got.(*item).Meta["v"] = "changed get"

	again, _ := s.Get(ctx, obj.ResourceID())
	if v := again.(*item).Meta["v"]; v != "original" {
		t.Errorf("meta.v = %v, want original", v)
	}
}

func TestStore_LogsUnserializableInstance(t *testing.T) {
	sch := schema.New("item", func() schema.Object { return &item{} })
	get, set := schema.Accessor(
		func(i *item) any { return i.Name },
		func(i *item, v any) error { i.Name, _ = v.(string); return nil },
	)
	sch.MustDefine("name", schema.TypeString, schema.Get(get), schema.Set(set))
	get, _ = schema.Accessor(func(i *item) any { return i.Name }, nil)
	sch.MustDefine("size", schema.TypeInteger, schema.Virtual(), schema.Readonly(), schema.Get(get))
	sch.Seal()

	backend := memory.NewRecordStore()
	if err := backend.Migrate(context.Background(), sch); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	obs := &recordingObserver{}
	s := New(sch, backend, WithObserver(obs), WithLogger(zerolog.New(&buf)))

	if _, err := s.Create(context.Background(), map[string]any{"name": "Bell"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(obs.events) != 0 {
		t.Errorf("events = %v, want none", obs.events)
	}
	out := buf.String()
	if !strings.Contains(out, "observers skipped") || !strings.Contains(out, `"event":"created"`) {
		t.Errorf("log = %q, want an observers skipped entry", out)
	}
}

func TestStore_SequentialIDs(t *testing.T) {
	s := newTestStore(t, WithIDGenerator(idgen.NewSequential("item-")))

	obj, err := s.Create(context.Background(), map[string]any{"name": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if obj.ResourceID() != "item-1" {
		t.Errorf("id = %s, want item-1", obj.ResourceID())
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) Created(_ context.Context, resource string, doc schema.Document) {
	r.add(fmt.Sprintf("created %s %v", resource, doc.Get("name")))
}

func (r *recordingObserver) Updated(_ context.Context, resource string, doc schema.Document) {
	r.add(fmt.Sprintf("updated %s %v", resource, doc.Get("name")))
}

func (r *recordingObserver) Deleted(_ context.Context, resource string, id string) {
	r.add("deleted " + resource)
}

func (r *recordingObserver) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func TestStore_Observer(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestStore(t, WithObserver(obs))
	ctx := context.Background()

	obj, _ := s.Create(ctx, map[string]any{"name": "Bell"})
	s.Update(ctx, obj.ResourceID(), map[string]any{"name": "Big bell"})
	s.Delete(ctx, obj.ResourceID())
	s.Delete(ctx, obj.ResourceID())

	want := []string{"created item Bell", "updated item Big bell", "deleted item"}
	if len(obs.events) != len(want) {
		t.Fatalf("events = %v, want %v", obs.events, want)
	}
	for i := range want {
		if obs.events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, obs.events[i], want[i])
		}
	}
}

package schema

import (
	"sort"

	"github.com/artpar/restmodel/core/fault"
)

// IDField is the external name of the implicit identifier.
const IDField = "id"

// Schema is the ordered set of attributes of one resource type.
// It is built during configuration and immutable once sealed.
type Schema struct {
	name    string
	factory Factory
	attrs   []Attribute
	index   map[string]int
	sealed  bool
}

// New creates an empty schema for the named resource type.
func New(name string, factory Factory) *Schema {
	return &Schema{
		name:    name,
		factory: factory,
		index:   make(map[string]int),
	}
}

// Name returns the resource type name.
func (s *Schema) Name() string {
	return s.name
}

// Define appends an attribute. Attributes are persisted and writable
// unless options say otherwise.
func (s *Schema) Define(name string, t Type, opts ...Option) error {
	if s.sealed {
		return fault.New(fault.KindValidation, "schema %q is sealed", s.name)
	}
	if name == "" {
		return fault.New(fault.KindValidation, "attribute name is required")
	}
	if name == IDField {
		return fault.New(fault.KindDuplicateAttribute, "attribute %q is implicit", IDField).OnField(name)
	}
	if !t.Valid() {
		return fault.New(fault.KindValidation, "unknown attribute type %q", t).OnField(name)
	}
	if _, exists := s.index[name]; exists {
		return fault.New(fault.KindDuplicateAttribute, "attribute %q already defined on %s", name, s.name).OnField(name)
	}

	attr := Attribute{Name: name, Source: name, Type: t, Persist: true}
	for _, opt := range opts {
		opt(&attr)
	}

	s.index[name] = len(s.attrs)
	s.attrs = append(s.attrs, attr)
	return nil
}

// MustDefine is like Define but panics on error. Meant for package-level
// schema construction.
func (s *Schema) MustDefine(name string, t Type, opts ...Option) *Schema {
	if err := s.Define(name, t, opts...); err != nil {
		panic(err)
	}
	return s
}

// Seal makes the schema immutable.
func (s *Schema) Seal() *Schema {
	s.sealed = true
	return s
}

// Sealed reports whether the schema is immutable.
func (s *Schema) Sealed() bool {
	return s.sealed
}

// Attributes returns the attributes in definition order.
func (s *Schema) Attributes() []Attribute {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// Attribute returns the named attribute.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	i, ok := s.index[name]
	if !ok {
		return Attribute{}, false
	}
	return s.attrs[i], true
}

// PersistedNames returns the names of stored attributes in order.
func (s *Schema) PersistedNames() []string {
	var names []string
	for _, a := range s.attrs {
		if a.Persist {
			names = append(names, a.Name)
		}
	}
	return names
}

// WritableNames returns the names a payload may set, in order.
func (s *Schema) WritableNames() []string {
	var names []string
	for _, a := range s.attrs {
		if a.Writable() {
			names = append(names, a.Name)
		}
	}
	return names
}

// NewObject returns an empty domain object.
func (s *Schema) NewObject() Object {
	return s.factory()
}

// Serialize maps every attribute, persisted or virtual, to its value on obj.
// The id comes first.
func (s *Schema) Serialize(obj Object) (Document, error) {
	doc := newDocument(len(s.attrs) + 1)
	doc.set(IDField, obj.ResourceID())

	for _, a := range s.attrs {
		v, err := a.Read(obj)
		if err != nil {
			return Document{}, err
		}
		doc.set(a.Name, v)
	}
	return doc, nil
}

// Deserialize filters an inbound payload to the attributes a caller may set
// and coerces their values. Unknown keys and the id are dropped. Any key
// naming a readonly attribute fails the whole payload.
func (s *Schema) Deserialize(payload map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if a, ok := s.Attribute(k); ok && a.Readonly {
			return nil, fault.New(fault.KindReadonlyWrite, "attribute %q is readonly", k).OnField(k)
		}
	}

	values := make(map[string]any, len(payload))
	for _, k := range keys {
		a, ok := s.Attribute(k)
		if !ok || !a.Writable() {
			continue
		}
		v, err := a.Type.Coerce(payload[k])
		if err != nil {
			return nil, fieldError(err, k)
		}
		values[k] = v
	}
	return values, nil
}

// Writable strips the id and readonly attributes from a serialized document,
// leaving a payload Deserialize accepts.
func (s *Schema) Writable(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if a, ok := s.Attribute(k); ok && a.Writable() {
			out[k] = v
		}
	}
	return out
}

// Apply writes deserialized values to obj in schema order.
func (s *Schema) Apply(obj Object, values map[string]any) error {
	for _, a := range s.attrs {
		v, ok := values[a.Name]
		if !ok {
			continue
		}
		if err := a.Write(obj, v); err != nil {
			return err
		}
	}
	return nil
}

// Persisted reads the stored attributes of obj.
func (s *Schema) Persisted(obj Object) (map[string]any, error) {
	values := make(map[string]any, len(s.attrs))
	for _, a := range s.attrs {
		if !a.Persist {
			continue
		}
		v, err := a.Read(obj)
		if err != nil {
			return nil, err
		}
		values[a.Name] = v
	}
	return values, nil
}

// Hydrate builds a domain object from stored values.
func (s *Schema) Hydrate(id string, values map[string]any) (Object, error) {
	obj := s.factory()
	obj.AssignID(id)

	for _, a := range s.attrs {
		if !a.Persist {
			continue
		}
		v, ok := values[a.Name]
		if !ok {
			continue
		}
		if err := a.Write(obj, v); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

// Filter validates and coerces a filter over persisted attributes.
// Unknown or virtual keys are rejected.
func (s *Schema) Filter(filter map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(filter))
	for k, v := range filter {
		if k == IDField {
			id, ok := v.(string)
			if !ok {
				return nil, fault.New(fault.KindValidation, "filter %q must be a string", k).OnField(k)
			}
			out[k] = id
			continue
		}

		a, ok := s.Attribute(k)
		if !ok || !a.Persist {
			return nil, fault.New(fault.KindValidation, "cannot filter on %q", k).OnField(k)
		}
		cv, err := a.Type.Coerce(v)
		if err != nil {
			return nil, fieldError(err, k)
		}
		out[k] = cv
	}
	return out, nil
}

// Matches reports whether stored values satisfy a coerced filter.
func (s *Schema) Matches(id string, values map[string]any, filter map[string]any) bool {
	for k, want := range filter {
		if k == IDField {
			if id != want {
				return false
			}
			continue
		}
		a, _ := s.Attribute(k)
		if !a.Type.Equal(values[k], want) {
			return false
		}
	}
	return true
}

func fieldError(err error, field string) error {
	if fe, ok := err.(*fault.Error); ok {
		return fe.OnField(field)
	}
	return fault.Wrap(fault.KindValidation, err, "invalid value").OnField(field)
}

package schema

// Record is a map-backed domain object for resources declared without a
// Go type.
type Record struct {
	ID     string
	Values map[string]any
}

// NewRecord returns an empty record. It is a Factory.
func NewRecord() Object {
	return &Record{Values: make(map[string]any)}
}

// ResourceID returns the record id.
func (r *Record) ResourceID() string { return r.ID }

// AssignID sets the record id.
func (r *Record) AssignID(id string) { r.ID = id }

// RecordField returns accessors reading and writing one key of a Record.
func RecordField(name string) (Getter, Setter) {
	return Accessor(
		func(r *Record) any { return r.Values[name] },
		func(r *Record, v any) error {
			r.Values[name] = v
			return nil
		},
	)
}

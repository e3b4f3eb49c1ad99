// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/restmodel/core/schema"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
// Implementations must be safe for concurrent use and never repeat.
type IDGenerator interface {
	New() string
}

// Hasher hashes and verifies secrets such as API keys.
type Hasher interface {
	Hash(plaintext string) ([]byte, error)
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// Record is the stored form of one resource instance: its id and the
// canonical values of its persisted attributes.
type Record struct {
	ID     string
	Values map[string]any
}

// Clone returns a copy that shares no maps or slices with r, including
// those nested inside json values.
func (r Record) Clone() Record {
	values := make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		values[k] = schema.CloneValue(v)
	}
	return Record{ID: r.ID, Values: values}
}

// RecordStore persists records for any number of resource schemas.
// Every method is atomic on a single record: readers never observe a
// partially applied Insert or Replace.
type RecordStore interface {
	// Migrate prepares storage for a schema. It is called once per
	// resource during configuration.
	Migrate(ctx context.Context, s *schema.Schema) error

	// Insert stores a new record. The id must not exist.
	Insert(ctx context.Context, resource string, rec Record) error

	// Fetch returns a record by id, or a not_found fault.
	Fetch(ctx context.Context, resource string, id string) (Record, error)

	// List returns the records matching every key of filter, in creation
	// order. Filter values are already coerced to attribute types.
	List(ctx context.Context, resource string, filter map[string]any) ([]Record, error)

	// Replace overwrites the values of an existing record, or returns a
	// not_found fault.
	Replace(ctx context.Context, resource string, rec Record) error

	// Remove deletes a record, or returns a not_found fault.
	Remove(ctx context.Context, resource string, id string) error

	// Close releases the storage.
	Close() error
}

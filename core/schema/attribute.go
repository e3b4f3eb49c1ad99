package schema

import (
	"fmt"

	"github.com/artpar/restmodel/core/fault"
)

// Object is a domain object that can be stored. The id is assigned once
// by the store on creation.
type Object interface {
	ResourceID() string
	AssignID(id string)
}

// Factory returns a new, empty domain object.
type Factory func() Object

// Getter reads an attribute value from a domain object.
type Getter func(obj Object) (any, error)

// Setter writes an attribute value to a domain object.
// The value has already been coerced to the attribute's type.
type Setter func(obj Object, value any) error

// Attribute describes one externally visible field of a resource type.
type Attribute struct {
	// Name is the external name used in payloads and filters.
	Name string

	// Source is the internal name on the domain object, for documentation
	// and storage column naming. Defaults to Name.
	Source string

	Type Type

	// Persist marks the attribute as stored. Virtual attributes are
	// computed from the domain object.
	Persist bool

	// Readonly attributes are rejected on write.
	Readonly bool

	Description string

	get Getter
	set Setter
}

// Writable reports whether a payload may set the attribute.
func (a Attribute) Writable() bool {
	return !a.Readonly && a.set != nil
}

// Read returns the canonical value of the attribute on obj.
func (a Attribute) Read(obj Object) (any, error) {
	if a.get == nil {
		return nil, fault.New(fault.KindAttributeAccess, "attribute %q has no source accessor", a.Name).OnField(a.Name)
	}
	raw, err := a.get(obj)
	if err != nil {
		return nil, fault.Wrap(fault.KindAttributeAccess, err, "read attribute %q", a.Name).OnField(a.Name)
	}
	v, err := a.Type.Coerce(raw)
	if err != nil {
		return nil, fault.Wrap(fault.KindAttributeAccess, err, "attribute %q returned %T", a.Name, raw).OnField(a.Name)
	}
	return v, nil
}

// Write sets the attribute on obj. value must already be coerced.
func (a Attribute) Write(obj Object, value any) error {
	if a.set == nil {
		return fault.New(fault.KindAttributeAccess, "attribute %q has no setter", a.Name).OnField(a.Name)
	}
	if err := a.set(obj, value); err != nil {
		if fault.KindOf(err) != fault.KindInternal {
			return err
		}
		return fault.Wrap(fault.KindValidation, err, "set attribute %q", a.Name).OnField(a.Name)
	}
	return nil
}

// Option configures an attribute at definition time.
type Option func(*Attribute)

// Source sets the internal name of the attribute.
func Source(name string) Option {
	return func(a *Attribute) { a.Source = name }
}

// Virtual marks the attribute as computed rather than stored.
func Virtual() Option {
	return func(a *Attribute) { a.Persist = false }
}

// Readonly rejects the attribute on every write path.
func Readonly() Option {
	return func(a *Attribute) { a.Readonly = true }
}

// Describe attaches documentation to the attribute.
func Describe(text string) Option {
	return func(a *Attribute) { a.Description = text }
}

// Get sets the attribute's getter.
func Get(g Getter) Option {
	return func(a *Attribute) { a.get = g }
}

// Set sets the attribute's setter.
func Set(s Setter) Option {
	return func(a *Attribute) { a.set = s }
}

// Accessor builds a type-checked getter/setter pair for domain type *T.
// set may be nil for computed attributes.
func Accessor[T any](get func(*T) any, set func(*T, any) error) (Getter, Setter) {
	getter := func(obj Object) (any, error) {
		t, ok := any(obj).(*T)
		if !ok {
			return nil, fmt.Errorf("object is %T, want %T", obj, (*T)(nil))
		}
		return get(t), nil
	}

	if set == nil {
		return getter, nil
	}

	setter := func(obj Object, v any) error {
		t, ok := any(obj).(*T)
		if !ok {
			return fault.New(fault.KindAttributeAccess, "object is %T, want %T", obj, (*T)(nil))
		}
		return set(t, v)
	}
	return getter, setter
}

package store

import (
	"context"
	"fmt"

	"github.com/artpar/restmodel/core/fault"
	"github.com/artpar/restmodel/core/schema"
)

// Default method names.
const (
	MethodAll     = "all"
	MethodCreate  = "create"
	MethodGet     = "get"
	MethodReplace = "replace"
	MethodUpdate  = "update"
	MethodDelete  = "delete"
)

// Args are the merged keyword arguments of a dispatched call.
type Args map[string]any

// String returns a required string argument.
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", fault.New(fault.KindValidation, "missing argument %q", name).OnField(name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fault.New(fault.KindValidation, "argument %q must be a string", name).OnField(name)
	}
	return s, nil
}

// Without returns a copy of a without the named keys.
func (a Args) Without(names ...string) map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		out[k] = v
	}
	for _, n := range names {
		delete(out, n)
	}
	return out
}

// Func is the body of a store method. It returns a schema.Object, a slice
// of them, any other JSON-encodable value, or nil for no content.
type Func func(ctx context.Context, args Args) (any, error)

// Method is a named dispatch target.
type Method struct {
	// Params lists the argument names the method accepts. The router drops
	// every other argument. A nil Params receives all arguments.
	Params []string

	Call Func

	Description string
}

// installDefaults populates the six CRUD methods.
func (s *Store) installDefaults() {
	attrs := make([]string, 0)
	for _, a := range s.schema.Attributes() {
		attrs = append(attrs, a.Name)
	}
	withID := append([]string{schema.IDField}, attrs...)

	s.add(MethodAll, Method{
		Params:      append([]string{schema.IDField}, s.schema.PersistedNames()...),
		Description: "List instances matching the given attribute values",
		Call: func(ctx context.Context, args Args) (any, error) {
			return s.All(ctx, args)
		},
	})
	s.add(MethodCreate, Method{
		Params:      attrs,
		Description: "Create an instance",
		Call: func(ctx context.Context, args Args) (any, error) {
			return s.Create(ctx, args)
		},
	})
	s.add(MethodGet, Method{
		Params:      []string{schema.IDField},
		Description: "Get an instance by id",
		Call: func(ctx context.Context, args Args) (any, error) {
			id, err := args.String(schema.IDField)
			if err != nil {
				return nil, err
			}
			return s.Get(ctx, id)
		},
	})
	s.add(MethodReplace, Method{
		Params:      withID,
		Description: "Replace all writable attributes of an instance",
		Call: func(ctx context.Context, args Args) (any, error) {
			id, err := args.String(schema.IDField)
			if err != nil {
				return nil, err
			}
			return s.Replace(ctx, id, args.Without(schema.IDField))
		},
	})
	s.add(MethodUpdate, Method{
		Params:      withID,
		Description: "Update some attributes of an instance",
		Call: func(ctx context.Context, args Args) (any, error) {
			id, err := args.String(schema.IDField)
			if err != nil {
				return nil, err
			}
			return s.Update(ctx, id, args.Without(schema.IDField))
		},
	})
	s.add(MethodDelete, Method{
		Params:      []string{schema.IDField},
		Description: "Delete an instance",
		Call: func(ctx context.Context, args Args) (any, error) {
			id, err := args.String(schema.IDField)
			if err != nil {
				return nil, err
			}
			return nil, s.Delete(ctx, id)
		},
	})
}

func (s *Store) add(name string, m Method) {
	if _, exists := s.methods[name]; !exists {
		s.order = append(s.order, name)
	}
	s.methods[name] = m
}

// Method returns a dispatch target by name.
func (s *Store) Method(name string) (Method, bool) {
	m, ok := s.methods[name]
	return m, ok
}

// Methods returns the method names in registration order.
func (s *Store) Methods() []string {
	return append([]string(nil), s.order...)
}

// Override replaces the body of an existing method, keeping its parameters.
// Like the method table itself, it belongs to configuration time.
func (s *Store) Override(name string, fn Func) error {
	m, ok := s.methods[name]
	if !ok {
		return fmt.Errorf("%s has no method %q to override", s.Name(), name)
	}
	m.Call = fn
	s.methods[name] = m
	return nil
}

// Extend adds a new method.
func (s *Store) Extend(name string, m Method) error {
	if name == "" || m.Call == nil {
		return fmt.Errorf("%s: method needs a name and a body", s.Name())
	}
	if _, exists := s.methods[name]; exists {
		return fmt.Errorf("%s already has method %q", s.Name(), name)
	}
	s.add(name, m)
	return nil
}

// Disable overrides the named methods with NotImplemented.
func (s *Store) Disable(names ...string) error {
	for _, name := range names {
		if err := s.Override(name, NotImplemented(s.Name(), name)); err != nil {
			return err
		}
	}
	return nil
}

// Call invokes a method by name with already-filtered arguments.
func (s *Store) Call(ctx context.Context, name string, args Args) (any, error) {
	m, ok := s.methods[name]
	if !ok {
		return nil, fault.New(fault.KindNotImplemented, "%s does not support %q", s.Name(), name)
	}
	return m.Call(ctx, args)
}

// NotImplemented returns a method body that always fails with a
// not_implemented fault. It is the way to switch off a default operation.
func NotImplemented(resource, method string) Func {
	return func(context.Context, Args) (any, error) {
		return nil, fault.New(fault.KindNotImplemented, "%s does not support %s", resource, method)
	}
}

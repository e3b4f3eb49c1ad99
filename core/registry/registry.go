// Package registry binds resource names to their schema and store.
// Resources are registered during configuration; Freeze ends that phase and
// the registry is read-only while serving.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/restmodel/core/fault"
	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/core/store"
)

// MethodSchema is the built-in dispatch target returning the schema
// introspection of a resource.
const MethodSchema = "schema"

// Resource is a domain type bound to a schema and a store.
type Resource struct {
	Name   string
	Path   string
	Schema *schema.Schema
	Store  *store.Store
}

// Method returns a dispatch target: the store method of that name or the
// built-in schema target.
func (r *Resource) Method(name string) (store.Method, bool) {
	if m, ok := r.Store.Method(name); ok {
		return m, true
	}
	if name == MethodSchema {
		return store.Method{
			Params:      []string{},
			Description: "Describe the attributes of " + r.Name,
			Call: func(context.Context, store.Args) (any, error) {
				return r.Schema.Introspect(), nil
			},
		}, true
	}
	return store.Method{}, false
}

// Registry manages registered resources and their path claims.
type Registry struct {
	mu sync.RWMutex

	// resources by name
	resources map[string]*Resource

	// paths to resource names
	paths map[string]string

	order  []string
	frozen bool
}

// New creates a new registry.
func New() *Registry {
	return &Registry{
		resources: make(map[string]*Resource),
		paths:     make(map[string]string),
	}
}

// Register binds a store to the registry. The schema and name come from the
// store; path defaults to "/" plus the pluralized name.
func (r *Registry) Register(s *store.Store, path string) (*Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return nil, fmt.Errorf("registry is frozen; cannot register %q", s.Name())
	}

	name := s.Name()
	if _, exists := r.resources[name]; exists {
		return nil, fault.New(fault.KindDuplicateResource, "resource %q already registered", name)
	}

	if path == "" {
		path = "/" + Pluralize(name)
	}
	path = NormalizePath(path)
	if existing, exists := r.paths[path]; exists {
		return nil, fault.New(fault.KindDuplicateResource, "path %s already claimed by resource %q", path, existing)
	}

	sch := s.Schema()
	if !sch.Sealed() {
		sch.Seal()
	}

	res := &Resource{Name: name, Path: path, Schema: sch, Store: s}
	r.resources[name] = res
	r.paths[path] = name
	r.order = append(r.order, name)
	return res, nil
}

// Freeze ends the configuration phase.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns a registered resource by name.
func (r *Registry) Lookup(name string) (*Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[name]
	if !ok {
		return nil, fault.New(fault.KindUnknownResource, "unknown resource %q", name)
	}
	return res, nil
}

// ByPath returns the resource mounted at exactly path.
func (r *Registry) ByPath(path string) (*Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.paths[NormalizePath(path)]
	if !ok {
		return nil, false
	}
	return r.resources[name], true
}

// List returns all resources in registration order.
func (r *Registry) List() []*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Resource, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.resources[name])
	}
	return out
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizePath ensures a leading slash and strips trailing slashes.
func NormalizePath(path string) string {
	path = "/" + strings.Trim(path, "/")
	return path
}

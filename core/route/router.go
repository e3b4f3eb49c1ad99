// Package route dispatches requests to resource methods.
//
// Every resource owns an ordered list of routes. Dispatch picks the first
// route, in registration order, whose verb matches and whose pattern
// matches the path. Register specific patterns before general ones: a
// route added after "/:id" for the same verb never sees single-segment
// paths.
package route

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/artpar/restmodel/core/fault"
	"github.com/artpar/restmodel/core/registry"
	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/core/store"
)

// Request is the transport-neutral description of an inbound call.
// Path is relative to the resource for Dispatch and absolute for Serve.
type Request struct {
	Verb  string
	Path  string
	Query url.Values
	Body  map[string]any
}

// Response is the status and body for the transport to write.
// A nil Body means no content.
type Response struct {
	Status int
	Body   any
}

// Observer is told about every dispatch. method is empty when no route
// matched.
type Observer interface {
	Dispatched(resource, method string, status int, elapsed time.Duration)
}

// Router holds the route tables of every mounted resource.
type Router struct {
	mu sync.RWMutex

	faults    *fault.Table
	observers []Observer

	resources map[string]*registry.Resource
	tables    map[string][]compiledRoute
	mounts    []mount
	frozen    bool
}

type mount struct {
	prefix   string
	resource string
}

// Option configures a Router.
type Option func(*Router)

// WithFaultTable replaces the process-wide status table.
func WithFaultTable(t *fault.Table) Option {
	return func(r *Router) { r.faults = t }
}

// WithObserver adds a dispatch observer.
func WithObserver(o Observer) Option {
	return func(r *Router) { r.observers = append(r.observers, o) }
}

// New creates an empty router.
func New(opts ...Option) *Router {
	r := &Router{
		faults:    fault.Default(),
		resources: make(map[string]*registry.Resource),
		tables:    make(map[string][]compiledRoute),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount makes a resource reachable at its path and installs the default
// route table. Routes for targets the resource lacks are skipped.
func (r *Router) Mount(res *registry.Resource) error {
	r.mu.Lock()
	if r.frozen {
		r.mu.Unlock()
		return fmt.Errorf("router is frozen; cannot mount %q", res.Name)
	}
	if _, exists := r.resources[res.Name]; exists {
		r.mu.Unlock()
		return fault.New(fault.KindDuplicateResource, "resource %q already mounted", res.Name)
	}
	r.resources[res.Name] = res
	r.mounts = append(r.mounts, mount{prefix: registry.NormalizePath(res.Path), resource: res.Name})
	sort.SliceStable(r.mounts, func(i, j int) bool {
		return len(r.mounts[i].prefix) > len(r.mounts[j].prefix)
	})
	r.mu.Unlock()

	for _, rt := range DefaultTable() {
		if _, ok := res.Method(rt.Method); !ok {
			continue
		}
		if err := r.Handle(res.Name, rt.Verb, rt.Pattern, rt.Method, rt.Status); err != nil {
			return err
		}
	}
	return nil
}

// Handle appends a route to a mounted resource. A zero status means 200.
func (r *Router) Handle(resource, verb, pattern, method string, status int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("router is frozen; cannot add %s %s", verb, pattern)
	}
	res, ok := r.resources[resource]
	if !ok {
		return fault.New(fault.KindUnknownResource, "resource %q is not mounted", resource)
	}
	if _, ok := res.Method(method); !ok {
		return fmt.Errorf("%s has no method %q for %s %s", resource, method, verb, pattern)
	}

	regex, err := Compile(pattern)
	if err != nil {
		return fmt.Errorf("compile %s: %w", pattern, err)
	}
	if status == 0 {
		status = http.StatusOK
	}

	r.tables[resource] = append(r.tables[resource], compiledRoute{
		Route: Route{Verb: strings.ToUpper(verb), Pattern: pattern, Method: method, Status: status},
		regex: regex,
	})
	return nil
}

// Freeze ends the configuration phase.
func (r *Router) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Routes returns the routes of a resource in priority order.
func (r *Router) Routes(resource string) []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table := r.tables[resource]
	out := make([]Route, len(table))
	for i, c := range table {
		out[i] = c.Route
	}
	return out
}

// Prefixes returns the mount paths of all resources, longest first.
func (r *Router) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.mounts))
	for i, m := range r.mounts {
		out[i] = m.prefix
	}
	return out
}

// Resolve splits an absolute path into the mounted resource with the
// longest matching prefix and the path relative to it.
func (r *Router) Resolve(path string) (resource, rel string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	path = normalize(path)
	for _, m := range r.mounts {
		if m.prefix == "/" {
			return m.resource, path, true
		}
		if path == m.prefix {
			return m.resource, "/", true
		}
		if strings.HasPrefix(path, m.prefix+"/") {
			return m.resource, path[len(m.prefix):], true
		}
	}
	return "", "", false
}

// Serve resolves an absolute path and dispatches it.
func (r *Router) Serve(ctx context.Context, req Request) Response {
	resource, rel, ok := r.Resolve(req.Path)
	if !ok {
		err := fault.New(fault.KindRouteNotFound, "no resource at %s", req.Path)
		resp := r.failure(err)
		r.observe("", "", resp.Status, 0)
		return resp
	}
	req.Path = rel
	return r.Dispatch(ctx, resource, req)
}

// Dispatch runs the first matching route of resource. Path captures, query
// values and body values are merged in that order, later sources winning.
// Only the parameters the target declares are passed on.
func (r *Router) Dispatch(ctx context.Context, resource string, req Request) Response {
	start := time.Now()

	r.mu.RLock()
	res := r.resources[resource]
	table := r.tables[resource]
	r.mu.RUnlock()

	if res == nil {
		resp := r.failure(fault.New(fault.KindUnknownResource, "unknown resource %q", resource))
		r.observe(resource, "", resp.Status, time.Since(start))
		return resp
	}

	path := normalize(req.Path)
	verb := strings.ToUpper(req.Verb)

	for _, rt := range table {
		if rt.Verb != verb {
			continue
		}
		params := rt.captures(path)
		if params == nil {
			continue
		}

		resp := r.invoke(ctx, res, rt.Route, merge(params, req.Query, req.Body))
		r.observe(resource, rt.Method, resp.Status, time.Since(start))
		return resp
	}

	resp := r.failure(fault.New(fault.KindRouteNotFound, "no route for %s %s on %s", verb, path, resource))
	r.observe(resource, "", resp.Status, time.Since(start))
	return resp
}

func (r *Router) invoke(ctx context.Context, res *registry.Resource, rt Route, args store.Args) Response {
	m, ok := res.Method(rt.Method)
	if !ok {
		return r.failure(fault.New(fault.KindNotImplemented, "%s does not support %s", res.Name, rt.Method))
	}

	result, err := m.Call(ctx, filterArgs(args, m.Params))
	if err != nil {
		return r.failure(err)
	}

	body, err := render(res.Schema, result)
	if err != nil {
		return r.failure(err)
	}
	if rt.Status == http.StatusNoContent {
		body = nil
	}
	return Response{Status: rt.Status, Body: body}
}

func (r *Router) failure(err error) Response {
	status, body := r.faults.Translate(err)
	return Response{Status: status, Body: body}
}

func (r *Router) observe(resource, method string, status int, elapsed time.Duration) {
	for _, o := range r.observers {
		o.Dispatched(resource, method, status, elapsed)
	}
}

func merge(path map[string]string, query url.Values, body map[string]any) store.Args {
	args := make(store.Args, len(path)+len(query)+len(body))
	for k, v := range path {
		args[k] = v
	}
	for k, vs := range query {
		if len(vs) > 0 {
			args[k] = vs[0]
		}
	}
	for k, v := range body {
		args[k] = v
	}
	return args
}

// filterArgs keeps the declared parameters. nil params keeps everything.
func filterArgs(args store.Args, params []string) store.Args {
	if params == nil {
		return args
	}
	out := make(store.Args, len(params))
	for _, p := range params {
		if v, ok := args[p]; ok {
			out[p] = v
		}
	}
	return out
}

// render converts a method result to a response body.
func render(sch *schema.Schema, result any) (any, error) {
	switch v := result.(type) {
	case nil:
		return nil, nil
	case schema.Object:
		return sch.Serialize(v)
	case []schema.Object:
		docs := make([]schema.Document, 0, len(v))
		for _, obj := range v {
			doc, err := sch.Serialize(obj)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	default:
		return v, nil
	}
}

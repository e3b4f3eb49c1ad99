// Package openapi generates an OpenAPI 3.0 document from the registered
// resources and their route tables.
package openapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/artpar/restmodel/core/registry"
	"github.com/artpar/restmodel/core/route"
	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/core/store"
)

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI    string                `json:"openapi"`
	Info       Info                  `json:"info"`
	Servers    []Server              `json:"servers,omitempty"`
	Paths      map[string]PathItem   `json:"paths"`
	Components Components            `json:"components"`
	Tags       []Tag                 `json:"tags,omitempty"`
	Security   []SecurityRequirement `json:"security,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server represents a server URL.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string            `json:"tags,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	OperationID string              `json:"operationId,omitempty"`
	Parameters  []Parameter         `json:"parameters,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Parameter represents an API parameter.
type Parameter struct {
	Name     string  `json:"name"`
	In       string  `json:"in"`
	Required bool    `json:"required,omitempty"`
	Schema   *Schema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Required bool                 `json:"required,omitempty"`
	Content  map[string]MediaType `json:"content"`
}

// Response represents an API response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema represents a JSON Schema.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Format      string             `json:"format,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	ReadOnly    bool               `json:"readOnly,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
}

// Components contains reusable schemas.
type Components struct {
	Schemas         map[string]*Schema        `json:"schemas,omitempty"`
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes,omitempty"`
}

// SecurityScheme defines an authentication method.
type SecurityScheme struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	In   string `json:"in,omitempty"`
}

// SecurityRequirement specifies required security schemes.
type SecurityRequirement map[string][]string

// Tag provides metadata for a group of operations.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RouteLister exposes the route tables of mounted resources.
type RouteLister interface {
	Routes(resource string) []route.Route
}

// Generator builds a Spec.
type Generator struct {
	resources []*registry.Resource
	routes    RouteLister
	info      Info
	servers   []Server
	apiKey    string
}

// NewGenerator creates a generator for the given resources.
func NewGenerator(resources []*registry.Resource, routes RouteLister) *Generator {
	return &Generator{
		resources: resources,
		routes:    routes,
		info: Info{
			Title:       "restmodel API",
			Version:     "1.0.0",
			Description: "Generated from resource schemas",
		},
	}
}

// SetInfo sets the API info.
func (g *Generator) SetInfo(info Info) {
	g.info = info
}

// AddServer adds a server URL.
func (g *Generator) AddServer(url, description string) {
	g.servers = append(g.servers, Server{URL: url, Description: description})
}

// RequireAPIKey documents an API key header on every operation.
func (g *Generator) RequireAPIKey(header string) {
	g.apiKey = header
}

// Generate creates the OpenAPI specification.
func (g *Generator) Generate() *Spec {
	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    g.info,
		Servers: g.servers,
		Paths:   make(map[string]PathItem),
		Components: Components{
			Schemas: map[string]*Schema{
				"Error": errorSchema(),
			},
		},
	}

	if g.apiKey != "" {
		spec.Components.SecuritySchemes = map[string]SecurityScheme{
			"apiKey": {Type: "apiKey", In: "header", Name: g.apiKey},
		}
		spec.Security = []SecurityRequirement{{"apiKey": {}}}
	}

	for _, res := range g.resources {
		g.addResource(spec, res)
	}

	sort.Slice(spec.Tags, func(i, j int) bool { return spec.Tags[i].Name < spec.Tags[j].Name })
	return spec
}

func (g *Generator) addResource(spec *Spec, res *registry.Resource) {
	title := componentName(res.Name)
	spec.Tags = append(spec.Tags, Tag{Name: res.Name})
	spec.Components.Schemas[title] = instanceSchema(res.Schema)
	spec.Components.Schemas[title+"Input"] = inputSchema(res.Schema)

	for _, rt := range g.routes.Routes(res.Name) {
		path, params, ok := openAPIPath(res.Path, rt.Pattern)
		if !ok {
			continue
		}

		op := &Operation{
			Tags:        []string{res.Name},
			Summary:     summary(res, rt.Method),
			OperationID: res.Name + "_" + rt.Method,
			Responses:   responses(title, rt),
		}
		for _, p := range params {
			op.Parameters = append(op.Parameters, Parameter{Name: p, In: "path", Required: true, Schema: &Schema{Type: "string"}})
		}

		switch rt.Method {
		case store.MethodAll:
			for _, name := range res.Schema.PersistedNames() {
				a, _ := res.Schema.Attribute(name)
				op.Parameters = append(op.Parameters, Parameter{Name: name, In: "query", Schema: typeSchema(a.Type)})
			}
		case store.MethodCreate, store.MethodReplace, store.MethodUpdate:
			op.RequestBody = &RequestBody{
				Required: rt.Method != store.MethodUpdate,
				Content:  jsonContent(&Schema{Ref: "#/components/schemas/" + title + "Input"}),
			}
		}

		item := spec.Paths[path]
		switch rt.Verb {
		case http.MethodGet:
			item.Get = firstOf(item.Get, op)
		case http.MethodPost:
			item.Post = firstOf(item.Post, op)
		case http.MethodPut:
			item.Put = firstOf(item.Put, op)
		case http.MethodPatch:
			item.Patch = firstOf(item.Patch, op)
		case http.MethodDelete:
			item.Delete = firstOf(item.Delete, op)
		default:
			continue
		}
		spec.Paths[path] = item
	}
}

// firstOf keeps the earlier registered operation, which is the one that
// wins dispatch.
func firstOf(existing, op *Operation) *Operation {
	if existing != nil {
		return existing
	}
	return op
}

// openAPIPath joins the resource path with a route pattern, turning :name
// segments into {name}. Raw regular expression patterns are skipped.
func openAPIPath(base, pattern string) (string, []string, bool) {
	if strings.HasPrefix(pattern, "^") {
		return "", nil, false
	}

	var params []string
	segments := strings.Split(strings.Trim(pattern, "/"), "/")
	out := strings.TrimRight(base, "/")
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, ":") {
			params = append(params, seg[1:])
			seg = "{" + seg[1:] + "}"
		}
		out += "/" + seg
	}
	if out == "" {
		out = "/"
	}
	return out, params, true
}

func summary(res *registry.Resource, method string) string {
	if m, ok := res.Method(method); ok && m.Description != "" {
		return m.Description
	}
	return fmt.Sprintf("%s %s", method, res.Name)
}

func responses(title string, rt route.Route) map[string]Response {
	code := fmt.Sprint(rt.Status)
	ok := Response{Description: http.StatusText(rt.Status)}

	switch rt.Method {
	case registry.MethodSchema:
		ok.Content = jsonContent(&Schema{Type: "object"})
	case store.MethodAll:
		ok.Content = jsonContent(&Schema{Type: "array", Items: &Schema{Ref: "#/components/schemas/" + title}})
	case store.MethodDelete:
	default:
		ok.Content = jsonContent(&Schema{Ref: "#/components/schemas/" + title})
	}
	if rt.Status == http.StatusNoContent {
		ok.Content = nil
	}

	errResp := Response{
		Description: "Error",
		Content:     jsonContent(&Schema{Ref: "#/components/schemas/Error"}),
	}
	return map[string]Response{
		code:      ok,
		"default": errResp,
	}
}

func instanceSchema(sch *schema.Schema) *Schema {
	out := &Schema{Type: "object", Properties: map[string]*Schema{
		schema.IDField: {Type: "string", ReadOnly: true},
	}}
	for _, a := range sch.Attributes() {
		s := typeSchema(a.Type)
		s.Description = a.Description
		s.ReadOnly = a.Readonly
		s.Nullable = true
		out.Properties[a.Name] = s
	}
	return out
}

func inputSchema(sch *schema.Schema) *Schema {
	out := &Schema{Type: "object", Properties: map[string]*Schema{}}
	for _, a := range sch.Attributes() {
		if !a.Writable() {
			continue
		}
		s := typeSchema(a.Type)
		s.Description = a.Description
		s.Nullable = true
		out.Properties[a.Name] = s
	}
	return out
}

func errorSchema() *Schema {
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"error": {
				Type: "object",
				Properties: map[string]*Schema{
					"kind":    {Type: "string"},
					"message": {Type: "string"},
					"field":   {Type: "string"},
				},
			},
		},
	}
}

// typeSchema maps attribute types to JSON Schema.
func typeSchema(t schema.Type) *Schema {
	switch t {
	case schema.TypeBoolean:
		return &Schema{Type: "boolean"}
	case schema.TypeNumber:
		return &Schema{Type: "number"}
	case schema.TypeInteger:
		return &Schema{Type: "integer", Format: "int64"}
	case schema.TypeDate:
		return &Schema{Type: "string", Format: "date-time"}
	case schema.TypeUUID:
		return &Schema{Type: "string", Format: "uuid"}
	case schema.TypeJSON:
		return &Schema{}
	default:
		return &Schema{Type: "string"}
	}
}

func jsonContent(s *Schema) map[string]MediaType {
	return map[string]MediaType{"application/json": {Schema: s}}
}

// componentName turns "chore_list" into "ChoreList".
func componentName(name string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' }) {
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

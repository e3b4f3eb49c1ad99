package route

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Route binds a verb and a path pattern to a dispatch target.
type Route struct {
	Verb    string
	Pattern string
	Method  string
	Status  int
}

// DefaultTable returns the CRUD routes in priority order. The schema route
// comes before /:id so that "schema" is never read as an id.
func DefaultTable() []Route {
	return []Route{
		{Verb: http.MethodGet, Pattern: "/schema", Method: "schema", Status: http.StatusOK},
		{Verb: http.MethodGet, Pattern: "/", Method: "all", Status: http.StatusOK},
		{Verb: http.MethodPost, Pattern: "/", Method: "create", Status: http.StatusCreated},
		{Verb: http.MethodGet, Pattern: "/:id", Method: "get", Status: http.StatusOK},
		{Verb: http.MethodPut, Pattern: "/:id", Method: "replace", Status: http.StatusOK},
		{Verb: http.MethodPatch, Pattern: "/:id", Method: "update", Status: http.StatusOK},
		{Verb: http.MethodDelete, Pattern: "/:id", Method: "delete", Status: http.StatusNoContent},
	}
}

type compiledRoute struct {
	Route
	regex *regexp.Regexp
}

var paramSegment = regexp.MustCompile(`^:([A-Za-z_][A-Za-z0-9_]*)$`)

// Compile converts a path pattern to an anchored regular expression.
// Segments of the form :name become named captures matching one segment.
// A pattern starting with ^ is taken as a raw regular expression.
func Compile(pattern string) (*regexp.Regexp, error) {
	if strings.HasPrefix(pattern, "^") {
		body := strings.TrimSuffix(strings.TrimPrefix(pattern, "^"), "$")
		return regexp.Compile("^(?:" + body + ")$")
	}

	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return regexp.Compile("^/$")
	}

	var b strings.Builder
	b.WriteString("^")
	for _, seg := range strings.Split(trimmed, "/") {
		b.WriteString("/")
		if m := paramSegment.FindStringSubmatch(seg); m != nil {
			fmt.Fprintf(&b, "(?P<%s>[^/]+)", m[1])
			continue
		}
		if strings.HasPrefix(seg, ":") {
			return nil, fmt.Errorf("invalid parameter segment %q in %s", seg, pattern)
		}
		b.WriteString(regexp.QuoteMeta(seg))
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// captures returns the named groups of path, or nil when it does not match.
func (c compiledRoute) captures(path string) map[string]string {
	matches := c.regex.FindStringSubmatch(path)
	if matches == nil {
		return nil
	}

	params := make(map[string]string)
	for i, name := range c.regex.SubexpNames() {
		if i > 0 && name != "" {
			params[name] = matches[i]
		}
	}
	return params
}

// normalize makes the empty path and a trailing slash match the same
// routes as their canonical forms.
func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

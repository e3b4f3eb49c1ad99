package openapi

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/swaggo/swag"
)

// InstanceName is the swag registry name the document is published under.
// http-swagger reads it to serve doc.json.
const InstanceName = swag.Name

var (
	current    atomic.Pointer[string]
	registerMu sync.Once
)

// published adapts the current document to swag.Swagger.
type published struct{}

// ReadDoc returns the last published document.
func (published) ReadDoc() string {
	if doc := current.Load(); doc != nil {
		return *doc
	}
	return "{}"
}

// Publish encodes spec and makes it the document swag serves. Later calls
// replace the document.
func Publish(spec *Spec) ([]byte, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}

	doc := string(data)
	current.Store(&doc)
	registerMu.Do(func() {
		swag.Register(InstanceName, published{})
	})
	return data, nil
}

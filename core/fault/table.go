package fault

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// KindClient labels client errors that carry their own status code
// without being a classified *Error.
const KindClient Kind = "error"

// GenericMessage replaces the message of unclassified errors.
const GenericMessage = "internal server error"

// Table maps error kinds to HTTP status codes.
// It is written during configuration and read-only once frozen.
type Table struct {
	mu     sync.RWMutex
	codes  map[Kind]int
	frozen bool
}

// NewTable creates a table pre-populated with the standard kinds.
func NewTable() *Table {
	return &Table{
		codes: map[Kind]int{
			KindNotFound:        http.StatusNotFound,
			KindRouteNotFound:   http.StatusNotFound,
			KindUnknownResource: http.StatusNotFound,
			KindNotImplemented:  http.StatusNotImplemented,
			KindUnauthorized:    http.StatusUnauthorized,
			KindValidation:      http.StatusBadRequest,
			KindReadonlyWrite:   http.StatusBadRequest,
			KindAttributeAccess: http.StatusInternalServerError,
			KindInternal:        http.StatusInternalServerError,
		},
	}
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// Default returns the process-wide table.
func Default() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = NewTable()
	})
	return defaultTable
}

// Register declares the status code for a kind.
func (t *Table) Register(kind Kind, status int) error {
	if status < 100 || status > 599 {
		return fmt.Errorf("status %d for kind %q is not a valid HTTP status", status, kind)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return fmt.Errorf("status table is frozen, cannot register kind %q", kind)
	}
	t.codes[kind] = status
	return nil
}

// Freeze ends configuration. Register fails afterwards.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Status returns the HTTP status for err.
// Errors implementing StatusCoder win over the table; anything else is 500.
func (t *Table) Status(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if code, ok := t.codes[KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// ErrorBody is the structured error payload.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Translate returns the status and body for err.
// Server errors never expose the underlying message.
func (t *Table) Translate(err error) (int, ErrorBody) {
	status := t.Status(err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		return status, ErrorBody{Error: ErrorDetail{Kind: KindInternal, Message: GenericMessage}}
	}

	detail := ErrorDetail{Kind: KindClient, Message: err.Error()}
	var fe *Error
	if errors.As(err, &fe) {
		detail.Kind = fe.Kind
		detail.Message = fe.Message
		if detail.Message == "" {
			detail.Message = string(fe.Kind)
		}
		detail.Field = fe.Field
	}
	return status, ErrorBody{Error: detail}
}

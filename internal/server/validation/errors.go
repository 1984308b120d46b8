// Package validation collects field-level input errors. Rules return
// messages rather than failing fast so a client sees every problem with
// its request at once.
package validation

import (
	"errors"
	"sort"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/common"
)

// NonField is the key for errors that do not belong to one input field.
const NonField = "non_field_errors"

// FieldErrors maps a field name to its messages.
type FieldErrors map[string][]string

// Add appends msgs to field. Empty messages are ignored.
func (f FieldErrors) Add(field string, msgs ...string) {
	for _, m := range msgs {
		if m != "" {
			f[field] = append(f[field], m)
		}
	}
}

// Fields returns the field names in sorted order.
func (f FieldErrors) Fields() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Err returns nil when there are no messages, otherwise an *Error.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return &Error{Fields: f}
}

// Error carries field errors. It matches common.ErrValidation, or
// common.ErrConflict when Conflict is set.
type Error struct {
	Fields   FieldErrors
	Conflict bool
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	for _, name := range e.Fields.Fields() {
		b.WriteString("; ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Fields[name], " "))
	}
	return b.String()
}

func (e *Error) Is(target error) bool {
	if e.Conflict {
		return target == common.ErrConflict
	}
	return target == common.ErrValidation
}

// NewFieldError is shorthand for a single-field error.
func NewFieldError(field, msg string) *Error {
	return &Error{Fields: FieldErrors{field: {msg}}}
}

// NewConflict reports a uniqueness failure on field.
func NewConflict(field, msg string) *Error {
	return &Error{Fields: FieldErrors{field: {msg}}, Conflict: true}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

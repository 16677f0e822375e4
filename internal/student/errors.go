package student

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrInvalidPage     = errors.New("invalid page")
	ErrEmailTaken      = errors.New("email already taken")
)

const (
	msgRequired   = "This field is required."
	msgEmailTaken = "A student with this email already exists."
)

// ValidationError maps field names to every message raised for them.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(e.Fields[name], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// BulkValidationError carries one field map per submitted item, in order.
// Valid items have an empty map.
type BulkValidationError struct {
	Items []map[string][]string
}

func (e *BulkValidationError) Error() string {
	invalid := 0
	for _, item := range e.Items {
		if len(item) > 0 {
			invalid++
		}
	}
	return fmt.Sprintf("bulk validation failed: %d of %d items invalid", invalid, len(e.Items))
}

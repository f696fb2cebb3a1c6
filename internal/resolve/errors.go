package resolve

import (
	"fmt"
	"strings"

	"github.com/mark3labs/oapi2types/internal/tree"
)

// ErrorCode classifies resolution failures.
type ErrorCode string

const (
	DanglingReference            ErrorCode = "DanglingReference"
	UnsupportedSchemaShape       ErrorCode = "UnsupportedSchemaShape"
	MissingSchemaType            ErrorCode = "MissingSchemaType"
	UnresolvablePropertyShape    ErrorCode = "UnresolvablePropertyShape"
	UnsupportedArrayElementShape ErrorCode = "UnsupportedArrayElementShape"
	InvalidUnionComposition      ErrorCode = "InvalidUnionComposition"
	CyclicSchemaReference        ErrorCode = "CyclicSchemaReference"
	NameCollision                ErrorCode = "NameCollision"
)

// Error is a leaf resolution failure. Enclosing levels wrap it with
// fmt.Errorf, so match it with errors.Is against the Err* sentinels or
// errors.As for the details.
type Error struct {
	Code     ErrorCode
	Name     string // schema or synthesized name being resolved
	Property string
	Message  string
	Snippet  string // offending node rendered as YAML
	Path     string // JSON pointer of the offending node
	Cause    error
}

var (
	ErrDanglingReference            = &Error{Code: DanglingReference}
	ErrUnsupportedSchemaShape       = &Error{Code: UnsupportedSchemaShape}
	ErrMissingSchemaType            = &Error{Code: MissingSchemaType}
	ErrUnresolvablePropertyShape    = &Error{Code: UnresolvablePropertyShape}
	ErrUnsupportedArrayElementShape = &Error{Code: UnsupportedArrayElementShape}
	ErrInvalidUnionComposition      = &Error{Code: InvalidUnionComposition}
	ErrCyclicSchemaReference        = &Error{Code: CyclicSchemaReference}
	ErrNameCollision                = &Error{Code: NameCollision}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	if e.Property != "" {
		fmt.Fprintf(&b, " property %q", e.Property)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (at %s)", e.Path)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, name, property, msg string, node tree.Node) *Error {
	e := &Error{Code: code, Name: name, Property: property, Message: msg}
	if node != nil {
		e.Path = node.Path()
		e.Snippet = node.Encode()
	}
	return e
}

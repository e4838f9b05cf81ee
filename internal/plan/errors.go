package plan

import "fmt"

// ParseFailure is returned when the text parser never attaches a root plan
// node.
type ParseFailure struct {
	Reason string
}

func (e *ParseFailure) Error() string {
	if e.Reason == "" {
		return "pgplan: unable to parse plan"
	}
	return fmt.Sprintf("pgplan: unable to parse plan: %s", e.Reason)
}

// NewParseFailure builds a ParseFailure with the given reason.
func NewParseFailure(reason string) error { return &ParseFailure{Reason: reason} }

// JSONSyntaxError wraps the underlying JSON decoder's diagnostic, preserving
// its reported byte offset (propagating the underlying
// diagnostic position").
type JSONSyntaxError struct {
	Offset int64
	Err    error
}

func (e *JSONSyntaxError) Error() string {
	return fmt.Sprintf("pgplan: invalid EXPLAIN JSON at offset %d: %v", e.Offset, e.Err)
}

func (e *JSONSyntaxError) Unwrap() error { return e.Err }

// NewJSONSyntaxError builds a JSONSyntaxError from the given byte offset and
// underlying error; err itself is not inspected for an offset.
func NewJSONSyntaxError(offset int64, err error) error {
	return &JSONSyntaxError{Offset: offset, Err: err}
}

// UnsupportedSortGroupsKindError is returned when a "Full-sort Groups" /
// "Pre-sorted Groups" line matches neither label.
type UnsupportedSortGroupsKindError struct {
	Kind string
}

func (e *UnsupportedSortGroupsKindError) Error() string {
	return fmt.Sprintf("pgplan: unsupported sort groups kind %q", e.Kind)
}

// NewUnsupportedSortGroupsKind builds an UnsupportedSortGroupsKindError.
func NewUnsupportedSortGroupsKind(kind string) error {
	return &UnsupportedSortGroupsKindError{Kind: kind}
}

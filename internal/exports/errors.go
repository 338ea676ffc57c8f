package exports

import (
	"errors"
	"fmt"

	"github.com/mvp-joe/pykg/internal/introspect"
)

// ErrSyntax indicates the entry file is not valid Python.
var ErrSyntax = errors.New("invalid python syntax")

// ResolutionError reports an entry file the resolver could not parse.
// The run is aborted; no partial symbol set is returned.
type ResolutionError struct {
	File   string
	Line   int // 1-indexed
	Column int // 1-indexed
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve exports of %s:%d:%d: %v", e.File, e.Line, e.Column, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// NewSyntaxError converts a syntax issue reported by the interpreter.
func NewSyntaxError(file string, issue *introspect.SyntaxIssue) *ResolutionError {
	err := ErrSyntax
	if issue.Message != "" {
		err = fmt.Errorf("%w: %s", ErrSyntax, issue.Message)
	}
	return &ResolutionError{
		File:   file,
		Line:   max(issue.Line, 1),
		Column: max(issue.Column, 1),
		Err:    err,
	}
}

package cfg

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ParserError is a syntactic violation: unexpected token kind, missing
// separator, wrong slice arity. The parser never attempts recovery.
type ParserError struct {
	Loc Location
	Msg string
}

func (e *ParserError) Error() string {
	return fmt.Sprintf("%s %s", e.Loc, e.Msg)
}

func parseErr(loc Location, format string, args ...interface{}) *ParserError {
	return &ParserError{Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// InvalidPathError wraps the failure to parse a path string. Its Cause is
// the underlying tokenizer or parser error when one is available.
type InvalidPathError struct {
	Path string
	Err  error
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("Invalid path: %s", e.Path)
}

func (e *InvalidPathError) Unwrap() error { return e.Err }

func (e *InvalidPathError) Cause() error { return e.Err }

func newInvalidPathError(path string, cause error) *InvalidPathError {
	return &InvalidPathError{Path: path, Err: errors.WithStack(cause)}
}

// BadIndexError reports a wrong-typed or out-of-range index, or a slice
// applied to a non-list.
type BadIndexError struct {
	Loc Location
	Msg string
}

func (e *BadIndexError) Error() string {
	return fmt.Sprintf("%s %s", e.Loc, e.Msg)
}

func badIndexErr(loc Location, format string, args ...interface{}) *BadIndexError {
	return &BadIndexError{Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// refEntry is one node of a detected reference cycle: its canonical source
// form and the location it was seen at.
type refEntry struct {
	source string
	loc    Location
}

// CircularReferenceError reports a cycle among `${...}` references. Entries
// are sorted alphabetically by their reconstructed source text.
type CircularReferenceError struct {
	Entries []refEntry
}

func (e *CircularReferenceError) Error() string {
	parts := make([]string, len(e.Entries))

	for i, ent := range e.Entries {
		parts[i] = fmt.Sprintf("%s %s", ent.source, ent.loc)
	}
	return "Circular reference: " + strings.Join(parts, ", ")
}

// ConfigError is any other evaluation failure: unknown variable, arithmetic
// type mismatch, duplicate key, unconvertible string, non-mapping root,
// unresolvable include.
type ConfigError struct {
	Loc Location
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Loc.zero() {
		return e.Msg
	}
	return fmt.Sprintf("%s %s", e.Loc, e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Cause() error { return e.Err }

func configErr(loc Location, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

func configErrWrap(loc Location, cause error, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Loc: loc, Msg: fmt.Sprintf(format, args...), Err: errors.WithStack(cause)}
}

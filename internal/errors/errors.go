// Package errors defines the goclangd error taxonomy: a small closed set
// of typed errors distinguishing fatal startup failures from per-file and
// per-operation failures that the caller is expected to recover from.
package errors

import (
	"fmt"
	"time"
)

// Kind classifies a goclangd error.
type Kind string

const (
	KindManifest    Kind = "manifest"     // missing/unreadable manifest; fatal at startup
	KindASTLibrary  Kind = "ast_library"  // AST library failed to load; fatal at startup
	KindParse       Kind = "parse"        // per-file parse failure; demoted to FAILED status
	KindContention  Kind = "contention"   // transient store busy/locked, retried then escalated
	KindStoreFatal  Kind = "store_fatal"  // schema or disk failure; aborts the apply loop
)

// Error is a typed goclangd error carrying enough context to decide
// whether the caller should retry, demote a file to failed, or abort.
type Error struct {
	Kind        Kind
	Op          string
	FilePath    string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

func new(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Underlying: err, Timestamp: time.Now()}
}

// NewManifestError reports a fatal manifest load failure.
func NewManifestError(op string, err error) *Error { return new(KindManifest, op, err) }

// NewASTLibraryError reports a fatal AST library load failure.
func NewASTLibraryError(op string, err error) *Error { return new(KindASTLibrary, op, err) }

// NewParseError reports a recoverable per-file parse failure.
func NewParseError(file string, err error) *Error {
	e := new(KindParse, "parse", err)
	e.FilePath = file
	e.Recoverable = true
	return e
}

// NewContentionError reports a store write that exhausted its retry budget.
func NewContentionError(op string, err error) *Error {
	e := new(KindContention, op, err)
	e.Recoverable = true
	return e
}

// NewStoreFatalError reports a store failure that should abort the apply loop.
func NewStoreFatalError(op string, err error) *Error { return new(KindStoreFatal, op, err) }

// WithFile attaches a file path to an error for logging context.
func (e *Error) WithFile(path string) *Error {
	e.FilePath = path
	return e
}

func (e *Error) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Kind, e.Op, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Kind, e.Op, e.Underlying)
}

// Unwrap supports errors.Is/As against the underlying cause.
func (e *Error) Unwrap() error { return e.Underlying }

// IsRecoverable reports whether the caller should continue the run rather
// than abort.
func (e *Error) IsRecoverable() bool { return e.Recoverable }

// IsFatal reports whether the error should stop startup or the apply loop.
func (e *Error) IsFatal() bool {
	return e.Kind == KindManifest || e.Kind == KindASTLibrary || e.Kind == KindStoreFatal
}

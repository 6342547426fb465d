// Package domainerr implements the system's error taxonomy: each kind
// carries enough context to populate a ParsingLog row or an HTTP status, and
// wraps its cause with fmt.Errorf("%w") so errors.Is/errors.As keep working.
package domainerr

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy values used both as an error type tag and as
// the parsing_logs.error_type vocabulary.
type Kind string

const (
	KindValidation Kind = "validation"
	KindParsing    Kind = "parsing"
	KindLLM        Kind = "llm_error"
	KindEmbedding  Kind = "embedding"
	KindDatabase   Kind = "database"
	KindNetwork    Kind = "network"
	KindJob        Kind = "job"
)

// Error is the common shape of every domain error: a kind, a message, an
// optional cause, and optional row/chunk/job context for diagnostics.
type Error struct {
	Kind      Kind
	Message   string
	Cause     error
	RowNumber *int
	ChunkID   *int
	JobID     string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a domainerr.Error of the same Kind, enabling
// errors.Is(err, domainerr.Validation("")) style checks.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a ValidationError: input doesn't satisfy a contract.
func Validation(format string, args ...any) *Error { return newErr(KindValidation, format, args...) }

// Parsing builds a ParsingError: structural failure, non-recoverable for the
// affected sheet/file.
func Parsing(format string, args ...any) *Error { return newErr(KindParsing, format, args...) }

// LLM builds an LLMError: transient external-service failure, retried by the
// caller up to its own limit.
func LLM(format string, args ...any) *Error { return newErr(KindLLM, format, args...) }

// Embedding builds an EmbeddingError.
func Embedding(format string, args ...any) *Error { return newErr(KindEmbedding, format, args...) }

// Database builds a DatabaseError: the caller must roll back its transaction.
func Database(format string, args ...any) *Error { return newErr(KindDatabase, format, args...) }

// Network builds a NetworkError: courier<->ETL service failures, retried at
// the queue layer with backoff.
func Network(format string, args ...any) *Error { return newErr(KindNetwork, format, args...) }

// Job builds a JobError: a terminal state returned by a downstream service,
// surfaced to the caller verbatim.
func Job(format string, args ...any) *Error { return newErr(KindJob, format, args...) }

// Wrap attaches a cause to a domain error, returning a new *Error so the
// original sentinel is never mutated in place.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	e := newErr(kind, format, args...)
	e.Cause = cause
	return e
}

// WithRow attaches row-number context and returns e for chaining.
func (e *Error) WithRow(row int) *Error {
	e.RowNumber = &row
	return e
}

// WithChunk attaches chunk-id context and returns e for chaining.
func (e *Error) WithChunk(chunkID int) *Error {
	e.ChunkID = &chunkID
	return e
}

// WithJob attaches job-id context and returns e for chaining.
func (e *Error) WithJob(jobID string) *Error {
	e.JobID = jobID
	return e
}

// KindOf reports the Kind of the first *Error in err's chain, without
// pulling in a sentinel value per kind; callers write:
// if kind, ok := domainerr.KindOf(err); ok && kind == domainerr.KindValidation { ... }
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

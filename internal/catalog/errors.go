package catalog

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

// Failure kinds. KindInternal is reported for anything not explicitly classified.
const (
	KindTransport Kind = "transport"
	KindParse     Kind = "parse"
	KindStorage   Kind = "storage"
	KindDatabase  Kind = "database"
	KindInternal  Kind = "internal"
)

// Sentinel errors wrapped by classified failures.
var (
	ErrObjectNotFound        = errors.New("object not found")
	ErrMissingData           = errors.New(`response has no "data" field`)
	ErrMissingDataset        = errors.New(`catalog entry has no "dataset" field`)
	ErrMissingMetadata       = errors.New(`catalog entry has no "metadata" field`)
	ErrInvalidUTF8           = errors.New("artifact is not valid UTF-8")
	ErrArtifactNotArray      = errors.New("artifact is not a JSON array")
	ErrDatabaseNotConfigured = errors.New("database connection parameters are not configured")
)

// Error is a classified pipeline failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TransportError wraps a failure to reach the catalog API or a non-success status.
func TransportError(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// ParseError wraps malformed JSON or an unexpected document shape.
func ParseError(op string, err error) error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

// StorageError wraps an object store read or write failure.
func StorageError(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// DatabaseError wraps a connect, execute or commit failure.
func DatabaseError(op string, err error) error {
	return &Error{Kind: KindDatabase, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// StatusError reports a non-success HTTP status from the catalog API.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

package core

import (
	"github.com/pkg/errors"
)

// ErrorKind classifies ingestion errors.
type ErrorKind string

const (
	KindUnknown              ErrorKind = "unknown"
	KindInvalidConfiguration ErrorKind = "invalid_configuration"
	KindUnresolvableSpan     ErrorKind = "unresolvable_span"
	KindExternalCallFailure  ErrorKind = "external_call_failure"
)

var (
	// ErrInvalidConfiguration marks bad chunking or runtime parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrUnresolvableSpan marks a chunk span the transcript index could not map to any segment.
	ErrUnresolvableSpan = errors.New("unresolvable span")
)

// IngestError carries the kind and the operation that produced an error.
type IngestError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *IngestError) Error() string {
	if e.Op == "" {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return e.Op + ": " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// NewError wraps err with kind and op. A nil err yields nil.
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &IngestError{Kind: kind, Op: op, Err: err}
}

// InvalidConfig builds an InvalidConfiguration error with a message.
func InvalidConfig(op, msg string) error {
	return &IngestError{Kind: KindInvalidConfiguration, Op: op, Err: errors.Wrap(ErrInvalidConfiguration, msg)}
}

// ExternalFailure wraps an error returned by a collaborator (source, transcriber, embedder, store).
func ExternalFailure(op string, err error) error {
	return NewError(KindExternalCallFailure, op, err)
}

// KindOf returns the kind of the first IngestError in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	if errors.Is(err, ErrInvalidConfiguration) {
		return KindInvalidConfiguration
	}
	if errors.Is(err, ErrUnresolvableSpan) {
		return KindUnresolvableSpan
	}
	return KindUnknown
}

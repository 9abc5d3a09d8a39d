package sink

import (
	"errors"
	"fmt"
)

// Kind classifies why a sink could not be reconciled.
type Kind int

const (
	// KindUnreachable means the sink's storage could not be reached or written.
	KindUnreachable Kind = iota + 1
	// KindPermissionDenied means the sink refused access.
	KindPermissionDenied
	// KindMalformedExisting means existing sink content could not be read as a table.
	KindMalformedExisting
	// KindRemoteQuotaOrTransport means a remote sink failed on quota, transport or timeout.
	KindRemoteQuotaOrTransport
)

// Sentinel errors matching each Kind.
//
// A *Error matches the sentinel of its kind with errors.Is:
//
//	if errors.Is(err, sink.ErrPermissionDenied) {
//	    // credentials or file mode need fixing
//	}
var (
	// ErrUnreachable is returned when the sink cannot be opened or written.
	ErrUnreachable = errors.New("sink unreachable")

	// ErrPermissionDenied is returned when the sink rejects the caller.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrMalformedExisting is returned when existing content cannot be parsed
	// as rows.
	ErrMalformedExisting = errors.New("existing content is malformed")

	// ErrRemoteQuotaOrTransport is returned for rate limits, server errors,
	// transport failures and timeouts of remote sinks.
	ErrRemoteQuotaOrTransport = errors.New("remote quota or transport failure")
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindPermissionDenied:
		return "permission denied"
	case KindMalformedExisting:
		return "malformed existing content"
	case KindRemoteQuotaOrTransport:
		return "remote quota or transport"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnreachable:
		return ErrUnreachable
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindMalformedExisting:
		return ErrMalformedExisting
	case KindRemoteQuotaOrTransport:
		return ErrRemoteQuotaOrTransport
	default:
		return nil
	}
}

// Error is the failure of one sink operation.
type Error struct {
	Kind Kind
	Sink string
	Op   string
	Err  error
}

// NewError wraps err as a sink failure of the given kind.
func NewError(kind Kind, sinkName, op string, err error) *Error {
	return &Error{Kind: kind, Sink: sinkName, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sink %s: %s: %s", e.Sink, e.Op, e.Kind)
	}
	return fmt.Sprintf("sink %s: %s: %s: %v", e.Sink, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsRemote returns true if the error is a quota, transport or timeout failure
// of a remote sink. These usually clear on their own.
func IsRemote(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRemoteQuotaOrTransport)
}

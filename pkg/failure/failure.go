// Package failure defines the typed error values shared by every layer of the
// chat client. Failures are returned, never panicked; callers branch on the
// Kind to decide how to react.
package failure

import (
	"errors"
	"fmt"
)

// Kind tags a Failure with its origin category.
type Kind string

const (
	// KindNetwork covers socket, HTTP transport and non-2xx status errors.
	KindNetwork Kind = "network"
	// KindDecode covers malformed frames, bodies and envelopes.
	KindDecode Kind = "decode"
	// KindValidation covers transfer objects rejected by the mapper.
	KindValidation Kind = "validation"
	// KindUnimplemented marks operations that are intentionally absent.
	KindUnimplemented Kind = "unimplemented"
	// KindUnknown covers uncategorized faults; the cause is always preserved.
	KindUnknown Kind = "unknown"
)

// Failure is the single error type surfaced by the library.
type Failure struct {
	Kind Kind
	// Op names the operation that produced the failure, e.g.
	// "repository.GetChatHistory".
	Op  string
	Msg string
	// Cause is the underlying error, if any.
	Cause error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s failure: %s: %v", f.Op, f.Kind, f.Msg, f.Cause)
	}
	return fmt.Sprintf("%s: %s failure: %s", f.Op, f.Kind, f.Msg)
}

// Unwrap exposes the cause to errors.Is / errors.As chains.
func (f *Failure) Unwrap() error { return f.Cause }

// Network reports a connection, socket or HTTP transport error.
func Network(op, msg string, cause error) *Failure {
	return &Failure{Kind: KindNetwork, Op: op, Msg: msg, Cause: cause}
}

// Decode reports a malformed frame, body or envelope.
func Decode(op, msg string, cause error) *Failure {
	return &Failure{Kind: KindDecode, Op: op, Msg: msg, Cause: cause}
}

// Validation reports a transfer object rejected during mapping.
func Validation(op, msg string, cause error) *Failure {
	return &Failure{Kind: KindValidation, Op: op, Msg: msg, Cause: cause}
}

// Unimplemented reports an operation that is intentionally not provided.
// Callers may special-case this kind, so it stays distinct from KindUnknown.
func Unimplemented(op string) *Failure {
	return &Failure{Kind: KindUnimplemented, Op: op, Msg: "not implemented"}
}

// Unknown wraps an uncategorized fault, preserving the cause for diagnostics.
func Unknown(op string, cause error) *Failure {
	return &Failure{Kind: KindUnknown, Op: op, Msg: "unexpected error", Cause: cause}
}

// From coerces an arbitrary error into a *Failure. Errors that already are
// failures pass through unchanged; anything else becomes KindUnknown.
func From(op string, err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return Unknown(op, err)
}

// IsKind reports whether err is (or wraps) a Failure of the given kind.
func IsKind(err error, kind Kind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == kind
}

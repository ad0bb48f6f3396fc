// Package result provides the outcome type used to chain the client's
// network, decode and mapping steps into fail-fast pipelines.
package result

import "github.com/chatwire/chatwire/pkg/failure"

// Result holds either a value or a Failure, never both.
type Result[T any] struct {
	value T
	fail  *failure.Failure
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err wraps a failure.
func Err[T any](f *failure.Failure) Result[T] {
	return Result[T]{fail: f}
}

// Of adapts a conventional (value, error) pair. A nil error yields Ok;
// non-Failure errors are coerced to KindUnknown under the given operation.
func Of[T any](op string, v T, err error) Result[T] {
	if err != nil {
		return Err[T](failure.From(op, err))
	}
	return Ok(v)
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool { return r.fail == nil }

// Value returns the held value; it is the zero value when IsOk is false.
func (r Result[T]) Value() T { return r.value }

// Failure returns the held failure, or nil on success.
func (r Result[T]) Failure() *failure.Failure { return r.fail }

// Unpack converts back to the conventional (value, error) pair.
func (r Result[T]) Unpack() (T, error) {
	if r.fail != nil {
		return r.value, r.fail
	}
	return r.value, nil
}

// Map applies fn to a successful value and passes failures through untouched.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.fail != nil {
		return Err[U](r.fail)
	}
	return Ok(fn(r.value))
}

// FlatMap chains a further fallible step. fn runs only on success, so the
// first failing step in a pipeline short-circuits every later one.
func FlatMap[T, U any](r Result[T], fn func(T) Result[U]) Result[U] {
	if r.fail != nil {
		return Err[U](r.fail)
	}
	return fn(r.value)
}

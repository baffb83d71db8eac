// Package pipeline holds the result type passed between commit-hook stages.
//
// Every stage returns a Result. A stage that hits a problem still returns a
// usable Value (an empty slice, a fallback trailer) and records the cause in
// Degraded, so callers never need to branch on an error to keep going.
package pipeline

import "errors"

type Result[T any] struct {
	Value    T
	Degraded error
}

// OK wraps a value produced without problems.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Degrade wraps a safe fallback value together with the reason it was used.
func Degrade[T any](v T, cause error) Result[T] {
	return Result[T]{Value: v, Degraded: cause}
}

func (r Result[T]) IsDegraded() bool {
	return r.Degraded != nil
}

// Join returns a copy whose Degraded also carries cause.
func (r Result[T]) Join(cause error) Result[T] {
	if cause == nil {
		return r
	}
	r.Degraded = errors.Join(r.Degraded, cause)
	return r
}

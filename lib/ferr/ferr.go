// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ferr defines the error kinds the engine reports through its log
// channel, per the core's error handling design: Usage, NotFound, IO,
// Codec, Runtime.
package ferr

import "fmt"

// Kind classifies an Error.
type Kind int

const (
	// Usage marks API misuse, e.g. calling Add before Init.
	Usage Kind = iota
	// NotFound marks a cache miss on Delete/SetWatch.
	NotFound
	// IO marks a stat/open/read/write failure.
	IO
	// Codec marks a cache file parse failure.
	Codec
	// Runtime marks a watcher backend failure.
	Runtime
)

func (k Kind) String() string {
	switch k {
	case Usage:
		return "usage"
	case NotFound:
		return "not_found"
	case IO:
		return "io"
	case Codec:
		return "codec"
	case Runtime:
		return "runtime"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind and the operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			fe = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return fe != nil && fe.Kind == kind
}

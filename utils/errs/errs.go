// Package errs holds the sentinel errors shared by the cache and the REST layer.
package errs

import "errors"

var (
	// ErrInvalidArgument marks malformed input: a payload without an id, an unroutable
	// endpoint or a body that cannot be encoded. It signals a programming error and is
	// never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmpty is returned by reductions over an empty collection.
	ErrEmpty = errors.New("empty collection")
)

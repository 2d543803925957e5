// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument marks a malformed filter or parameter value.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedSymbology means no renderer (local or remote) can produce
	// an image for the symbology, or the identifier is not a known symbology.
	ErrUnsupportedSymbology = errors.New("unsupported symbology")
	// ErrEncoding means the payload could not be turned into symbols by the
	// local generator. Callers fall through to the remote renderer.
	ErrEncoding = errors.New("payload cannot be encoded")
	// ErrTransport covers network errors, timeouts and non-2xx responses
	// from the remote renderer.
	ErrTransport = errors.New("remote renderer unavailable")
)

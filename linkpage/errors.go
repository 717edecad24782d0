package linkpage

import "errors"

var (
	// ErrNotFound is returned by write paths that target a missing record.
	// Reads report absence as a nil record instead.
	ErrNotFound = errors.New("linkpage: not found")

	// ErrInvalidKey is returned for malformed usernames and slugs. No cache
	// or store is consulted for such keys.
	ErrInvalidKey = errors.New("linkpage: invalid key")

	// ErrInvalidRecord is returned when a record submitted for writing fails
	// validation.
	ErrInvalidRecord = errors.New("linkpage: invalid record")

	// ErrForbidden is returned when the actor does not own the record.
	ErrForbidden = errors.New("linkpage: forbidden")

	// ErrUnknownTag is returned by InvalidateTag for tags no cache carries.
	ErrUnknownTag = errors.New("linkpage: unknown tag")
)

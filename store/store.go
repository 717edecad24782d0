// Package store implements the persistence accessors behind the link page
// caches: a Postgres store, an in-process store for development and tests,
// and decorators that add retries, a circuit breaker or lenient error
// handling around either.
package store

import (
	"github.com/Keksclan/linkSquirrel/linkpage"
)

// ErrNotFound is returned by deletes that target a missing record.
var ErrNotFound = linkpage.ErrNotFound

// Accessor is the combined profile and AI page accessor.
type Accessor interface {
	linkpage.ProfileStore
	linkpage.AIPageStore
}

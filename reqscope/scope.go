// Package reqscope provides the per-request memoizer. A [Scope] lives exactly
// as long as one inbound request: every lookup for the same key inside it
// observes one underlying resolution, including its error.
//
// A Scope is created by the transport layer for each request and handed down
// through the request context (see contextx.WithRequestScope). It is never
// shared across requests and needs no teardown.
package reqscope

import (
	"context"
	"fmt"
	"sync"
)

// Scope memoizes outcomes by key for the lifetime of one request. The zero
// value is not usable; call [New].
type Scope struct {
	mu    sync.Mutex
	calls map[string]*call
}

// call is one in-flight or resolved producer invocation.
type call struct {
	done  chan struct{}
	val   any
	found bool
	err   error
}

// New creates an empty scope.
func New() *Scope {
	return &Scope{calls: make(map[string]*call)}
}

// Len reports how many keys have been produced or are in flight.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Memoize returns the outcome of produce for key within s. The first caller
// runs produce; concurrent and later callers wait for it and receive the same
// value, found flag and error. A caller whose ctx ends while waiting returns
// ctx.Err() without affecting the shared outcome.
//
// A nil scope runs produce directly.
func Memoize[V any](ctx context.Context, s *Scope, key string, produce func() (V, bool, error)) (V, bool, error) {
	if s == nil {
		return produce()
	}

	s.mu.Lock()
	if c, ok := s.calls[key]; ok {
		s.mu.Unlock()
		return wait[V](ctx, c)
	}
	c := &call{done: make(chan struct{})}
	s.calls[key] = c
	s.mu.Unlock()

	run(c, func() (any, bool, error) {
		v, found, err := produce()
		return v, found, err
	})
	return result[V](c)
}

func wait[V any](ctx context.Context, c *call) (V, bool, error) {
	select {
	case <-c.done:
		return result[V](c)
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	}
}

func result[V any](c *call) (V, bool, error) {
	v, _ := c.val.(V)
	return v, c.found, c.err
}

// run records the outcome of fn in c and releases waiters. A panic in fn is
// recorded as an error for the waiters and then re-raised.
func run(c *call, fn func() (any, bool, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("reqscope: producer panicked: %v", r)
			close(c.done)
			panic(r)
		}
		close(c.done)
	}()
	c.val, c.found, c.err = fn()
}

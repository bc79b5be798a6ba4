// Package modules provides the strategy registry the engine resolves its
// pluggable pricing and tax modules from. Modules are registered under
// string identifiers at startup and constructed fresh per resolution, so
// no strategy state leaks between flows.
package modules

import (
	"sort"
	"sync"

	"github.com/go-faster/errors"
)

// ErrNotRegistered is returned when resolving an unknown module identifier.
var ErrNotRegistered = errors.New("modules: not registered")

// Registry maps module identifiers to constructors of T. It is safe for
// concurrent use; registration normally happens once during startup.
type Registry[T any] struct {
	mu    sync.RWMutex
	ctors map[string]func() T
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{ctors: make(map[string]func() T)}
}

// Register binds the identifier to a constructor. Registering the same
// identifier again replaces the previous constructor.
func (r *Registry[T]) Register(id string, ctor func() T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[id] = ctor
}

// Resolve constructs a fresh instance of the module registered under id.
func (r *Registry[T]) Resolve(id string) (T, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[id]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, errors.Wrap(ErrNotRegistered, id)
	}
	return ctor(), nil
}

// IDs returns the registered identifiers in sorted order.
func (r *Registry[T]) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.ctors))
	for id := range r.ctors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

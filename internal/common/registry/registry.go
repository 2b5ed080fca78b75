// Package registry is a generic, concurrency-safe set of named factories.
// pubsub2inbox keeps one for processors and one for outputs so the loader
// can reject unknown stage types before an event arrives.
//
//	processors := registry.New[stages.ProcessorFactory]()
//	processors.Register(stages.ProcessorFactory{Type: "genericjson", New: ...})
//	factory, err := processors.Get("genericjson")
package registry

import (
	"sort"
	"sync"

	"pubsub2inbox/internal/common/errors"
)

// Factory names the type it builds
type Factory interface {
	GetType() string
}

type Registry[T Factory] struct {
	mu        sync.RWMutex
	factories map[string]T
}

func New[T Factory]() *Registry[T] {
	return &Registry[T]{factories: make(map[string]T)}
}

// Register adds factory under its own type, replacing an earlier one
func (r *Registry[T]) Register(factory T) {
	r.mu.Lock()
	r.factories[factory.GetType()] = factory
	r.mu.Unlock()
}

// Get returns the factory for name or a not_found error
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return factory, errors.NotFoundError("stage type " + name)
	}
	return factory, nil
}

func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Types lists the registered names, sorted
func (r *Registry[T]) Types() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

package adapter

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Factory constructs a fresh, unconnected adapter instance.
type Factory func(log logrus.FieldLogger) Adapter

// Registry maps a target category to the adapter factory responsible for
// it. It is populated once at startup by each adapter package's Register
// call and is read-mostly thereafter; lookups are safe under concurrent
// resolution.
type Registry struct {
	log       logrus.FieldLogger
	mu        sync.RWMutex
	factories map[Category]Factory
}

// NewRegistry creates an empty adapter registry.
func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		log:       log.WithField("component", "adapter_registry"),
		factories: make(map[Category]Factory),
	}
}

// Register binds a category to a factory. Binding an already-bound
// category returns a *DuplicateCategoryError and the first registration
// is retained.
func (r *Registry) Register(category Category, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, bound := r.factories[category]; bound {
		return &DuplicateCategoryError{Category: category}
	}

	r.factories[category] = factory
	r.log.WithField("category", category).Debug("adapter registered")

	return nil
}

// Resolve returns the factory bound to the category, or a
// *UnknownCategoryError when nothing is registered for it.
func (r *Registry) Resolve(category Category) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[category]
	if !ok {
		return nil, &UnknownCategoryError{Category: category}
	}

	return factory, nil
}

// Categories lists the registered categories in stable order.
func (r *Registry) Categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Category, 0, len(r.factories))
	for c := range r.factories {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

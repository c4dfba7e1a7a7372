package reactive

import "context"

// Binding connects one consumer to a store: it subscribes, reads snapshots and writes.
// Any number of bindings may share a store.
type Binding[T any] struct {
	store *Store[T]
}

// Bind gets (or creates) the store for key from r and starts its hydration.
// initial and opts only take effect if the store did not exist yet, see GetStore.
func Bind[T any](r *Registry, key string, initial *T, opts ...Option[T]) (*Binding[T], error) {
	s, err := GetStore(r, key, initial, opts...)
	if err != nil {
		return nil, err
	}
	s.Hydrate()
	return &Binding[T]{store: s}, nil
}

// Subscribe registers a change listener, see Store.Subscribe
func (b *Binding[T]) Subscribe(listener func()) (unsubscribe func()) {
	return b.store.Subscribe(listener)
}

// Snapshot returns the current snapshot. The pointer stays the same until the value changes.
func (b *Binding[T]) Snapshot() *Snapshot[T] {
	return b.store.Snapshot()
}

// Value returns the current value, nil while unresolved or null
func (b *Binding[T]) Value() *T {
	return b.store.Snapshot().Value()
}

// Write stores next, see Store.Write. Validation failures are repaired, never reported.
func (b *Binding[T]) Write(next *T) {
	b.store.Write(next)
}

// Ready blocks until the store finished hydrating or ctx is done
func (b *Binding[T]) Ready(ctx context.Context) error {
	return b.store.WaitHydrated(ctx)
}

// Store returns the underlying store
func (b *Binding[T]) Store() *Store[T] {
	return b.store
}

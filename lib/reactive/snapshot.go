package reactive

// Snapshot is an immutable view of a store's value.
// A store publishes a new Snapshot for every change and keeps returning the same pointer
// while nothing changes, so comparing snapshot pointers is a cheap change check.
//
// The value is shared by every reader and must not be modified.
type Snapshot[T any] struct {
	resolved bool
	value    *T
	version  uint64
}

// Resolved reports whether the store has a value yet: hydration finished or it was written.
func (s *Snapshot[T]) Resolved() bool {
	return s.resolved
}

// Value returns the value, nil if it is null or unresolved.
func (s *Snapshot[T]) Value() *T {
	return s.value
}

// IsNull reports whether the store holds an explicit null
func (s *Snapshot[T]) IsNull() bool {
	return s.resolved && s.value == nil
}

// Version counts the changes the store went through; 0 is the unresolved start.
func (s *Snapshot[T]) Version() uint64 {
	return s.version
}

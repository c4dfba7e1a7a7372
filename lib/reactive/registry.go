package reactive

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/rKV/lib/codec"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("reactive")

var (
	// ErrEmptyKey is returned by GetStore for an empty key
	ErrEmptyKey = errors.New("reactive: key must not be empty")
	// ErrTypeMismatch is returned by GetStore if the identity is already bound to a store of another value type
	ErrTypeMismatch = errors.New("reactive: store exists with a different value type")
	// ErrRegistryClosed is returned by GetStore after Close
	ErrRegistryClosed = errors.New("reactive: registry is closed")
)

// DefaultNamespace is used for stores created without WithNamespace
var DefaultNamespace = store.Namespace{DBName: "keyval-store", StoreName: "keyval"}

// Identity names one store: a key inside a namespace.
type Identity struct {
	Namespace store.Namespace
	Key       string
}

// String returns "db/store/key"
func (id Identity) String() string {
	return id.Namespace.String() + "/" + id.Key
}

// handle is the type independent view of a Store[T] the registry manages
type handle interface {
	Identity() Identity
	Flush(ctx context.Context) error
	valueType() string
	detach()
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registry owns the stores of one process (or one test). It guarantees that at most one
// store exists per Identity, no matter how many goroutines ask for it concurrently.
type Registry struct {
	backend store.IStore
	codec   codec.ICodec
	ns      store.Namespace
	policy  RacePolicy

	stores *xsync.MapOf[Identity, handle]

	// GetStore holds mu for reading, Close for writing
	mu     sync.RWMutex
	closed bool
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithDefaultCodec sets the codec for stores created without WithCodec (default: JSON).
func WithDefaultCodec(c codec.ICodec) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.codec = c
		}
	}
}

// WithDefaultNamespace sets the namespace for stores created without WithNamespace.
func WithDefaultNamespace(ns store.Namespace) RegistryOption {
	return func(r *Registry) {
		r.ns = ns
	}
}

// WithDefaultRacePolicy sets the race policy for stores created without WithRacePolicy.
func WithDefaultRacePolicy(p RacePolicy) RegistryOption {
	return func(r *Registry) {
		r.policy = p
	}
}

// NewRegistry creates a registry persisting through backend.
// The registry does not take ownership of backend; closing it is up to the caller.
func NewRegistry(backend store.IStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		backend: backend,
		codec:   codec.NewJSONCodec(),
		ns:      DefaultNamespace,
		policy:  LastWriterWins,
		stores:  xsync.NewMapOf[Identity, handle](),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Backend returns the store the registry persists through
func (r *Registry) Backend() store.IStore {
	return r.backend
}

// Len returns the number of stores in the registry
func (r *Registry) Len() int {
	return r.stores.Size()
}

// GetStore returns the store for (namespace, key), creating it on first use.
//
// On creation the store pins initial as its repair value together with the validator,
// equaler, codec and race policy from opts. If the store already exists it is returned
// unchanged and initial and opts are discarded; the first caller decides. GetStore never
// starts hydration.
//
// Thread-safety: concurrent calls for the same identity return the identical store.
func GetStore[T any](r *Registry, key string, initial *T, opts ...Option[T]) (*Store[T], error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}

	cfg := newConfig(r, opts)
	if err := cfg.namespace.Validate(); err != nil {
		return nil, err
	}
	id := Identity{Namespace: cfg.namespace, Key: key}

	h, loaded := r.stores.LoadOrCompute(id, func() handle {
		Logger.Debugf("creating store %s", id)
		return newStore(r.backend, id, initial, cfg)
	})

	s, ok := h.(*Store[T])
	if !ok {
		return nil, fmt.Errorf("%w: %s holds %s, requested %s", ErrTypeMismatch, id, h.valueType(), typeName[T]())
	}
	if loaded && len(opts) > 0 {
		Logger.Debugf("store %s already exists, discarding initial value and %d option(s)", id, len(opts))
	}
	return s, nil
}

// Flush waits until every store has persisted all pending writes or ctx is done.
func (r *Registry) Flush(ctx context.Context) error {
	var errs []error
	r.stores.Range(func(_ Identity, h handle) bool {
		if err := h.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", h.Identity(), err))
		}
		return true
	})
	return errors.Join(errs...)
}

// Reset drops every store without waiting for pending writes.
// Stores still referenced elsewhere keep working in memory but no longer persist.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stores.Range(func(id Identity, h handle) bool {
		h.detach()
		r.stores.Delete(id)
		return true
	})
	Logger.Debugf("registry reset")
}

// Close flushes every store and rejects further GetStore calls.
// It returns ctx.Err() if the flush did not finish in time; the registry is closed either way.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	err := r.Flush(ctx)
	r.stores.Range(func(_ Identity, h handle) bool {
		h.detach()
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// Process wide default
// --------------------------------------------------------------------------

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// Default returns the process wide registry.
// Unless SetDefault installed one, it is created on first use over an in-memory store.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRegistry == nil {
		defaultRegistry = NewRegistry(newMemoryBackend())
	}
	return defaultRegistry
}

// SetDefault installs r as the process wide registry. Passing nil makes the next
// Default call create a fresh in-memory registry.
func SetDefault(r *Registry) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = r
}

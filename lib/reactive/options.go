package reactive

import (
	"fmt"
	"reflect"

	"github.com/ValentinKolb/rKV/lib/codec"
	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/db/engines/maple"
	"github.com/ValentinKolb/rKV/lib/predicate"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/lib/store/lstore"
)

// RacePolicy decides what happens when hydration resolves after the store was written.
type RacePolicy int

const (
	// LastWriterWins drops the hydration result if any write happened before it resolved.
	// The value, the write-back and the notification of that hydration are skipped.
	LastWriterWins RacePolicy = iota
	// HydrationWins applies the hydration result when it resolves, overwriting earlier
	// writes, and persists it so memory and storage agree. A failed read is dropped like
	// under LastWriterWins.
	HydrationWins
)

func (p RacePolicy) String() string {
	switch p {
	case LastWriterWins:
		return "last-writer-wins"
	case HydrationWins:
		return "hydration-wins"
	default:
		return fmt.Sprintf("RacePolicy(%d)", int(p))
	}
}

// ParseRacePolicy is the inverse of RacePolicy.String
func ParseRacePolicy(s string) (RacePolicy, error) {
	switch s {
	case "last-writer-wins", "":
		return LastWriterWins, nil
	case "hydration-wins":
		return HydrationWins, nil
	default:
		return LastWriterWins, fmt.Errorf("invalid race policy: %s. must be one of last-writer-wins, hydration-wins", s)
	}
}

// Option configures a store at creation
type Option[T any] func(*config[T])

type config[T any] struct {
	isValid   predicate.Validator[T]
	isEqual   predicate.Equaler[T]
	namespace store.Namespace
	codec     codec.ICodec
	policy    RacePolicy
}

func newConfig[T any](r *Registry, opts []Option[T]) config[T] {
	cfg := config[T]{
		isValid:   predicate.Always[T],
		isEqual:   predicate.DeepEqual[T],
		namespace: r.ns,
		codec:     r.codec,
		policy:    r.policy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithValidator sets the predicate values must pass before they are stored.
// Values that fail are replaced by the store's repair value.
func WithValidator[T any](isValid func(*T) bool) Option[T] {
	return func(c *config[T]) {
		if isValid != nil {
			c.isValid = isValid
		}
	}
}

// WithEqualer replaces predicate.DeepEqual as the write suppression predicate
func WithEqualer[T any](isEqual func(a, b *T) bool) Option[T] {
	return func(c *config[T]) {
		if isEqual != nil {
			c.isEqual = isEqual
		}
	}
}

// WithNamespace selects the namespace the store persists to
func WithNamespace[T any](ns store.Namespace) Option[T] {
	return func(c *config[T]) {
		c.namespace = ns
	}
}

// WithCodec selects the payload codec
func WithCodec[T any](cd codec.ICodec) Option[T] {
	return func(c *config[T]) {
		if cd != nil {
			c.codec = cd
		}
	}
}

// WithRacePolicy selects how hydration and early writes are reconciled
func WithRacePolicy[T any](p RacePolicy) Option[T] {
	return func(c *config[T]) {
		c.policy = p
	}
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

func newMemoryBackend() store.IStore {
	return lstore.NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, "")
}

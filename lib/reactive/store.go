package reactive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/rKV/lib/codec"
	"github.com/ValentinKolb/rKV/lib/predicate"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/lib/util"
)

// HydrationState tracks the one-time load of a store from the backend
type HydrationState int32

const (
	NotStarted HydrationState = iota
	InFlight
	Done
)

func (h HydrationState) String() string {
	switch h {
	case NotStarted:
		return "not-started"
	case InFlight:
		return "in-flight"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// persistJob is one write-behind request
type persistJob[T any] struct {
	seq    uint64
	value  *T
	reason string
}

type listener struct {
	fn     func()
	active atomic.Bool
}

// Store is the reactive cell for one Identity.
//
// Reads never block: Snapshot returns the current immutable snapshot. Writes update the
// value and notify listeners synchronously on the writing goroutine, then persist in the
// background through a per-store queue. Stores are created by GetStore only.
type Store[T any] struct {
	id       Identity
	backend  store.IStore
	codec    codec.ICodec
	isValid  predicate.Validator[T]
	isEqual  predicate.Equaler[T]
	repairTo *T
	policy   RacePolicy
	metrics  *storeMetrics

	snapshot  atomic.Pointer[Snapshot[T]]
	hydration atomic.Int32
	hydrated  chan struct{}

	// mu serializes value changes, listener membership and job sequencing
	mu        sync.Mutex
	writes    uint64
	seq       uint64
	listeners []*listener

	queue     *util.MPSC[persistJob[T]]
	latestSeq atomic.Uint64

	// pendingMu guards the number of queued jobs and the Flush waiters
	pendingMu sync.Mutex
	pending   int
	idle      []chan struct{}
}

func newStore[T any](backend store.IStore, id Identity, initial *T, cfg config[T]) *Store[T] {
	s := &Store[T]{
		id:       id,
		backend:  backend,
		codec:    cfg.codec,
		isValid:  cfg.isValid,
		isEqual:  cfg.isEqual,
		repairTo: initial,
		policy:   cfg.policy,
		metrics:  newStoreMetrics(id.Namespace),
		hydrated: make(chan struct{}),
		queue:    util.NewMPSC[persistJob[T]](),
	}
	s.snapshot.Store(&Snapshot[T]{})

	go s.persistLoop()

	return s
}

// Identity returns the identity the store was created for
func (s *Store[T]) Identity() Identity {
	return s.id
}

func (s *Store[T]) valueType() string {
	return typeName[T]()
}

// Snapshot returns the current value.
//
// Thread-safety: This method is thread-safe and never blocks.
func (s *Store[T]) Snapshot() *Snapshot[T] {
	return s.snapshot.Load()
}

// RepairValue returns the value substituted for invalid values
func (s *Store[T]) RepairValue() *T {
	return s.repairTo
}

// HydrationState returns the current hydration state
func (s *Store[T]) HydrationState() HydrationState {
	return HydrationState(s.hydration.Load())
}

// Hydrated returns a channel that is closed once hydration is done and the
// listeners were notified of its result
func (s *Store[T]) Hydrated() <-chan struct{} {
	return s.hydrated
}

// WaitHydrated blocks until hydration is done or ctx is done.
// It does not start hydration.
func (s *Store[T]) WaitHydrated(ctx context.Context) error {
	select {
	case <-s.hydrated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Hydration
// --------------------------------------------------------------------------

// Hydrate loads the persisted value in the background. Only the first call has an effect;
// later and concurrent calls return immediately.
func (s *Store[T]) Hydrate() {
	if !s.hydration.CompareAndSwap(int32(NotStarted), int32(InFlight)) {
		return
	}
	s.metrics.hydrations.Inc()
	go s.hydrate()
}

func (s *Store[T]) hydrate() {
	raw, found, err := s.backend.Get(context.Background(), s.id.Namespace, s.id.Key)
	value, writeBack := s.resolve(raw, found, err)

	s.mu.Lock()

	// a failed read knows nothing about the record, so it never replaces a write
	if s.writes > 0 && (s.policy == LastWriterWins || err != nil) {
		writes := s.writes
		s.hydration.Store(int32(Done))
		s.mu.Unlock()

		s.metrics.hydrationDrops.Inc()
		Logger.Debugf("%s: hydration resolved after %d write(s), result dropped", s.id, writes)
		close(s.hydrated)
		return
	}

	s.publishLocked(value)
	if writeBack || s.writes > 0 {
		s.enqueueLocked(value, "hydration")
	}
	s.hydration.Store(int32(Done))
	listeners := s.listeners
	s.mu.Unlock()

	s.notify(listeners)
	close(s.hydrated)
}

// resolve turns the backend response into the hydrated value and reports whether the
// record has to be (re)written.
func (s *Store[T]) resolve(raw []byte, found bool, err error) (value *T, writeBack bool) {
	switch {
	case err != nil:
		s.metrics.backendFailures.Inc()
		Logger.Warningf("%s: read failed, using repair value: %v", s.id, err)
		return s.repairTo, false

	case !found:
		Logger.Debugf("%s: no record, writing initial value", s.id)
		return s.repairTo, true

	case s.codec.IsNull(raw):
		return nil, false
	}

	decoded := new(T)
	if err := s.codec.Unmarshal(raw, decoded); err != nil {
		s.metrics.repairs.Inc()
		Logger.Infof("%s: record can not be decoded, repairing: %v", s.id, err)
		return s.repairTo, true
	}
	if !s.isValid(decoded) {
		s.metrics.repairs.Inc()
		Logger.Infof("%s: record failed validation, repairing", s.id)
		return s.repairTo, true
	}
	return decoded, false
}

// --------------------------------------------------------------------------
// Write path
// --------------------------------------------------------------------------

// Write stores next and reports whether the value changed.
//
// If the store is resolved and next equals the current value, nothing happens. A non-nil
// value that fails validation is replaced by the repair value; nil is always accepted and
// persisted as a null record. The new value is visible and every listener has been called
// when Write returns; persistence happens in the background (see Flush).
//
// next is shared with readers after the call and must not be modified.
func (s *Store[T]) Write(next *T) bool {
	s.mu.Lock()

	current := s.snapshot.Load()
	if current.resolved && s.isEqual(current.value, next) {
		s.mu.Unlock()
		s.metrics.suppressed.Inc()
		return false
	}

	if next != nil && !s.isValid(next) {
		s.metrics.repairs.Inc()
		Logger.Debugf("%s: write failed validation, storing repair value", s.id)
		next = s.repairTo
	}

	s.writes++
	s.publishLocked(next)
	s.enqueueLocked(next, "write")
	listeners := s.listeners
	s.mu.Unlock()

	s.metrics.writes.Inc()
	s.notify(listeners)
	return true
}

// Clear writes the null value
func (s *Store[T]) Clear() bool {
	return s.Write(nil)
}

func (s *Store[T]) publishLocked(value *T) {
	prev := s.snapshot.Load()
	s.snapshot.Store(&Snapshot[T]{
		resolved: true,
		value:    value,
		version:  prev.version + 1,
	})
}

// --------------------------------------------------------------------------
// Subscriptions
// --------------------------------------------------------------------------

// Subscribe registers fn to be called after every change of the value. Listeners are
// called in subscription order on the goroutine that caused the change and receive no
// arguments; they read the new value with Snapshot.
//
// The returned function unsubscribes. It is idempotent, and a listener unsubscribed while
// a notification is running is not called by the rest of that notification.
func (s *Store[T]) Subscribe(fn func()) (unsubscribe func()) {
	l := &listener{fn: fn}
	l.active.Store(true)

	s.mu.Lock()
	// copy on write, notify iterates the old slice without holding mu
	s.listeners = append(s.listeners[:len(s.listeners):len(s.listeners)], l)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.active.Store(false)

			s.mu.Lock()
			defer s.mu.Unlock()
			next := make([]*listener, 0, len(s.listeners))
			for _, other := range s.listeners {
				if other != l {
					next = append(next, other)
				}
			}
			s.listeners = next
		})
	}
}

// Listeners returns the number of subscribed listeners
func (s *Store[T]) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *Store[T]) notify(listeners []*listener) {
	for _, l := range listeners {
		if l.active.Load() {
			l.fn()
		}
	}
}

// WaitChange blocks until the snapshot version is greater than since or ctx is done,
// and returns the snapshot at that point.
func (s *Store[T]) WaitChange(ctx context.Context, since uint64) (*Snapshot[T], error) {
	changed := make(chan struct{}, 1)
	unsubscribe := s.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		if snap := s.Snapshot(); snap.version > since {
			return snap, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
}

// --------------------------------------------------------------------------
// Write-behind persistence
// --------------------------------------------------------------------------

func (s *Store[T]) enqueueLocked(value *T, reason string) {
	s.seq++
	job := &persistJob[T]{seq: s.seq, value: value, reason: reason}
	s.latestSeq.Store(job.seq)

	s.pendingMu.Lock()
	s.pending++
	s.pendingMu.Unlock()

	if !s.queue.Push(job) {
		Logger.Debugf("%s: store detached, %s not persisted", s.id, reason)
		s.jobDone()
	}
}

// persistLoop is the single consumer of the store's queue.
func (s *Store[T]) persistLoop() {
	for job := range s.queue.Recv() {
		// a newer job is queued and will write a newer value anyway
		if job.seq < s.latestSeq.Load() {
			s.metrics.coalesced.Inc()
		} else {
			s.persist(job)
		}
		s.jobDone()
	}
}

func (s *Store[T]) persist(job *persistJob[T]) {
	payload := s.codec.Null()
	if job.value != nil {
		var err error
		if payload, err = s.codec.Marshal(job.value); err != nil {
			s.metrics.backendFailures.Inc()
			Logger.Errorf("%s: can not encode value for %s: %v", s.id, job.reason, err)
			return
		}
	}

	if err := s.backend.Put(context.Background(), s.id.Namespace, s.id.Key, payload); err != nil {
		s.metrics.backendFailures.Inc()
		Logger.Warningf("%s: persisting %s failed: %v", s.id, job.reason, err)
		return
	}
	s.metrics.persisted.Inc()
}

func (s *Store[T]) jobDone() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	s.pending--
	if s.pending == 0 {
		for _, ch := range s.idle {
			close(ch)
		}
		s.idle = nil
	}
}

// Flush blocks until every write queued before the call has been persisted (or failed),
// or ctx is done.
func (s *Store[T]) Flush(ctx context.Context) error {
	s.pendingMu.Lock()
	if s.pending == 0 {
		s.pendingMu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.idle = append(s.idle, ch)
	s.pendingMu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", s.id, ctx.Err())
	}
}

// detach stops the persistence queue. Queued jobs are still written.
func (s *Store[T]) detach() {
	s.queue.Close()
}

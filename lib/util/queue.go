package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// MPSC is an unbounded lock-free multi-producer single-consumer queue.
//
// Any number of goroutines may Push concurrently; items are handed to exactly one
// consumer through the channel returned by Recv. Items pushed by a single producer are
// delivered in push order. Items pushed concurrently by different producers are
// delivered in the order their append succeeded, which is not necessarily the order
// the producers started in.
type MPSC[T any] struct {
	head   atomic.Pointer[mpscNode[T]]
	tail   atomic.Pointer[mpscNode[T]]
	out    chan *T
	closed atomic.Bool

	// producers that passed the closed check and may not have appended yet
	pushing atomic.Int64

	// wakes the consumer when it is parked on an empty queue
	mu   sync.Mutex
	cond *sync.Cond
}

type mpscNode[T any] struct {
	value *T
	next  atomic.Pointer[mpscNode[T]]
}

// NewMPSC creates a queue and starts its delivery goroutine.
// The goroutine exits after Close once every pushed item was delivered.
func NewMPSC[T any]() *MPSC[T] {
	sentinel := &mpscNode[T]{}

	q := &MPSC[T]{out: make(chan *T)}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.deliver()

	return q
}

// Push appends value to the queue.
// It returns false if value is nil or the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *MPSC[T]) Push(value *T) bool {
	if value == nil {
		return false
	}

	q.pushing.Add(1)
	defer q.pushing.Add(-1)
	if q.closed.Load() {
		return false
	}

	n := &mpscNode[T]{value: value}

	for attempt := uint8(0); ; attempt++ {
		tail := q.tail.Load()
		next := tail.next.Load()

		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				// another producer may already have moved the tail, that is fine
				q.tail.CompareAndSwap(tail, n)
				q.wake()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tail, next)
		}

		backoff(attempt)
	}
}

// backoff spins for a few rounds under low contention and yields afterwards.
func backoff(attempt uint8) {
	if attempt < 10 {
		for i := 0; i < 1<<attempt; i++ {
			runtime.Gosched()
		}
	}
	runtime.Gosched()
}

// deliver moves items from the linked list into the output channel.
func (q *MPSC[T]) deliver() {
	defer close(q.out)

	for {
		delivered := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			delivered = true

			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = nil
		}

		if delivered {
			continue
		}
		if q.closed.Load() {
			// a push that saw the queue open finishes its append before it leaves
			if q.pushing.Load() == 0 {
				if q.head.Load().next.Load() == nil {
					return
				}
				continue
			}
			runtime.Gosched()
			continue
		}

		q.mu.Lock()
		if q.head.Load().next.Load() == nil && !q.closed.Load() {
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}

// Recv returns the channel the single consumer reads from.
// The channel is closed after Close once the queue is drained.
func (q *MPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close stops accepting new items. Items already pushed are still delivered.
func (q *MPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// wake signals the consumer while holding the lock it checks the queue under,
// so a signal can not fall between its emptiness check and cond.Wait.
func (q *MPSC[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// IsClosed reports whether Close was called.
func (q *MPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

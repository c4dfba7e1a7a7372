// Package reactive provides process wide reactive value cells backed by a store.IStore.
//
// A Store holds the value of one Identity (namespace + key). It is created lazily by
// GetStore, loads its persisted value once (Hydrate), validates every value before it is
// stored and replaces invalid ones with a repair value fixed at creation, and notifies its
// listeners after every change. Persistence is write-behind: Write updates memory and
// notifies synchronously, the backend write happens later on a per-store queue.
//
// Core Components:
//
//   - Registry: maps identities to stores and guarantees one store per identity, even
//     under concurrent GetStore calls. Default returns a process wide instance; tests
//     create their own with NewRegistry or call Reset.
//
//   - Store[T]: the cell. Its value is published as an immutable *Snapshot[T] through an
//     atomic pointer, so readers never block and never see a torn value. Listeners get no
//     arguments and re-read the snapshot.
//
//   - Binding[T]: the consumer side. Bind gets the store and starts hydration; the binding
//     exposes Subscribe, Snapshot and Write.
//
// Hydration:
//
//	NotStarted -> InFlight -> Done. The first Hydrate call reads the record:
//	  - valid record          -> value = record
//	  - null record           -> value = null
//	  - invalid/undecodable   -> value = repair value, record rewritten
//	  - no record             -> value = repair value, record created
//	  - backend error         -> value = repair value, logged, not retried
//	Listeners are notified once when the read resolves.
//
// Writes racing hydration are reconciled by the store's RacePolicy. With LastWriterWins
// (default) a hydration resolving after any Write is dropped. With HydrationWins the
// hydrated value replaces what was written and is persisted.
//
// Values with the same identity but different predicates are a known sharp edge: the
// first GetStore call pins the validator, equaler and repair value, later calls get the
// existing store and their options are ignored (logged at debug level).
//
// Usage Example:
//
//	type Counter struct{ Count int `json:"count"` }
//
//	b, err := reactive.Bind(reactive.Default(), "counter", &Counter{},
//	    reactive.WithValidator(func(c *Counter) bool { return c.Count >= 0 }))
//	unsubscribe := b.Subscribe(func() { fmt.Println(b.Value()) })
//	defer unsubscribe()
//
//	b.Write(&Counter{Count: 1})
package reactive

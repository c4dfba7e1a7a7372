// Package testing provides a conformance suite and benchmarks for engines that
// satisfy the db.KVDB interface.
//
// The suite checks the contract the persistent stores rely on: copies on read,
// deleted markers, stale-write rejection by write index, and Save/Load round trips
// that restore both content and write index.
//
// Example usage:
//
//	factory := func() db.KVDB {
//		return NewMyDatabase()
//	}
//
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing

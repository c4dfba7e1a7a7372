// Package testing provides a conformance suite for store.IStore implementations.
//
// RunIStoreTests checks the basic contract every backend must honor: namespaced
// Put/Get/Has/Delete, isolation between namespaces, empty values, invalid namespaces,
// context cancellation, concurrent writers and the behavior after Close.
//
// RunIStorePersistenceTests additionally checks that data written through one store
// instance is visible to a fresh instance opened over the same location.
//
// Usage:
//
//	func Test(t *testing.T) {
//	    storetesting.RunIStoreTests(t, "LocalStore", func() store.IStore {
//	        return lstore.NewLocalStore(factory, t.TempDir())
//	    })
//	}
package testing

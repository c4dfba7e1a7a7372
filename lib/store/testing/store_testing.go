package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/rKV/lib/store"
)

// StoreFactory is a function that creates a new, empty instance of an IStore implementation
type StoreFactory func() store.IStore

var testNS = store.Namespace{DBName: "test-db", StoreName: "test-store"}

// RunIStoreTests runs the conformance test suite for an IStore implementation.
func RunIStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("NamespaceIsolation", func(t *testing.T) {
			testNamespaceIsolation(t, factory())
		})

		t.Run("EmptyValue", func(t *testing.T) {
			testEmptyValue(t, factory())
		})

		t.Run("InvalidNamespace", func(t *testing.T) {
			testInvalidNamespace(t, factory())
		})

		t.Run("CanceledContext", func(t *testing.T) {
			testCanceledContext(t, factory())
		})

		t.Run("ConcurrentWriters", func(t *testing.T) {
			testConcurrentWriters(t, factory())
		})

		t.Run("DBInfo", func(t *testing.T) {
			testDBInfo(t, factory())
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory())
		})
	})
}

// RunIStorePersistenceTests checks that data survives closing and reopening a store.
// open must return a store over the same location every time it is called.
func RunIStorePersistenceTests(t *testing.T, name string, open StoreFactory) {
	t.Run(name, func(t *testing.T) {
		ctx := context.Background()
		other := store.Namespace{DBName: "test-db", StoreName: "other-store"}

		s1 := open()
		mustPut(t, s1, testNS, "kept", []byte("v1"))
		mustPut(t, s1, testNS, "overwritten", []byte("old"))
		mustPut(t, s1, testNS, "overwritten", []byte("new"))
		mustPut(t, s1, testNS, "deleted", []byte("gone"))
		mustPut(t, s1, other, "kept", []byte("other"))
		if err := s1.Delete(ctx, testNS, "deleted"); err != nil {
			t.Fatalf("Unexpected error during Delete: %v", err)
		}
		if err := s1.Close(); err != nil {
			t.Fatalf("Unexpected error during Close: %v", err)
		}

		s2 := open()
		defer s2.Close()

		expectValue(t, s2, testNS, "kept", []byte("v1"))
		expectValue(t, s2, testNS, "overwritten", []byte("new"))
		expectValue(t, s2, other, "kept", []byte("other"))
		if _, ok, _ := s2.Get(ctx, testNS, "deleted"); ok {
			t.Errorf("Deleted key should not survive reopening")
		}

		// writes after reopening must not be shadowed by restored entries
		mustPut(t, s2, testNS, "kept", []byte("v2"))
		expectValue(t, s2, testNS, "kept", []byte("v2"))
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func mustPut(t *testing.T, s store.IStore, ns store.Namespace, key string, value []byte) {
	t.Helper()
	if err := s.Put(context.Background(), ns, key, value); err != nil {
		t.Fatalf("Unexpected error during Put(%s, %s): %v", ns, key, err)
	}
}

func expectValue(t *testing.T, s store.IStore, ns store.Namespace, key string, want []byte) {
	t.Helper()
	got, ok, err := s.Get(context.Background(), ns, key)
	if err != nil {
		t.Fatalf("Unexpected error during Get(%s, %s): %v", ns, key, err)
	}
	if !ok {
		t.Fatalf("Expected key %s in %s to exist", key, ns)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected value %q for %s in %s, got %q", want, key, ns, got)
	}
}

func expectCode(t *testing.T, err error, code store.RetCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected error with code %s, got nil", code)
	}
	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		t.Fatalf("Expected *store.Error, got %T (%v)", err, err)
	}
	if storeErr.Code != code {
		t.Errorf("Expected code %s, got %s", code, storeErr.Code)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	mustPut(t, s, testNS, "key", []byte("value1"))
	expectValue(t, s, testNS, "key", []byte("value1"))

	if ok, err := s.Has(ctx, testNS, "key"); err != nil || !ok {
		t.Errorf("Expected Has to be true after Put, got %v (err=%v)", ok, err)
	}

	mustPut(t, s, testNS, "key", []byte("value2"))
	expectValue(t, s, testNS, "key", []byte("value2"))

	if _, ok, err := s.Get(ctx, testNS, "missing"); err != nil || ok {
		t.Errorf("Expected missing key to return loaded=false without error, got %v (err=%v)", ok, err)
	}
	if ok, err := s.Has(ctx, testNS, "missing"); err != nil || ok {
		t.Errorf("Expected Has on missing key to be false, got %v (err=%v)", ok, err)
	}

	// values are copied on the way in and out
	input := []byte("original")
	mustPut(t, s, testNS, "copy", input)
	input[0] = 'X'
	got, _, _ := s.Get(ctx, testNS, "copy")
	got[1] = 'Y'
	expectValue(t, s, testNS, "copy", []byte("original"))
}

func testDelete(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	mustPut(t, s, testNS, "key", []byte("value"))
	if err := s.Delete(ctx, testNS, "key"); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, testNS, "key"); ok {
		t.Errorf("Key should not be found after Delete")
	}
	if ok, _ := s.Has(ctx, testNS, "key"); ok {
		t.Errorf("Has should be false after Delete")
	}

	if err := s.Delete(ctx, testNS, "never-written"); err != nil {
		t.Errorf("Deleting a missing key should not fail, got %v", err)
	}

	mustPut(t, s, testNS, "key", []byte("again"))
	expectValue(t, s, testNS, "key", []byte("again"))
}

func testNamespaceIsolation(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	namespaces := []store.Namespace{
		{DBName: "db-a", StoreName: "store-1"},
		{DBName: "db-a", StoreName: "store-2"},
		{DBName: "db-b", StoreName: "store-1"},
	}
	for i, ns := range namespaces {
		mustPut(t, s, ns, "shared-key", []byte(fmt.Sprintf("value-%d", i)))
	}
	for i, ns := range namespaces {
		expectValue(t, s, ns, "shared-key", []byte(fmt.Sprintf("value-%d", i)))
	}

	if err := s.Delete(ctx, namespaces[0], "shared-key"); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}
	expectValue(t, s, namespaces[1], "shared-key", []byte("value-1"))
	expectValue(t, s, namespaces[2], "shared-key", []byte("value-2"))
}

func testEmptyValue(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	mustPut(t, s, testNS, "empty", []byte{})
	got, ok, err := s.Get(ctx, testNS, "empty")
	if err != nil || !ok {
		t.Fatalf("Expected empty value to be stored, got loaded=%v err=%v", ok, err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty value, got %q", got)
	}

	mustPut(t, s, testNS, "", []byte("empty key"))
	expectValue(t, s, testNS, "", []byte("empty key"))
}

func testInvalidNamespace(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	invalid := []store.Namespace{
		{DBName: "", StoreName: "store"},
		{DBName: "db", StoreName: ""},
		{DBName: "..", StoreName: "store"},
		{DBName: "db", StoreName: "a/b"},
	}
	for _, ns := range invalid {
		expectCode(t, s.Put(ctx, ns, "key", []byte("value")), store.RetCInvalidOperation)
		_, _, err := s.Get(ctx, ns, "key")
		expectCode(t, err, store.RetCInvalidOperation)
	}
}

func testCanceledContext(t *testing.T, s store.IStore) {
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, testNS, "key", []byte("value")); err == nil {
		t.Errorf("Expected Put with canceled context to fail")
	}
	if _, ok, _ := s.Get(context.Background(), testNS, "key"); ok {
		t.Errorf("Put with canceled context must not store the value")
	}
}

func testConcurrentWriters(t *testing.T, s store.IStore) {
	defer s.Close()

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			ns := store.Namespace{DBName: "test-db", StoreName: fmt.Sprintf("store-%d", w%2)}
			for i := 0; i < perWriter; i++ {
				key := fmt.Sprintf("w%d-k%d", w, i)
				if err := s.Put(context.Background(), ns, key, []byte(key)); err != nil {
					t.Errorf("Unexpected error during concurrent Put: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < writers; w++ {
		ns := store.Namespace{DBName: "test-db", StoreName: fmt.Sprintf("store-%d", w%2)}
		for i := 0; i < perWriter; i++ {
			key := fmt.Sprintf("w%d-k%d", w, i)
			expectValue(t, s, ns, key, []byte(key))
		}
	}
}

func testDBInfo(t *testing.T, s store.IStore) {
	defer s.Close()

	mustPut(t, s, testNS, "a", []byte("1"))
	mustPut(t, s, testNS, "b", []byte("2"))

	info, err := s.GetDBInfo(testNS)
	if err != nil {
		t.Fatalf("Unexpected error during GetDBInfo: %v", err)
	}
	if info.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", info.Entries)
	}
	if info.DbType == "" {
		t.Errorf("Expected DbType to be set")
	}
}

func testClose(t *testing.T, s store.IStore) {
	mustPut(t, s, testNS, "key", []byte("value"))

	if err := s.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close should be idempotent, got %v", err)
	}

	expectCode(t, s.Put(context.Background(), testNS, "key", []byte("value")), store.RetCClosed)
	_, _, err := s.Get(context.Background(), testNS, "key")
	expectCode(t, err, store.RetCClosed)
}

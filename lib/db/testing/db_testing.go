package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/rKV/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs the conformance test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("StaleWrites", func(t *testing.T) {
			testStaleWrites(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("LoadRejectsGarbage", func(t *testing.T) {
			testLoadRejectsGarbage(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentWriters", func(t *testing.T) {
			testConcurrentWriters(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureHas)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Set(testKey, testValue1, 1)

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}
	if !database.Has(testKey) {
		t.Errorf("Expected Has(%s) to be true after Set", testKey)
	}

	database.Set(testKey, testValue2, 2)

	result, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists = database.Get("nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}
	if database.Has("nonexistent-key") {
		t.Errorf("Expected Has on nonexistent key to be false")
	}

	retrievedValue, _ := database.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := database.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	if database.WriteIdx() != 2 {
		t.Errorf("Expected write index 2, got %d", database.WriteIdx())
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete|db.FeatureHas)

	database.Set("delete-key", []byte("value"), 1)
	database.Delete("delete-key", 2)

	if _, exists := database.Get("delete-key"); exists {
		t.Errorf("Key should not be found after Delete")
	}
	if database.Has("delete-key") {
		t.Errorf("Has should be false after Delete")
	}

	// deleting a missing key is a no-op
	database.Delete("never-written", 3)
	if database.Has("never-written") {
		t.Errorf("Deleting a missing key must not create it")
	}

	database.Set("delete-key", []byte("again"), 4)
	if result, exists := database.Get("delete-key"); !exists || string(result) != "again" {
		t.Errorf("Expected key to be writable again after Delete, got %q (exists=%v)", result, exists)
	}
}

func testStaleWrites(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	database.Set("stale-key", []byte("new"), 10)
	database.Set("stale-key", []byte("old"), 5)

	if result, _ := database.Get("stale-key"); string(result) != "new" {
		t.Errorf("Stale write overwrote newer value, got %q", result)
	}

	database.Delete("stale-key", 20)
	database.Set("stale-key", []byte("zombie"), 15)

	if _, exists := database.Get("stale-key"); exists {
		t.Errorf("Stale write resurrected a deleted key")
	}

	// equal indices are applied (idempotent replays)
	database.Set("equal-key", []byte("first"), 30)
	database.Set("equal-key", []byte("second"), 30)
	if result, _ := database.Get("equal-key"); string(result) != "second" {
		t.Errorf("Write with equal index should be applied, got %q", result)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 500
	for i := 0; i < numEntries; i++ {
		database.Set(fmt.Sprintf("save-load-key-%d", i), []byte(fmt.Sprintf("save-load-value-%d", i)), uint64(i+1))
	}
	database.Delete("save-load-key-0", uint64(numEntries+1))

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	// content written before Load must be replaced
	database2.Set("pre-load-key", []byte("pre-load"), 1)

	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	if _, exists := database2.Get("pre-load-key"); exists {
		t.Errorf("Load should replace existing content")
	}
	if _, exists := database2.Get("save-load-key-0"); exists {
		t.Errorf("Deleted key should not survive Save/Load")
	}

	for i := 1; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-key-%d", i)
		expected := []byte(fmt.Sprintf("save-load-value-%d", i))

		actual, exists := database2.Get(key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}
		if !bytes.Equal(actual, expected) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expected, actual)
		}
	}

	if database2.WriteIdx() < uint64(numEntries-1) {
		t.Errorf("Write index should be restored by Load, got %d", database2.WriteIdx())
	}
}

func testLoadRejectsGarbage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureLoad)

	database.Set("kept-key", []byte("kept"), 1)

	if err := database.Load(bytes.NewReader([]byte("definitely not a snapshot"))); err == nil {
		t.Errorf("Expected Load to fail for garbage input")
	}

	if result, exists := database.Get("kept-key"); !exists || string(result) != "kept" {
		t.Errorf("Failed Load must keep previous content, got %q (exists=%v)", result, exists)
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	emptyKeyValue := []byte("value for empty key")
	database.Set("", emptyKeyValue, 1)

	if result, exists := database.Get(""); !exists {
		t.Errorf("Empty key not found after Set")
	} else if !bytes.Equal(result, emptyKeyValue) {
		t.Errorf("Value mismatch for empty key")
	}

	database.Set("nil-value-key", nil, 2)

	if result, exists := database.Get("nil-value-key"); !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	largeKey := string(make([]byte, 1000))
	database.Set(largeKey, []byte("value for large key"), 3)

	if result, exists := database.Get(largeKey); !exists || string(result) != "value for large key" {
		t.Errorf("Large key not found after Set")
	}

	largeValue := make([]byte, 4*1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	database.Set("large-value-key", largeValue, 4)

	if result, exists := database.Get("large-value-key"); !exists || !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch (exists=%v, len=%d)", exists, len(result))
	}
}

func testConcurrentWriters(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	const writers = 8
	const keysPerWriter = 200

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < keysPerWriter; i++ {
				key := fmt.Sprintf("writer-%d-key-%d", w, i)
				database.Set(key, []byte(key), uint64(w*keysPerWriter+i+1))
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < writers; w++ {
		for i := 0; i < keysPerWriter; i++ {
			key := fmt.Sprintf("writer-%d-key-%d", w, i)
			if result, exists := database.Get(key); !exists || string(result) != key {
				t.Errorf("Key %s lost under concurrent writes", key)
			}
		}
	}

	if info := database.GetInfo(); info.Entries != writers*keysPerWriter {
		t.Errorf("Expected %d entries in info, got %d", writers*keysPerWriter, info.Entries)
	}
}

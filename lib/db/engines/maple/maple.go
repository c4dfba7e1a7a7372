package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/rKV/lib/util"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("maple")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum     = "MAPLEDB\x00" // File format identifier
	mapleVersion = 4             // Snapshot format version (4 = no ttl fields)
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a sharded in-memory database
type mapleImpl struct {
	numShards int
	seed      uint64
	currIndex atomic.Uint64

	// shards are swapped out as a whole by Load
	mu     sync.RWMutex
	shards []*internal.Shard
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = number of CPUs)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	return &mapleImpl{
		numShards: opts.NumShards,
		seed:      util.GenerateSeed(),
		shards:    newShards(opts.NumShards),
	}
}

func newShards(n int) []*internal.Shard {
	hasher := createIdentityHasher()
	shards := make([]*internal.Shard, n)
	for i := range shards {
		shards[i] = internal.NewShard(hasher)
	}
	return shards
}

// createIdentityHasher creates a hash function that combines a key with a seed
func createIdentityHasher() func(util.UintKey, uint64) uint64 {
	return func(key util.UintKey, mapSeed uint64) uint64 {
		return uint64(key) ^ mapSeed
	}
}

// shardFor hashes key and returns the hashed key together with its shard.
//
// Thread-safety: callers must hold maple.mu (read or write).
func (maple *mapleImpl) shardFor(key string) (util.UintKey, *internal.Shard) {
	intKey := util.HashString(key, maple.seed)
	return intKey, internal.GetShard(intKey, maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry. Writes older than the stored entry are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte, writeIndex uint64) {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	maple.compute(key, writeIndex, internal.Entry{Value: valueCopy, Index: writeIndex})
}

// Delete leaves a deleted marker for key. Deletes older than the stored entry are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string, writeIndex uint64) {
	maple.compute(key, writeIndex, internal.Entry{Index: writeIndex, Deleted: true})
}

// compute stores next for key unless the stored entry was written with a newer index.
func (maple *mapleImpl) compute(key string, writeIndex uint64, next internal.Entry) {
	maple.SetWriteIdx(writeIndex)

	maple.mu.RLock()
	defer maple.mu.RUnlock()

	intKey, shard := maple.shardFor(key)
	shard.Data.Compute(intKey, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if loaded && writeIndex < old.Index {
			Logger.Debugf("ignoring stale write for key %q (index %d < %d)", key, writeIndex, old.Index)
			return old, false
		}
		return next, false
	})
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a copy of the value for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool) {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	intKey, shard := maple.shardFor(key)
	entry, ok := shard.Data.Load(intKey)
	if !ok || entry.Deleted {
		return nil, false
	}

	data := make([]byte, len(entry.Value))
	copy(data, entry.Value)
	return data, true
}

// Has checks if a (not deleted) entry exists for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	intKey, shard := maple.shardFor(key)
	entry, ok := shard.Data.Load(intKey)
	return ok && !entry.Deleted
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a snapshot of all live entries to w.
// Concurrent reads and writes are allowed; the snapshot is fuzzy with respect to
// writes that happen while it is taken.
//
// Thread-safety: This function allows concurrent operations with all other functions except Load.
func (maple *mapleImpl) Save(w io.Writer) error {
	type savedEntry struct {
		key   util.UintKey
		entry internal.Entry
	}

	maple.mu.RLock()
	seed := maple.seed
	var entries []savedEntry
	for _, shard := range maple.shards {
		shard.Data.Range(func(key util.UintKey, entry internal.Entry) bool {
			if !entry.Deleted {
				entries = append(entries, savedEntry{key, entry})
			}
			return true
		})
	}
	maple.mu.RUnlock()

	bw := bufio.NewWriterSize(w, 64*1024)

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	header := []any{uint8(mapleVersion), seed, uint64(len(entries))}
	for _, field := range header {
		if err := binary.Write(bw, binary.LittleEndian, field); err != nil {
			return err
		}
	}

	for _, item := range entries {
		fields := []any{uint64(item.key), item.entry.Index, uint32(len(item.entry.Value))}
		for _, field := range fields {
			if err := binary.Write(bw, binary.LittleEndian, field); err != nil {
				return err
			}
		}
		if _, err := bw.Write(item.entry.Value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load replaces the database content with the snapshot read from r.
// On error the database keeps its previous content.
//
// Thread-safety: Load blocks all other operations while the new shards are swapped in.
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 64*1024)

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var seed, count uint64
	if err := binary.Read(br, binary.LittleEndian, &seed); err != nil {
		return err
	}
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	shards := newShards(maple.numShards)
	var maxIndex uint64

	for i := uint64(0); i < count; i++ {
		var (
			key      uint64
			index    uint64
			valueLen uint32
		)
		for _, field := range []any{&key, &index, &valueLen} {
			if err := binary.Read(br, binary.LittleEndian, field); err != nil {
				return err
			}
		}

		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}

		maxIndex = max(maxIndex, index)
		internal.GetShard(util.UintKey(key), shards).Data.Store(util.UintKey(key), internal.Entry{
			Value: value,
			Index: index,
		})
	}

	maple.mu.Lock()
	maple.shards = shards
	maple.seed = seed
	maple.mu.Unlock()

	maple.SetWriteIdx(maxIndex)
	Logger.Debugf("loaded %d entries (write index %d)", count, maxIndex)

	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	var (
		entries    int
		valueBytes int
		shardSizes = make([]float64, len(maple.shards))
	)
	for i, shard := range maple.shards {
		shard.Data.Range(func(_ util.UintKey, entry internal.Entry) bool {
			if !entry.Deleted {
				entries++
				valueBytes += len(entry.Value)
			}
			return true
		})
		shardSizes[i] = float64(shard.Data.Size())
	}

	// 8 bytes each for key and index plus the deleted flag
	const entryOverhead = 17

	meta := &struct {
		CurrentWriteIndex uint64                 `json:"current_write_index"`
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
	}{
		CurrentWriteIndex: maple.currIndex.Load(),
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
	}

	return db.DatabaseInfo{
		SizeBytes: valueBytes + entries*entryOverhead,
		Entries:   entries,
		DbType:    db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureGet, db.FeatureDelete, db.FeatureHas,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close drops all entries
func (maple *mapleImpl) Close() error {
	maple.mu.Lock()
	defer maple.mu.Unlock()
	for _, shard := range maple.shards {
		shard.Data.Clear()
	}
	return nil
}

// --------------------------------------------------------------------------
// Index Management
// --------------------------------------------------------------------------

// SetWriteIdx updates the current index if newIdx is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := maple.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if maple.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}

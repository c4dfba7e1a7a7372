// Package maple implements a sharded in-memory key-value engine (db.KVDB) with
// binary snapshot persistence. It is the engine behind the local store.
//
// Key Components:
//
//   - mapleImpl: the engine. It owns the shards and a monotonically increasing
//     write index. The engine does not generate write indices itself; callers pass
//     one with every write (the local store uses an atomic counter per namespace).
//
//   - Shard: a partition of the key space holding an xsync.MapOf of entries. Shards
//     are independent so that writes to different keys rarely contend.
//
//   - Entry: value bytes plus the write index of the write that produced it and a
//     deleted marker. Deleted entries are kept as markers so that a delayed write with
//     an older index can not resurrect a deleted key.
//
// Sharding: string keys are hashed with FNV-1a and a per-database seed, the hash is
// right-shifted by 7 bits and taken modulo the shard count.
//
// Snapshot format (little endian):
//
//	magic "MAPLEDB\x00" | version uint8 | seed uint64 | count uint64 |
//	count * (key uint64 | index uint64 | length uint32 | value bytes)
//
// The seed is persisted because keys are stored hashed; loading a snapshot restores
// the seed so Get(key) hashes to the same stored entry. Deleted markers are not saved.
package maple

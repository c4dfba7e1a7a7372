// Package util provides small building blocks shared by the storage engines and the
// reactive core.
//
// The package contains:
//   - functions: seed generation and the FNV-1a string hash used for shard placement
//   - queue: a lock-free Multi-Producer Single-Consumer (MPSC) queue used as the
//     write-behind queue of every reactive store
//   - statistics: summary statistics over shard sizes, reported by engine info calls
package util

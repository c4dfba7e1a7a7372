// Package db defines the interface of the embedded key-value engines that sit
// underneath the persistent stores of rKV.
//
// Key Components:
//
//   - KVDB Interface: byte-valued Set/Get/Delete/Has plus Save/Load snapshot
//     persistence. Every write carries a write-index that acts as a logical clock;
//     engines must ignore writes that are older than the entry they would replace.
//     This is what lets a write-behind queue replay out-of-order jobs safely.
//
//   - Feature Flags: implementations advertise supported operations through
//     SupportsFeature so callers can degrade gracefully.
//
//   - DatabaseInfo: standardized reporting on engine state (estimated size,
//     entry count, implementation type and implementation-specific metadata).
//
// Related Packages:
//
// The engines/maple package provides the sharded in-memory engine used by the local
// store (lib/store/lstore). The testing package provides RunKVDBTests and
// RunKVDBBenchmarks, a conformance suite every engine should pass.
package db

// Package lstore implements a local, single-node key-value store based on the
// store.IStore interface. Each namespace is backed by its own db.KVDB created by a
// store.DBFactory (usually the maple engine).
//
// Key Features:
//   - In-memory operation when no data directory is given
//   - Optional file persistence: one snapshot file per namespace
//   - Automatic write index progression per namespace using atomic operations
//   - Feature detection to handle unsupported operations gracefully
//   - Per-namespace latency timers (go-metrics) reported by GetDBInfo
//
// Implementation Details:
//
//   - Namespaces: engines live in an xsync.MapOf keyed by store.Namespace and are created
//     with LoadOrCompute, so concurrent first use of a namespace creates exactly one engine.
//
//   - Write Index Management: every namespace keeps an atomic counter that increments with
//     each write. The engine ignores writes older than the stored entry, and after a restore
//     the counter continues from the highest index found in the snapshot.
//
//   - Persistence: after each Put or Delete the whole namespace is saved with db.KVDB.Save
//     to a temporary file which then replaces <dataDir>/<db>/<store>.maple. The rename is
//     atomic, so readers of the directory never see a partial snapshot. A snapshot that
//     exists but can not be loaded makes the namespace return RetCInternalError instead of
//     silently starting empty.
//
// Usage Example:
//
//	factory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory, "/var/lib/rkv")
//	ns := store.Namespace{DBName: "app", StoreName: "settings"}
//
//	err := s.Put(ctx, ns, "theme", []byte(`"dark"`))
//	value, exists, err := s.Get(ctx, ns, "theme")
//
// Snapshots are written synchronously, so every write costs a full save of its namespace.
// That is fine for the small configuration-like namespaces reactive values live in;
// large namespaces should use the sqlstore package instead.
package lstore

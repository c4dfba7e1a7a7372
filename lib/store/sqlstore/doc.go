// Package sqlstore implements store.IStore on top of SQLite using the pure Go
// modernc.org/sqlite driver, so no cgo toolchain is needed.
//
// Layout:
//
//	<dataDir>/<DBName>.sqlite     one database file per DBName
//	  table "kv_<StoreName>"      one table per StoreName
//	    key TEXT PRIMARY KEY, value BLOB, updated_at TEXT
//
// Databases are opened and tables created lazily on first use. Every database runs in
// WAL mode with a single connection. With an empty dataDir every database lives in memory
// and is lost on Close.
//
// Latency of reads and writes is tracked per namespace with go-metrics timers and reported
// in the metadata returned by GetDBInfo.
package sqlstore

// Package store provides the persistence interface used by the reactive layer,
// together with a unified error type.
//
// Every operation is scoped to a Namespace{DBName, StoreName}. Two namespaces never share
// keys, so independent applications (or independent parts of one application) can use
// the same key names without interfering.
//
// Key Components:
//
//   - IStore Interface: Get, Put, Delete and Has by (namespace, key), plus GetDBInfo and
//     Close. All blocking methods take a context.Context.
//
//   - Error System: *Error carries a RetCode and a message. Error.Is compares codes, so
//     callers can match with errors.Is against NewError(code, "").
//
//   - DBFactory: creates the db.KVDB instances that back local namespaces.
//
// Implementations:
//
//   - Local Store (lstore): one db.KVDB per namespace. Without a data directory it is a
//     pure in-memory store; with one, every namespace is snapshotted to
//     <dir>/<db>/<store>.maple after each write and reloaded on first use.
//     Available in the "github.com/ValentinKolb/rKV/lib/store/lstore" package.
//
//   - SQLite Store (sqlstore): one SQLite database file per DBName and one table per
//     StoreName, using the pure Go modernc.org/sqlite driver.
//     Available in the "github.com/ValentinKolb/rKV/lib/store/sqlstore" package.
//
// The conformance suite in lib/store/testing is run against every implementation.
package store

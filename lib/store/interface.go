package store

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/rKV/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// Namespace names an independent collection of keys.
// DBName groups related collections (a file, a directory), StoreName selects one of them.
type Namespace struct {
	DBName    string `json:"db_name" yaml:"db_name"`
	StoreName string `json:"store_name" yaml:"store_name"`
}

// String returns "db/store"
func (ns Namespace) String() string {
	return ns.DBName + "/" + ns.StoreName
}

// Validate checks that both parts of the namespace are set and usable as path or table names.
func (ns Namespace) Validate() error {
	for _, part := range []string{ns.DBName, ns.StoreName} {
		if part == "" {
			return NewError(RetCInvalidOperation, fmt.Sprintf("invalid namespace %q: empty name", ns.String()))
		}
		if part == "." || part == ".." {
			return NewError(RetCInvalidOperation, fmt.Sprintf("invalid namespace %q: reserved name", ns.String()))
		}
		for _, r := range part {
			if r == '/' || r == '\\' || r == 0 {
				return NewError(RetCInvalidOperation, fmt.Sprintf("invalid namespace %q: illegal character %q", ns.String(), r))
			}
		}
	}
	return nil
}

// IStore is the interface the reactive layer persists values through.
// Every operation is scoped to a Namespace; namespaces never share keys.
// Errors returned by implementations are of type *Error.
type IStore interface {
	// Put inserts or updates a key-value pair.
	Put(ctx context.Context, ns Namespace, key string, value []byte) (err error)
	// Delete removes a key-value pair. Deleting a missing key is not an error.
	Delete(ctx context.Context, ns Namespace, key string) (err error)
	// Get returns the value for a key. The boolean return value indicates whether a value for the key was found.
	Get(ctx context.Context, ns Namespace, key string) (value []byte, loaded bool, err error)
	// Has returns whether a key exists in the namespace.
	Has(ctx context.Context, ns Namespace, key string) (loaded bool, err error)
	// GetDBInfo returns metadata about the database backing the namespace.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo(ns Namespace) (info db.DatabaseInfo, err error)
	// Close releases all resources. Using the store afterwards returns RetCClosed errors.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("KVStoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is an *Error with the same code,
// so errors.Is(err, store.NewError(store.RetCClosed, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCClosed                              // 4: The store was closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

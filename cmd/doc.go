// Package cmd implements the rkv command-line interface.
//
// The package is organized into several subpackages:
//
//   - cell: Commands that bind a single key, hydrate it and read, write or check it
//   - serve: Command that serves the stores of a backend over HTTP
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set with an RKV_ environment variable (e.g. RKV_BACKEND=sqlite),
// .env and .env.local files in the working directory are loaded first.
//
// See rkv -help for a list of all commands.
package cmd

// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing agent contexts, sessions and stub handlers.
// Not intended for production usage.
package testutil

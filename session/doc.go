// Package session houses concrete implementations of core.SessionStore.
// The interface and the Session type live in core so handlers and the runner
// never depend on a concrete backend. The Postgres backend lives in
// project/postgres next to the rest of the relational schema.
package session

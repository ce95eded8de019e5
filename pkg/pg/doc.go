// Package pg provides PostgreSQL connection and migration helpers for the
// Postgres-backed state and token stores.
//
// Connect builds a pgxpool with retry, Migrate applies the goose migrations
// shipped in the migrations/ directory of this module.
package pg

// Package store is the persistence boundary for normalized bars.
//
// The bars table is keyed by (symbol, date); upserts overwrite all value
// columns, so replaying a batch is a no-op in effect. Two implementations
// exist: Postgres via pgx for production and an in-memory map for the
// memory driver and tests.
package store

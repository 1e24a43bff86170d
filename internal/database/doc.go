// Package database provides the PostgreSQL connection pool for the bar
// store. The memory driver bypasses this package entirely.
package database

// Package server exposes the sync engine over HTTP: trigger endpoints,
// status snapshots, bar history reads, and a health check.
package server

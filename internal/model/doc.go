// Package model defines shared data types for the sync engine.
//
// Conventions:
//   - Dates: calendar days stored as time.Time at midnight UTC (no clock
//     component survives normalization)
//   - Prices: nullable float64 pointers, nil when the provider had no value
//   - Symbols: always uppercase
package model

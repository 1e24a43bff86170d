// Package provider implements the quote provider capability.
//
// Two backends are supported:
//   - yahoo: primary; chart API, epoch timestamps, exposes exchange
//     timezone metadata on quotes
//   - stooq: secondary; CSV download, naive dates (interpreted as UTC
//     downstream)
//
// Raw bars keep their provider-native column names and timestamp shapes.
// Canonicalization is the normalizer's job, not this package's.
package provider

// Package normalize converts provider-native rows into canonical bars.
//
// Each raw row is re-bucketed onto the exchange-local trading day:
//   - zone-aware timestamps convert into the exchange zone
//   - naive timestamps are read as UTC for sources that report UTC
//     (stooq), otherwise as already exchange-local
//
// Value columns map case-insensitively across known synonyms. Missing or
// malformed numbers become nil rather than errors; a malformed date falls
// back to a literal 10-character truncation before the row is given up on.
// One bad row never aborts the batch.
package normalize

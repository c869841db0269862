// Package catalog keeps the device's copy of the product reference dataset.
//
// A Cache holds at most one Snapshot at a time and swaps it atomically, so a
// lookup always sees a complete set of indexes. Sync compares the authority's
// content hash with the local one and downloads only on a mismatch; concurrent
// Sync calls join the one already running. When the authority is unreachable
// the previous snapshot stays in use and the failure is reported as a warning.
//
// Persisted snapshots are compressed with the configured Codec. Restore sniffs
// the payload, so catalogs written with any codec, or as plain JSON by older
// builds, still load. Corrupt or empty payloads are treated as absent.
package catalog

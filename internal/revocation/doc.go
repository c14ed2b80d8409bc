// Package revocation implements the shared certificate revocation ledger.
//
// The ledger is the one piece of state shared by every identity. It is
// append-only: a serial appears at most once and is never removed. Every
// signature verification consults it, and revocation operations from any
// identity session (or process) append to it.
//
// Two implementations of Registry are provided:
//
//   - FileRegistry persists the ledger as JSON and serializes writers with
//     an exclusive file lock, doing read-current, append-if-absent and
//     write-whole (temp file + rename) while holding it. Readers do not
//     lock; the rename guarantees they always see a complete ledger, and a
//     brief staleness window is acceptable.
//   - MemoryRegistry keeps the ledger in memory for tests and embedders.
//
// The ledger file format is:
//
//	{"revoked": [{"serial": "...", "revoked_by": "...", "timestamp": "2006-01-02T15:04:05.000000Z"}]}
package revocation

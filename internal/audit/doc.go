// Package audit records an identity's security-relevant operations.
//
// Every significant operation (create, seal, open, revoke, export, import)
// is appended to a per-identity audit log. This gives the owner a trail of
// what was done with their keys and when.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) at:
//
//	<data_dir>/users/<name>/audit.jsonl
//
// Each entry contains:
//   - Timestamp (RFC3339 with microseconds, UTC)
//   - A random entry ID
//   - User name and operation name
//   - Operation-specific details (serial, record id, verdict, etc.)
//
// # Usage
//
//	entry := audit.LogWithUser("seal", username)
//	entry.RecordID = id
//	audit.Log(filepath.Join(userDir, configs.AuditFileName), entry)
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails (permissions, disk full,
// etc.), the operation continues without error.
//
// # Reading Logs
//
// Use ReadEntries to parse the audit log. Malformed entries are silently
// skipped to handle partial writes.
package audit

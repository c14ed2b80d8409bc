// Package workflows provides high-level orchestration for inkseal commands.
//
// Workflows coordinate multiple operations across packages (configs,
// identity, secrets, exchange, records, audit) to implement complete
// user-facing features. Each workflow handles a single command's business
// logic, independent of CLI concerns like flag parsing, spinners, and output
// formatting.
//
// # Design Philosophy
//
// The cmd/ package should be a thin layer that:
//   - Parses command-line flags and arguments
//   - Reads passwords from the terminal or stdin
//   - Calls the appropriate workflow function
//   - Formats the result for display
//
// Workflows handle everything else:
//   - Resolving the identity directory and revocation ledger
//   - Unlocking the keystore under the configured KDF timeout
//   - Performing the core operation
//   - Recording audit trail entries
//
// # Available Workflows
//
//   - CreateIdentity, ShowIdentity, ChangePassword, ExportPrivateKey
//   - RevokeIdentity, ListRevocations
//   - SealRecord, UpdateRecord, OpenRecord, ListRecords, DeleteRecord
//   - ExportRecord, ImportPackages
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, allowing
// the CLI layer to provide appropriate user-facing messages without string
// matching:
//
//	result, err := workflows.OpenRecord(ctx, opts)
//	if errors.Is(err, kerrors.ErrAuthentication) {
//	    // Ask for the password again
//	}
//
// Signature problems are not errors. They are reported in result verdicts.
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// Key generation and key derivation additionally run under the timeouts from
// the [timeouts] config section; when one expires the workflow returns
// ErrAborted.
package workflows

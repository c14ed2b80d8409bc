// Package utils provides shared utility functions for inkseal.
//
// # Filesystem Utilities
//
//   - WriteFileAtomic: writes a file via a temp file, fsync and rename so a
//     crash never leaves a half-written keystore, ledger or package behind
//   - FormatPaths: formats file paths for human-readable output
//
// # System Utilities
//
//   - GetUsername: returns the current system username (default identity)
//   - SanitizeUsername: normalizes identity names for use as directory names
//
// # I/O and Terminal Utilities
//
//   - ReadPasswordStdin: reads piped passwords from standard input, one per line
//   - ReadPassphrase / ReadNewPassphrase: hidden TTY prompts
//
// # Cipher Utilities
//
//   - EncryptCBC / DecryptCBC: AES-CBC with strict PKCS#7 padding
//   - Wipe: zeroes key material once it is no longer needed
package utils

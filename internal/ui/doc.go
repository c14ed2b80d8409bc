// Package ui provides semantic text formatting for CLI output.
//
// Formatters render with color when the terminal supports it and fall back
// to plain text decorations when NO_COLOR is set or stdout is not a TTY:
//
//	ui.Code.Sprint("inkseal identity create")  // `backticks` without color
//	ui.Path.Sprint("entry.pkg")                // file paths
//	ui.Serial.Sprint(serial)                   // certificate serials, [brackets] without color
//	ui.Highlight.Sprint("alice")               // identity names, 'quotes' without color
//
// Trust verdicts have dedicated helpers so every command renders signature
// validity and revocation the same way:
//
//	ui.SignatureStatus(verdict.Valid)    // "✓ Valid" / "✗ Invalid"
//	ui.CertificateStatus(verdict.Revoked) // "✓ Active" / "✗ REVOKED"
package ui

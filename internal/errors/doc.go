// Package errors provides typed error values for inkseal.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching.
//
// # Error Categories
//
//   - Parameter errors: policy violations the caller must fix (ErrWeakParameter)
//   - State errors: operations called out of order (ErrPrecondition, ErrNoCertificate)
//   - Keystore errors: wrong password or damaged files (ErrAuthentication, ErrCorruptStore)
//   - Crypto errors: decryption failures (ErrDecryption)
//   - Lifecycle errors: cancelled or timed out work (ErrAborted)
//
// Signature verification never returns ErrInvalidSignature to callers of the
// secrets package. It is converted into a verdict with Valid set to false.
// Revocation is never a verification error either; it is reported next to
// validity. ErrCertificateRevoked is only used by workflows that refuse to
// sign with a revoked identity unless forced.
//
// # Usage
//
//	if errors.Is(err, kerrors.ErrAuthentication) {
//	    // prompt for the password again
//	}
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("loading keystore %s: %w", path, kerrors.ErrCorruptStore)
package errors

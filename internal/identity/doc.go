// Package identity manages one user's RSA key pair, self-signed certificate
// and password-protected keystore.
//
// A KeyManager is owned by a single identity session. Saves and loads of its
// keystore are expected to be sequential; the manager guards its in-memory
// state but does not coordinate KDF work across callers.
//
// # Files
//
// Each identity lives in its own directory:
//
//	<dir>/keystore.enc     - {salt, iv, data} JSON, AES-256-CBC under a PBKDF2 key
//	<dir>/certificate.pem  - the certificate in PEM form, for convenience
//
// # Failure Semantics
//
// LoadKeystore fails closed. A wrong password surfaces as ErrAuthentication,
// structural damage as ErrCorruptStore, and in either case the previously
// loaded keys are left untouched.
//
// Revocation status is delegated to an injected revocation.Registry.
package identity

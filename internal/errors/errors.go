package errors

import "errors"

// Parameter errors indicate the caller asked for something the policy forbids.
var (
	// ErrWeakParameter indicates a key size, iteration count or validity period outside policy.
	ErrWeakParameter = errors.New("parameter is outside the configured security policy")

	// ErrInvalidConfig indicates the configuration file is malformed.
	ErrInvalidConfig = errors.New("configuration is invalid")
)

// State errors indicate an operation was invoked before its prerequisites exist.
var (
	// ErrPrecondition indicates a key pair or certificate must be generated first.
	ErrPrecondition = errors.New("operation requires a key pair or certificate that does not exist yet")

	// ErrNoCertificate indicates the identity holds no certificate to export.
	ErrNoCertificate = errors.New("no certificate available to export")

	// ErrIdentityExists indicates an identity keystore already exists for the user.
	ErrIdentityExists = errors.New("identity already exists")

	// ErrIdentityNotFound indicates no identity has been created for the user.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrCertificateRevoked indicates the identity's own certificate is revoked,
	// so anything it signs now will be flagged by verifiers.
	ErrCertificateRevoked = errors.New("identity certificate has been revoked")
)

// Keystore errors indicate the password-protected key container could not be opened.
var (
	// ErrAuthentication indicates the keystore password is wrong.
	ErrAuthentication = errors.New("keystore authentication failed")

	// ErrCorruptStore indicates keystore or ledger bytes are structurally damaged.
	ErrCorruptStore = errors.New("store is corrupt")

	// ErrKeystoreNotFound indicates the keystore file does not exist.
	ErrKeystoreNotFound = errors.New("keystore not found")
)

// Cryptographic errors indicate failures during encryption, decryption or verification.
var (
	// ErrDecryption indicates a record could not be decrypted.
	// The message never says which step failed.
	ErrDecryption = errors.New("decryption failed")

	// ErrEncryption indicates a record could not be encrypted.
	ErrEncryption = errors.New("encryption failed")

	// ErrInvalidSignature is internal to verification and is never returned to callers.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Exchange and storage errors.
var (
	// ErrInvalidPackage indicates an export package could not be parsed.
	ErrInvalidPackage = errors.New("export package is invalid")

	// ErrRecordNotFound indicates the requested record does not exist in the catalog.
	ErrRecordNotFound = errors.New("record not found")

	// ErrNoFilesFound indicates no files matched the provided patterns.
	ErrNoFilesFound = errors.New("no matching files found")
)

// Lifecycle errors.
var (
	// ErrAborted indicates a long-running operation was cancelled or timed out.
	// It is always safe to retry.
	ErrAborted = errors.New("operation aborted")
)

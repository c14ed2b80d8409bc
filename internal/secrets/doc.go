// Package secrets implements hybrid record encryption and timestamp-bound
// signatures over one identity's key pair.
//
// # Encryption Architecture
//
// Each record is protected with a hybrid scheme:
//
//  1. A fresh random 256-bit AES key and 16-byte IV are drawn per record
//  2. The plaintext is encrypted with AES-CBC and PKCS#7 padding
//  3. The AES key is wrapped with the owner's RSA public key (OAEP, SHA-256)
//
// The result is an Envelope holding base64 fields. Only the owner of the
// private key can unwrap it; edits always produce a new Envelope.
//
// # Signatures
//
// Signatures cover a canonical JSON structure
//
//	{"data": "<base64(data)>", "timestamp": "<UTC timestamp>"}
//
// with keys sorted and ", " / ": " separators, signed with RSA-PSS over
// SHA-256. The timestamp lives inside the signed bytes so it cannot be
// swapped after the fact. EncryptAndSign signs the base64 ciphertext, which
// lets a verifier authenticate an envelope without decrypting it.
//
// # Verification Results
//
// Verification never returns an error. It yields a Verdict whose Valid and
// Revoked fields are independent: revoking a certificate does not make an
// earlier signature invalid. Any failure during verification produces the
// conservative Verdict{Valid: false, Revoked: false}.
//
// # Security Considerations
//
// CBC without a MAC does not detect tampering by itself. Integrity comes from
// the signature over the ciphertext, and only when the caller checks it.
// Decryption failures are reported as a single generic error so callers
// cannot tell a bad key from bad padding.
package secrets

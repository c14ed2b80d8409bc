package ui

// SignatureStatus renders signature validity.
func SignatureStatus(valid bool) string {
	if valid {
		return Success.Sprint("✓ Valid")
	}
	return Error.Sprint("✗ Invalid")
}

// CertificateStatus renders the revocation state of a signer certificate.
func CertificateStatus(revoked bool) string {
	if revoked {
		return Error.Sprint("✗ REVOKED")
	}
	return Success.Sprint("✓ Active")
}

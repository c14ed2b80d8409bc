package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
)

const (
	pemPrivateKey          = "PRIVATE KEY"
	pemRSAPrivateKey       = "RSA PRIVATE KEY"
	pemEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	pemPublicKey           = "PUBLIC KEY"
	pemCertificate         = "CERTIFICATE"
)

// ExportCertificatePEM returns the certificate in PEM form.
func (m *KeyManager) ExportCertificatePEM() ([]byte, error) {
	cert := m.Certificate()
	if cert == nil {
		return nil, fmt.Errorf("%w: no certificate has been issued", kerrors.ErrPrecondition)
	}
	return EncodeCertificatePEM(cert), nil
}

// ExportPublicKeyPEM returns the public key as a PKIX "PUBLIC KEY" block.
func (m *KeyManager) ExportPublicKeyPEM() ([]byte, error) {
	public := m.PublicKey()
	if public == nil {
		return nil, fmt.Errorf("%w: no key pair has been generated", kerrors.ErrPrecondition)
	}
	return encodePublicKeyPEM(public)
}

// ExportPrivateKeyPEM returns the private key in PKCS#8 form. With an empty
// password the key is unencrypted; otherwise it is wrapped with PBES2.
//
// This hands out the identity's secret key. Callers should only expose it
// behind an explicit operator action.
func (m *KeyManager) ExportPrivateKeyPEM(password string) ([]byte, error) {
	private := m.PrivateKey()
	if private == nil {
		return nil, fmt.Errorf("%w: no key pair has been generated", kerrors.ErrPrecondition)
	}
	if password == "" {
		return encodePrivateKeyPEM(private)
	}
	return encryptPrivateKeyPEM(private, password, m.iterations)
}

// ParsePrivateKeyPEM decodes an RSA private key exported by
// ExportPrivateKeyPEM. PKCS#1 blocks are accepted as well.
func ParsePrivateKeyPEM(data []byte, password string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block containing private key")
	}

	switch block.Type {
	case pemPrivateKey:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA private key")
		}
		return rsaKey, nil
	case pemRSAPrivateKey:
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case pemEncryptedPrivateKey:
		if password == "" {
			return nil, fmt.Errorf("%w: private key is encrypted", kerrors.ErrAuthentication)
		}
		return decryptPrivateKey(block.Bytes, password)
	default:
		return nil, fmt.Errorf("unexpected PEM block type %q", block.Type)
	}
}

// ParsePublicKeyPEM decodes a PKIX "PUBLIC KEY" block holding an RSA key.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemPublicKey {
		return nil, fmt.Errorf("failed to decode PEM block containing public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return rsaPub, nil
}

// ParseCertificatePEM decodes a single certificate. Only RSA certificates
// are accepted since every other key type is unusable for verification.
func ParseCertificatePEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemCertificate {
		return nil, fmt.Errorf("failed to decode PEM block containing certificate")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	if _, ok := cert.PublicKey.(*rsa.PublicKey); !ok {
		return nil, fmt.Errorf("certificate does not carry an RSA public key")
	}
	return cert, nil
}

func encodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: der}), nil
}

func encodePublicKeyPEM(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPublicKey, Bytes: der}), nil
}

// EncodeCertificatePEM renders cert as a CERTIFICATE block.
func EncodeCertificatePEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemCertificate, Bytes: cert.Raw})
}

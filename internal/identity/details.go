package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"
	"time"
)

// CertificateInfo is a read-only, display-oriented view of a certificate.
type CertificateInfo struct {
	Subject            string    `json:"subject" yaml:"subject"`
	Issuer             string    `json:"issuer" yaml:"issuer"`
	SerialNumber       string    `json:"serial_number" yaml:"serial_number"`
	NotValidBefore     time.Time `json:"not_valid_before" yaml:"not_valid_before"`
	NotValidAfter      time.Time `json:"not_valid_after" yaml:"not_valid_after"`
	KeyAlgorithm       string    `json:"key_algorithm" yaml:"key_algorithm"`
	SignatureAlgorithm string    `json:"signature_algorithm" yaml:"signature_algorithm"`
	Version            int       `json:"version" yaml:"version"`
	Organization       string    `json:"organization" yaml:"organization"`
	IsCA               bool      `json:"is_ca" yaml:"is_ca"`
}

// PublicKeyInfo is a read-only view of an RSA public key.
type PublicKeyInfo struct {
	Algorithm      string `json:"algorithm" yaml:"algorithm"`
	KeySize        int    `json:"key_size" yaml:"key_size"`
	PublicExponent int    `json:"public_exponent" yaml:"public_exponent"`
	ModulusLength  int    `json:"modulus_length" yaml:"modulus_length"`
	PEM            string `json:"pem" yaml:"pem"`
}

// CertificateDetails projects cert into a CertificateInfo.
func CertificateDetails(cert *x509.Certificate) CertificateInfo {
	info := CertificateInfo{
		Subject:            cert.Subject.CommonName,
		Issuer:             cert.Issuer.CommonName,
		SerialNumber:       SerialString(cert),
		NotValidBefore:     cert.NotBefore.UTC(),
		NotValidAfter:      cert.NotAfter.UTC(),
		KeyAlgorithm:       cert.PublicKeyAlgorithm.String(),
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		Version:            cert.Version,
		Organization:       "None",
		IsCA:               cert.BasicConstraintsValid && cert.IsCA,
	}
	if key, ok := cert.PublicKey.(*rsa.PublicKey); ok {
		info.KeyAlgorithm = fmt.Sprintf("RSA %d", key.N.BitLen())
	}
	if len(cert.Subject.Organization) > 0 {
		info.Organization = strings.Join(cert.Subject.Organization, ", ")
	}
	return info
}

// PublicKeyDetails describes the manager's public key.
func (m *KeyManager) PublicKeyDetails() (PublicKeyInfo, error) {
	pemBytes, err := m.ExportPublicKeyPEM()
	if err != nil {
		return PublicKeyInfo{}, err
	}
	public := m.PublicKey()
	return PublicKeyInfo{
		Algorithm:      "RSA",
		KeySize:        public.Size() * 8,
		PublicExponent: public.E,
		ModulusLength:  public.N.BitLen(),
		PEM:            string(pemBytes),
	}, nil
}

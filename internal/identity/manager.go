package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"time"

	"github.com/PolarWolf314/inkseal/internal/configs"
	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	logger "github.com/PolarWolf314/inkseal/internal/logging"
	"github.com/PolarWolf314/inkseal/internal/revocation"
)

const publicExponent = 65537

// Option configures a KeyManager.
type Option func(*KeyManager)

// WithMinBits sets the smallest key size GenerateKeyPair accepts.
// Values below 2048 are raised to 2048.
func WithMinBits(bits int) Option {
	return func(m *KeyManager) {
		if bits < configs.AbsoluteMinKeyBits {
			bits = configs.AbsoluteMinKeyBits
		}
		m.minBits = bits
	}
}

// WithKDFIterations sets the PBKDF2 iteration count used when saving.
func WithKDFIterations(n int) Option {
	return func(m *KeyManager) {
		m.iterations = n
	}
}

// WithLogger sets the logger used for progress and warnings.
func WithLogger(l logger.Logger) Option {
	return func(m *KeyManager) {
		m.log = l
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *KeyManager) {
		m.now = now
	}
}

// KeyManager owns one identity's key material.
type KeyManager struct {
	dir        string
	registry   revocation.Registry
	minBits    int
	iterations int
	log        logger.Logger
	now        func() time.Time

	mu      sync.RWMutex
	private *rsa.PrivateKey
	cert    *x509.Certificate
}

// NewKeyManager creates a manager for the identity stored in dir.
func NewKeyManager(dir string, registry revocation.Registry, opts ...Option) *KeyManager {
	m := &KeyManager{
		dir:        dir,
		registry:   registry,
		minBits:    configs.AbsoluteMinKeyBits,
		iterations: configs.MinKDFIterations,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// KeystorePath returns the location of the encrypted keystore.
func (m *KeyManager) KeystorePath() string {
	return filepath.Join(m.dir, configs.KeystoreFileName)
}

// CertificatePath returns the location of the exported certificate.
func (m *KeyManager) CertificatePath() string {
	return filepath.Join(m.dir, configs.CertificateFileName)
}

// GenerateKeyPair creates a fresh RSA key pair, discarding any previous
// key and certificate. It returns ErrAborted if ctx ends first.
func (m *KeyManager) GenerateKeyPair(ctx context.Context, bits int) error {
	if bits < m.minBits {
		return fmt.Errorf("%w: key size %d is below the minimum of %d bits", kerrors.ErrWeakParameter, bits, m.minBits)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: key generation: %v", kerrors.ErrAborted, err)
	}

	type result struct {
		key *rsa.PrivateKey
		err error
	}
	done := make(chan result, 1)
	go func() {
		key, err := rsa.GenerateKey(rand.Reader, bits)
		done <- result{key, err}
	}()

	var key *rsa.PrivateKey
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: key generation: %v", kerrors.ErrAborted, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("failed to generate RSA key pair: %w", r.err)
		}
		key = r.key
	}
	if key.E != publicExponent {
		return fmt.Errorf("unexpected public exponent %d", key.E)
	}

	m.mu.Lock()
	m.private = key
	m.cert = nil
	m.mu.Unlock()

	m.log.Debugf("Generated %d-bit RSA key pair", bits)
	return nil
}

// IssueSelfSignedCertificate binds a new certificate to the current key pair.
func (m *KeyManager) IssueSelfSignedCertificate(subject string, validityDays int) (*x509.Certificate, error) {
	if validityDays <= 0 {
		return nil, fmt.Errorf("%w: certificate validity must be at least one day, got %d", kerrors.ErrWeakParameter, validityDays)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.private == nil {
		return nil, fmt.Errorf("%w: generate a key pair before issuing a certificate", kerrors.ErrPrecondition)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	name := pkix.Name{CommonName: subject}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               name,
		Issuer:                name,
		NotBefore:             now,
		NotAfter:              now.AddDate(0, 0, validityDays),
		BasicConstraintsValid: true,
		IsCA:                  false,
		SignatureAlgorithm:    x509.SHA256WithRSA,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &m.private.PublicKey, m.private)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse issued certificate: %w", err)
	}

	m.cert = cert
	m.log.Debugf("Issued certificate %s for %s", SerialString(cert), subject)
	return cert, nil
}

// randomSerial returns a uniformly random positive 128-bit integer.
func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	for {
		serial, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to generate certificate serial: %w", err)
		}
		if serial.Sign() > 0 {
			return serial, nil
		}
	}
}

// HasKeyPair reports whether a private key is loaded or generated.
func (m *KeyManager) HasKeyPair() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.private != nil
}

// PrivateKey returns the private key, or nil before keygen or load.
func (m *KeyManager) PrivateKey() *rsa.PrivateKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.private
}

// PublicKey returns the public half of the key pair, or nil.
func (m *KeyManager) PublicKey() *rsa.PublicKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.private == nil {
		return nil
	}
	return &m.private.PublicKey
}

// Certificate returns the issued certificate, or nil.
func (m *KeyManager) Certificate() *x509.Certificate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cert
}

// CertificateSerial returns the decimal serial of the certificate, or "" if none.
func (m *KeyManager) CertificateSerial() string {
	return SerialString(m.Certificate())
}

// SerialString formats a certificate serial as a decimal string.
func SerialString(cert *x509.Certificate) string {
	if cert == nil || cert.SerialNumber == nil {
		return ""
	}
	return cert.SerialNumber.String()
}

// IsRevoked reports whether serial is present in the revocation registry.
func (m *KeyManager) IsRevoked(ctx context.Context, serial string) (bool, error) {
	if serial == "" {
		return false, nil
	}
	return m.registry.Contains(ctx, serial)
}

// Revoke adds serial to the revocation registry. It reports whether the
// serial had already been revoked.
func (m *KeyManager) Revoke(ctx context.Context, serial, actor string) (alreadyRevoked bool, err error) {
	if serial == "" {
		return false, fmt.Errorf("%w: no certificate serial to revoke", kerrors.ErrPrecondition)
	}
	added, err := m.registry.Append(ctx, revocation.NewEntry(serial, actor, m.now()))
	if err != nil {
		return false, err
	}
	if added {
		m.log.Infof("Revoked certificate %s", serial)
	}
	return !added, nil
}

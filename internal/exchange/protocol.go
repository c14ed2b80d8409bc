package exchange

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/identity"
	logger "github.com/PolarWolf314/inkseal/internal/logging"
	"github.com/PolarWolf314/inkseal/internal/secrets"
)

// CertificateHolder is the exporting and importing identity.
// *identity.KeyManager satisfies it.
type CertificateHolder interface {
	Certificate() *x509.Certificate
	IsRevoked(ctx context.Context, serial string) (bool, error)
}

// Metadata describes a record outside its envelope.
type Metadata struct {
	Title        string `json:"title" yaml:"title"`
	Created      string `json:"created" yaml:"created"`
	ImportedFrom string `json:"imported_from,omitempty" yaml:"imported_from,omitempty"`
}

// ImportResult is the trust evaluation of an imported package.
// SelfSigned and Expired are informational and do not affect SignatureValid.
type ImportResult struct {
	EntryID        string
	Metadata       Metadata
	Envelope       secrets.Envelope
	SignatureValid bool
	Revoked        bool
	Stale          bool
	Certificate    *x509.Certificate
	SelfSigned     bool
	Expired        bool
}

type Option func(*Protocol)

// WithLogger sets the logger used for import warnings.
func WithLogger(l logger.Logger) Option {
	return func(p *Protocol) {
		p.log = l
	}
}

// WithClock overrides the clock used to judge certificate expiry.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) {
		p.now = now
	}
}

// Protocol exports and imports packages on behalf of one identity.
type Protocol struct {
	holder CertificateHolder
	crypto *secrets.CryptoManager
	log    logger.Logger
	now    func() time.Time
}

// NewProtocol returns a protocol that exports with holder's certificate
// and verifies and re-seals with cm.
func NewProtocol(holder CertificateHolder, cm *secrets.CryptoManager, opts ...Option) *Protocol {
	p := &Protocol{
		holder: holder,
		crypto: cm,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Export bundles env with its metadata and the holder's certificate.
func (p *Protocol) Export(recordID string, meta Metadata, env *secrets.Envelope) (*Package, error) {
	cert := p.holder.Certificate()
	if cert == nil {
		return nil, kerrors.ErrNoCertificate
	}
	if env == nil {
		return nil, fmt.Errorf("%w: nothing to export", kerrors.ErrPrecondition)
	}
	if !env.Signed() {
		p.log.Warnf("Exporting unsigned record %s; importers will not be able to verify it", recordID)
	}

	return &Package{
		EntryID:           recordID,
		Title:             meta.Title,
		Created:           meta.Created,
		EncryptedData:     *env,
		SignerCertificate: string(identity.EncodeCertificatePEM(cert)),
	}, nil
}

// Import evaluates pkg against the embedded certificate and the importer's
// view of the revocation registry.
func (p *Protocol) Import(ctx context.Context, pkg *Package) (*ImportResult, error) {
	if pkg == nil {
		return nil, kerrors.ErrInvalidPackage
	}
	if err := pkg.validate(); err != nil {
		return nil, err
	}
	cert, err := identity.ParseCertificatePEM([]byte(pkg.SignerCertificate))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPackage, err)
	}

	serial := identity.SerialString(cert)
	revoked, err := p.holder.IsRevoked(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation status of %s: %w", serial, err)
	}

	env := pkg.EncryptedData
	var verdict secrets.Verdict
	if env.Signed() {
		if env.CertSerial != "" && env.CertSerial != serial {
			p.log.Warnf("Envelope claims certificate %s but package carries %s", env.CertSerial, serial)
		}
		verdict = p.crypto.Verify(ctx, []byte(env.Ciphertext), env.Signature, env.SignedTimestamp, serial, secrets.Signed{Certificate: cert})
	} else {
		p.log.Warnf("Package %s carries no signature", pkg.EntryID)
	}

	now := p.now()
	return &ImportResult{
		EntryID: pkg.EntryID,
		Metadata: Metadata{
			Title:        pkg.Title,
			Created:      pkg.Created,
			ImportedFrom: cert.Subject.CommonName,
		},
		Envelope:       env,
		SignatureValid: verdict.Valid,
		Revoked:        revoked,
		Stale:          verdict.Stale,
		Certificate:    cert,
		SelfSigned:     selfSigned(cert),
		Expired:        now.Before(cert.NotBefore) || now.After(cert.NotAfter),
	}, nil
}

// Adopt decrypts env with the holder's own key and seals it again with a
// fresh key and signature. It fails with ErrDecryption when env was not
// encrypted for the holder.
func (p *Protocol) Adopt(ctx context.Context, env *secrets.Envelope) (*secrets.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrAborted, err)
	}
	plaintext, err := p.crypto.Decrypt(env)
	if err != nil {
		return nil, err
	}
	return p.crypto.EncryptAndSign(plaintext)
}

func selfSigned(cert *x509.Certificate) bool {
	if cert.Subject.String() != cert.Issuer.String() {
		return false
	}
	// CheckSignatureFrom would reject a non-CA parent, so check the raw signature.
	return cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature) == nil
}

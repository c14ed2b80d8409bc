package secrets

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
)

// KeyMaterial names the key a signature is checked against: either a bare
// RawKey or a Signed certificate. A nil KeyMaterial means the owner's key.
type KeyMaterial interface {
	publicKey() (*rsa.PublicKey, error)
}

// RawKey is a bare RSA public key.
type RawKey struct {
	Key *rsa.PublicKey
}

func (k RawKey) publicKey() (*rsa.PublicKey, error) {
	if k.Key == nil {
		return nil, fmt.Errorf("no public key")
	}
	return k.Key, nil
}

// Signed is a certificate whose embedded key verifies the signature.
type Signed struct {
	Certificate *x509.Certificate
}

func (s Signed) publicKey() (*rsa.PublicKey, error) {
	if s.Certificate == nil {
		return nil, fmt.Errorf("no certificate")
	}
	key, ok := s.Certificate.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate does not carry an RSA key")
	}
	return key, nil
}

// Verdict is the outcome of a signature check.
type Verdict struct {
	// Valid reports that the signature verifies (and, when freshness is
	// enforced, is recent enough).
	Valid bool
	// Revoked reports that the signer's certificate is on the revocation
	// ledger. It is independent of Valid.
	Revoked bool
	// Stale reports that the signed timestamp is older than the freshness window.
	Stale bool
}

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}

// canonicalPayload builds the exact bytes that are signed. The layout matches
// a key-sorted JSON object with ", " and ": " separators.
func canonicalPayload(data []byte, timestamp string) ([]byte, error) {
	encodedData, err := json.Marshal(base64.StdEncoding.EncodeToString(data))
	if err != nil {
		return nil, err
	}
	encodedTimestamp, err := json.Marshal(timestamp)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"data": `)
	buf.Write(encodedData)
	buf.WriteString(`, "timestamp": `)
	buf.Write(encodedTimestamp)
	buf.WriteString(`}`)
	return buf.Bytes(), nil
}

// Sign signs data bound to the current time.
func (c *CryptoManager) Sign(data []byte) (*SignatureInfo, error) {
	private := c.owner.PrivateKey()
	if private == nil {
		return nil, fmt.Errorf("%w: no private key loaded", kerrors.ErrPrecondition)
	}

	timestamp := FormatTimestamp(c.now())
	payload, err := canonicalPayload(data, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to build signed payload: %w", err)
	}
	digest := sha256.Sum256(payload)

	signature, err := rsa.SignPSS(c.random, private, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	return &SignatureInfo{
		Signature:       base64.StdEncoding.EncodeToString(signature),
		SignedTimestamp: timestamp,
		CertSerial:      c.owner.CertificateSerial(),
	}, nil
}

// Verify checks signature over data and timestamp, and independently looks
// up serial in the revocation registry. It never fails; problems show up as
// Verdict{Valid: false, Revoked: false}.
func (c *CryptoManager) Verify(ctx context.Context, data []byte, signature, timestamp, serial string, material KeyMaterial) Verdict {
	verdict, err := c.verify(ctx, data, signature, timestamp, serial, material)
	if err != nil {
		if !errors.Is(err, kerrors.ErrInvalidSignature) {
			c.log.Warnf("Signature verification error: %v", err)
		}
		return Verdict{}
	}
	return verdict
}

func (c *CryptoManager) verify(ctx context.Context, data []byte, signature, timestamp, serial string, material KeyMaterial) (Verdict, error) {
	var verdict Verdict

	if serial != "" {
		revoked, err := c.owner.IsRevoked(ctx, serial)
		if err != nil {
			return Verdict{}, fmt.Errorf("revocation lookup failed: %w", err)
		}
		verdict.Revoked = revoked
		if revoked {
			c.log.Infof("Certificate %s has been revoked", serial)
		}
	}

	var public *rsa.PublicKey
	if material == nil {
		public = c.owner.PublicKey()
		if public == nil {
			return Verdict{}, fmt.Errorf("no public key available")
		}
	} else {
		key, err := material.publicKey()
		if err != nil {
			return Verdict{}, err
		}
		public = key
	}

	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return Verdict{}, fmt.Errorf("signature is not base64: %w", err)
	}
	payload, err := canonicalPayload(data, timestamp)
	if err != nil {
		return Verdict{}, err
	}
	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPSS(public, crypto.SHA256, digest[:], raw, pssOptions); err != nil {
		return Verdict{}, kerrors.ErrInvalidSignature
	}
	verdict.Valid = true

	if c.stale(timestamp) {
		verdict.Stale = true
		c.log.Warnf("Signature timestamp is older than %d days", c.freshness.MaxAgeDays)
		if c.freshness.Enforce {
			verdict.Valid = false
		}
	}
	return verdict, nil
}

// stale reports whether more than MaxAgeDays whole days have passed since
// timestamp. Unparseable timestamps are not considered stale.
func (c *CryptoManager) stale(timestamp string) bool {
	if c.freshness.MaxAgeDays <= 0 {
		return false
	}
	signed, err := ParseTimestamp(timestamp)
	if err != nil {
		return false
	}
	days := int(c.now().Sub(signed) / (24 * time.Hour))
	return days > c.freshness.MaxAgeDays
}

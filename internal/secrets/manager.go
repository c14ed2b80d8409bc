package secrets

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	logger "github.com/PolarWolf314/inkseal/internal/logging"
	"github.com/PolarWolf314/inkseal/internal/utils"
)

const (
	symmetricKeySize = 32
	ivSize           = 16
)

// KeyOwner supplies the key material and revocation status a CryptoManager
// works with. *identity.KeyManager satisfies it.
type KeyOwner interface {
	PublicKey() *rsa.PublicKey
	PrivateKey() *rsa.PrivateKey
	CertificateSerial() string
	IsRevoked(ctx context.Context, serial string) (bool, error)
}

// FreshnessPolicy controls how old a signature may be.
// When Enforce is false, stale signatures are only flagged.
type FreshnessPolicy struct {
	Enforce    bool
	MaxAgeDays int
}

// DefaultFreshness flags signatures older than 30 days without rejecting them.
var DefaultFreshness = FreshnessPolicy{Enforce: false, MaxAgeDays: 30}

type Option func(*CryptoManager)

// WithFreshness sets the signature age policy.
func WithFreshness(policy FreshnessPolicy) Option {
	return func(c *CryptoManager) {
		c.freshness = policy
	}
}

// WithLogger sets the logger used for verification warnings.
func WithLogger(l logger.Logger) Option {
	return func(c *CryptoManager) {
		c.log = l
	}
}

// WithClock overrides the clock used for timestamps and age checks.
func WithClock(now func() time.Time) Option {
	return func(c *CryptoManager) {
		c.now = now
	}
}

// WithRandom replaces crypto/rand as the source of keys, IVs and padding.
func WithRandom(r io.Reader) Option {
	return func(c *CryptoManager) {
		c.random = r
	}
}

// CryptoManager holds no state of its own beyond configuration.
type CryptoManager struct {
	owner     KeyOwner
	freshness FreshnessPolicy
	log       logger.Logger
	now       func() time.Time
	random    io.Reader
}

// NewCryptoManager returns a manager that encrypts to and signs with owner's keys.
func NewCryptoManager(owner KeyOwner, opts ...Option) *CryptoManager {
	c := &CryptoManager{
		owner:     owner,
		freshness: DefaultFreshness,
		now:       time.Now,
		random:    rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt protects plaintext under a fresh symmetric key wrapped for the owner.
func (c *CryptoManager) Encrypt(plaintext []byte) (*Envelope, error) {
	public := c.owner.PublicKey()
	if public == nil {
		return nil, fmt.Errorf("%w: %w: no public key loaded", kerrors.ErrEncryption, kerrors.ErrPrecondition)
	}

	key := make([]byte, symmetricKeySize)
	if _, err := io.ReadFull(c.random, key); err != nil {
		return nil, fmt.Errorf("%w: failed to generate symmetric key: %v", kerrors.ErrEncryption, err)
	}
	defer utils.Wipe(key)

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(c.random, iv); err != nil {
		return nil, fmt.Errorf("%w: failed to generate IV: %v", kerrors.ErrEncryption, err)
	}

	ciphertext, err := utils.EncryptCBC(key, iv, plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrEncryption, err)
	}

	wrapped, err := rsa.EncryptOAEP(sha256.New(), c.random, public, key, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to wrap symmetric key: %v", kerrors.ErrEncryption, err)
	}

	return &Envelope{
		EncryptedKey: base64.StdEncoding.EncodeToString(wrapped),
		IV:           base64.StdEncoding.EncodeToString(iv),
		Ciphertext:   base64.StdEncoding.EncodeToString(ciphertext),
		Timestamp:    FormatTimestamp(c.now()),
	}, nil
}

// Decrypt recovers the plaintext of env. Every failure is reported as
// ErrDecryption without saying which step failed.
func (c *CryptoManager) Decrypt(env *Envelope) ([]byte, error) {
	plaintext, err := c.decrypt(env)
	if err != nil {
		c.log.Debugf("Decryption failed")
		return nil, kerrors.ErrDecryption
	}
	return plaintext, nil
}

func (c *CryptoManager) decrypt(env *Envelope) ([]byte, error) {
	private := c.owner.PrivateKey()
	if private == nil || env == nil {
		return nil, kerrors.ErrPrecondition
	}
	wrapped, err := base64.StdEncoding.DecodeString(env.EncryptedKey)
	if err != nil {
		return nil, err
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, err
	}

	key, err := rsa.DecryptOAEP(sha256.New(), nil, private, wrapped, nil)
	if err != nil {
		return nil, err
	}
	defer utils.Wipe(key)
	if len(key) != symmetricKeySize {
		return nil, kerrors.ErrDecryption
	}

	return utils.DecryptCBC(key, iv, ciphertext)
}

// EncryptAndSign encrypts plaintext and signs the resulting base64 ciphertext.
func (c *CryptoManager) EncryptAndSign(plaintext []byte) (*Envelope, error) {
	env, err := c.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	sig, err := c.Sign([]byte(env.Ciphertext))
	if err != nil {
		return nil, err
	}
	env.Signature = sig.Signature
	env.SignedTimestamp = sig.SignedTimestamp
	env.CertSerial = sig.CertSerial
	return env, nil
}

// VerifyAndDecrypt checks the envelope signature against the owner's key and
// decrypts it. An unsigned envelope yields a zero Verdict. A decryption
// failure is returned as ErrDecryption along with the verdict.
func (c *CryptoManager) VerifyAndDecrypt(ctx context.Context, env *Envelope) ([]byte, Verdict, error) {
	if env == nil {
		return nil, Verdict{}, kerrors.ErrDecryption
	}
	var verdict Verdict
	if env.Signed() {
		verdict = c.Verify(ctx, []byte(env.Ciphertext), env.Signature, env.SignedTimestamp, env.CertSerial, nil)
	}
	plaintext, err := c.Decrypt(env)
	if err != nil {
		return nil, verdict, err
	}
	return plaintext, verdict, nil
}

package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/PolarWolf314/inkseal/internal/audit"
	"github.com/PolarWolf314/inkseal/internal/configs"
	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/identity"
	"github.com/PolarWolf314/inkseal/internal/utils"
)

// CreateIdentityOptions configures the identity create workflow.
type CreateIdentityOptions struct {
	IdentityOptions

	// Bits is the RSA modulus size. Zero uses keys.default_bits.
	Bits int

	// ValidityDays overrides keys.validity_days when positive.
	ValidityDays int
}

// CreateIdentityResult contains the outcome of a create operation.
type CreateIdentityResult struct {
	Username        string
	Serial          string
	Directory       string
	KeystorePath    string
	CertificatePath string
	Bits            int
	NotAfter        time.Time
}

// CreateIdentity generates a key pair and self-signed certificate for a new
// identity and stores them under the given password.
func CreateIdentity(ctx context.Context, opts CreateIdentityOptions) (*CreateIdentityResult, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", kerrors.ErrInvalidConfig)
	}
	if err := requirePassword(opts.Password); err != nil {
		return nil, err
	}

	exists, err := cfg.IdentityExists(opts.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrIdentityExists, opts.Username)
	}
	dir, err := cfg.UserDirectory(opts.Username)
	if err != nil {
		return nil, err
	}

	bits := opts.Bits
	if bits == 0 {
		bits = cfg.Keys.DefaultBits
	}
	validity := opts.ValidityDays
	if validity <= 0 {
		validity = cfg.Keys.ValidityDays
	}

	keys := opts.keyManager(dir, opts.registry())

	keygenCtx, cancel := withTimeout(ctx, cfg.Timeouts.Keygen.Duration)
	defer cancel()
	opts.Logger.Infof("Generating %d-bit RSA key for %s", bits, opts.Username)
	if err := keys.GenerateKeyPair(keygenCtx, bits); err != nil {
		return nil, err
	}

	cert, err := keys.IssueSelfSignedCertificate(opts.Username, validity)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, username: opts.Username, dir: dir, keys: keys, log: opts.Logger}
	if err := s.saveKeystore(ctx, opts.Password); err != nil {
		return nil, err
	}

	serial := identity.SerialString(cert)
	entry := audit.LogWithUser("create", opts.Username)
	entry.Serial = serial
	audit.Log(s.auditPath(), entry)

	return &CreateIdentityResult{
		Username:        opts.Username,
		Serial:          serial,
		Directory:       dir,
		KeystorePath:    keys.KeystorePath(),
		CertificatePath: keys.CertificatePath(),
		Bits:            bits,
		NotAfter:        cert.NotAfter.UTC(),
	}, nil
}

// ShowIdentityResult describes an unlocked identity.
type ShowIdentityResult struct {
	Username    string                   `json:"username" yaml:"username"`
	Certificate identity.CertificateInfo `json:"certificate" yaml:"certificate"`
	PublicKey   identity.PublicKeyInfo   `json:"public_key" yaml:"public_key"`
	Revoked     bool                     `json:"revoked" yaml:"revoked"`
}

// ShowIdentity unlocks the identity and reports its certificate, public key
// and revocation status.
func ShowIdentity(ctx context.Context, opts IdentityOptions) (*ShowIdentityResult, error) {
	s, err := openSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	cert := s.keys.Certificate()
	if cert == nil {
		return nil, kerrors.ErrNoCertificate
	}

	pub, err := s.keys.PublicKeyDetails()
	if err != nil {
		return nil, err
	}
	revoked, err := s.keys.IsRevoked(ctx, s.keys.CertificateSerial())
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation status: %w", err)
	}

	return &ShowIdentityResult{
		Username:    s.username,
		Certificate: identity.CertificateDetails(cert),
		PublicKey:   pub,
		Revoked:     revoked,
	}, nil
}

// ChangePasswordOptions configures the passwd workflow.
type ChangePasswordOptions struct {
	IdentityOptions

	// NewPassword replaces Password.
	NewPassword string
}

// ChangePassword re-encrypts the keystore under a new password. The old
// keystore stays in place if anything fails.
func ChangePassword(ctx context.Context, opts ChangePasswordOptions) error {
	if err := requirePassword(opts.NewPassword); err != nil {
		return err
	}
	s, err := openSession(ctx, opts.IdentityOptions)
	if err != nil {
		return err
	}
	if err := s.saveKeystore(ctx, opts.NewPassword); err != nil {
		return err
	}
	audit.Log(s.auditPath(), audit.LogWithUser("passwd", s.username))
	return nil
}

// ListIdentities returns every identity under the data directory.
func ListIdentities(cfg *configs.Config) ([]string, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", kerrors.ErrInvalidConfig)
	}
	return cfg.ListIdentities()
}

// ExportPrivateKeyOptions configures the export-key workflow.
type ExportPrivateKeyOptions struct {
	IdentityOptions

	// TransportPassword encrypts the exported key. Empty exports it in the clear.
	TransportPassword string

	// OutputPath is where the PEM file is written.
	OutputPath string
}

// ExportPrivateKeyResult contains the outcome of an export-key operation.
type ExportPrivateKeyResult struct {
	OutputPath string
	Encrypted  bool
}

// ExportPrivateKey writes the identity's private key as PKCS#8 PEM.
func ExportPrivateKey(ctx context.Context, opts ExportPrivateKeyOptions) (*ExportPrivateKeyResult, error) {
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("%w: no output path", kerrors.ErrPrecondition)
	}
	s, err := openSession(ctx, opts.IdentityOptions)
	if err != nil {
		return nil, err
	}

	data, err := s.keys.ExportPrivateKeyPEM(opts.TransportPassword)
	if err != nil {
		return nil, err
	}
	if err := utils.WriteFileAtomic(opts.OutputPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}
	encrypted := opts.TransportPassword != ""
	if !encrypted {
		s.log.Warnf("Private key written to %s without a transport password", opts.OutputPath)
	}

	entry := audit.LogWithUser("export-key", s.username)
	entry.OutputPath = opts.OutputPath
	entry.Encrypted = encrypted
	audit.Log(s.auditPath(), entry)

	return &ExportPrivateKeyResult{OutputPath: opts.OutputPath, Encrypted: encrypted}, nil
}

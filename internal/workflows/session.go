package workflows

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/PolarWolf314/inkseal/internal/configs"
	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/identity"
	logger "github.com/PolarWolf314/inkseal/internal/logging"
	"github.com/PolarWolf314/inkseal/internal/records"
	"github.com/PolarWolf314/inkseal/internal/revocation"
	"github.com/PolarWolf314/inkseal/internal/secrets"
)

// IdentityOptions selects and unlocks one identity. It is embedded in the
// options of every workflow that needs the keystore.
type IdentityOptions struct {
	// Config supplies paths, policy and timeouts. Required.
	Config *configs.Config

	// Username is the identity to act as.
	Username string

	// Password unlocks the identity's keystore.
	Password string

	// Registry overrides the shared file-backed revocation ledger.
	Registry revocation.Registry

	// Logger receives progress and warnings. The zero value only prints
	// warnings and errors.
	Logger logger.Logger
}

// session is one identity with its keystore unlocked.
type session struct {
	cfg      *configs.Config
	username string
	dir      string
	keys     *identity.KeyManager
	crypto   *secrets.CryptoManager
	log      logger.Logger
}

func (o IdentityOptions) registry() revocation.Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return revocation.NewFileRegistry(o.Config.Paths.RevocationLedger)
}

func (o IdentityOptions) keyManager(dir string, registry revocation.Registry) *identity.KeyManager {
	return identity.NewKeyManager(dir, registry,
		identity.WithMinBits(o.Config.Keys.MinBits),
		identity.WithKDFIterations(o.Config.Keystore.KDFIterations),
		identity.WithLogger(o.Logger),
	)
}

// openSession resolves the identity directory and unlocks the keystore.
func openSession(ctx context.Context, opts IdentityOptions) (*session, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: no configuration", kerrors.ErrInvalidConfig)
	}
	dir, err := opts.Config.RequireIdentity(opts.Username)
	if err != nil {
		return nil, err
	}

	registry := opts.registry()
	keys := opts.keyManager(dir, registry)

	kdfCtx, cancel := withTimeout(ctx, opts.Config.Timeouts.KDF.Duration)
	defer cancel()
	if err := keys.LoadKeystore(kdfCtx, opts.Password); err != nil {
		return nil, err
	}
	opts.Logger.Infof("Unlocked identity %s", opts.Username)

	return &session{
		cfg:      opts.Config,
		username: opts.Username,
		dir:      dir,
		keys:     keys,
		crypto:   newCryptoManager(opts.Config, keys, opts.Logger),
		log:      opts.Logger,
	}, nil
}

func newCryptoManager(cfg *configs.Config, keys *identity.KeyManager, log logger.Logger) *secrets.CryptoManager {
	return secrets.NewCryptoManager(keys,
		secrets.WithFreshness(secrets.FreshnessPolicy{
			Enforce:    cfg.Verification.EnforceFreshness,
			MaxAgeDays: cfg.Verification.MaxAgeDays,
		}),
		secrets.WithLogger(log),
	)
}

func (s *session) auditPath() string {
	return filepath.Join(s.dir, configs.AuditFileName)
}

func (s *session) store() *records.Store {
	return records.NewStore(filepath.Join(s.dir, configs.RecordsDirName))
}

// saveKeystore writes the keystore under the configured KDF timeout.
func (s *session) saveKeystore(ctx context.Context, password string) error {
	kdfCtx, cancel := withTimeout(ctx, s.cfg.Timeouts.KDF.Duration)
	defer cancel()
	return s.keys.SaveKeystore(kdfCtx, password)
}

// withTimeout applies d to ctx when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// requirePassword rejects empty passwords before any work is done.
func requirePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password must not be empty", kerrors.ErrWeakParameter)
	}
	return nil
}

package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
)

const (
	// MinKDFIterations is the lowest PBKDF2 iteration count a keystore may use.
	MinKDFIterations = 100000

	// MaxKDFIterations caps the PBKDF2 iteration count accepted from config
	// and from encrypted private keys being imported.
	MaxKDFIterations = 10 * MinKDFIterations

	// AbsoluteMinKeyBits is the floor for keys.min_bits itself.
	AbsoluteMinKeyBits = 2048
)

type Config struct {
	Keys         KeysConfig         `toml:"keys"`
	Keystore     KeystoreConfig     `toml:"keystore"`
	Verification VerificationConfig `toml:"verification"`
	Paths        PathsConfig        `toml:"paths"`
	Timeouts     TimeoutsConfig     `toml:"timeouts"`
}

type KeysConfig struct {
	MinBits      int `toml:"min_bits"`
	DefaultBits  int `toml:"default_bits"`
	ValidityDays int `toml:"validity_days"`
}

type KeystoreConfig struct {
	KDFIterations int `toml:"kdf_iterations"`
}

type VerificationConfig struct {
	EnforceFreshness bool `toml:"enforce_freshness"`
	MaxAgeDays       int  `toml:"max_age_days"`
}

type PathsConfig struct {
	DataDir          string `toml:"data_dir"`
	RevocationLedger string `toml:"revocation_ledger"`
}

type TimeoutsConfig struct {
	Keygen Duration `toml:"keygen"`
	KDF    Duration `toml:"kdf"`
}

// Duration is a time.Duration that reads and writes Go duration strings in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Keys: KeysConfig{
			MinBits:      2048,
			DefaultBits:  2048,
			ValidityDays: 365,
		},
		Keystore: KeystoreConfig{
			KDFIterations: MinKDFIterations,
		},
		Verification: VerificationConfig{
			EnforceFreshness: false,
			MaxAgeDays:       30,
		},
		Timeouts: TimeoutsConfig{
			Keygen: Duration{2 * time.Minute},
			KDF:    Duration{30 * time.Second},
		},
	}
}

// DefaultConfigPath returns the config file location, honouring INKSEAL_CONFIG.
func DefaultConfigPath() (string, error) {
	if p := os.Getenv("INKSEAL_CONFIG"); p != "" {
		return p, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(configDir, "inkseal", "config.toml"), nil
}

// DefaultDataDir returns <XDG_DATA_HOME>/inkseal, falling back to ~/.local/share/inkseal.
func DefaultDataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "inkseal"), nil
}

// Load reads the configuration at path, applies defaults for anything the
// file omits, resolves paths and validates the result.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); err == nil {
		unknown, err := LoadTOML(path, config)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", kerrors.ErrInvalidConfig, path, err)
		}
		if len(unknown) > 0 {
			return nil, fmt.Errorf("%w: unknown keys %s", kerrors.ErrInvalidConfig, strings.Join(unknown, ", "))
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	if err := config.resolvePaths(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save writes the configuration to path.
func Save(path string, config *Config) error {
	if err := SaveTOML(path, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (c *Config) resolvePaths() error {
	if c.Paths.DataDir == "" {
		dataDir, err := DefaultDataDir()
		if err != nil {
			return err
		}
		c.Paths.DataDir = dataDir
	}
	if c.Paths.RevocationLedger == "" {
		c.Paths.RevocationLedger = filepath.Join(c.Paths.DataDir, "revoked_certificates.json")
	}
	return nil
}

// Validate checks the configuration against the security floor.
func (c *Config) Validate() error {
	if c.Keys.MinBits < AbsoluteMinKeyBits {
		return fmt.Errorf("%w: keys.min_bits %d is below %d", kerrors.ErrWeakParameter, c.Keys.MinBits, AbsoluteMinKeyBits)
	}
	if c.Keys.DefaultBits < c.Keys.MinBits {
		return fmt.Errorf("%w: keys.default_bits %d is below keys.min_bits %d", kerrors.ErrWeakParameter, c.Keys.DefaultBits, c.Keys.MinBits)
	}
	if c.Keys.ValidityDays <= 0 {
		return fmt.Errorf("%w: keys.validity_days must be positive", kerrors.ErrInvalidConfig)
	}
	if c.Keystore.KDFIterations < MinKDFIterations {
		return fmt.Errorf("%w: keystore.kdf_iterations %d is below %d", kerrors.ErrWeakParameter, c.Keystore.KDFIterations, MinKDFIterations)
	}
	if c.Keystore.KDFIterations > MaxKDFIterations {
		return fmt.Errorf("%w: keystore.kdf_iterations %d is above %d", kerrors.ErrInvalidConfig, c.Keystore.KDFIterations, MaxKDFIterations)
	}
	if c.Verification.MaxAgeDays <= 0 {
		return fmt.Errorf("%w: verification.max_age_days must be positive", kerrors.ErrInvalidConfig)
	}
	if c.Timeouts.Keygen.Duration < 0 || c.Timeouts.KDF.Duration < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", kerrors.ErrInvalidConfig)
	}
	return nil
}

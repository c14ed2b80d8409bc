package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/utils"
)

const (
	KeystoreFileName    = "keystore.enc"
	CertificateFileName = "certificate.pem"
	AuditFileName       = "audit.jsonl"
	RecordsDirName      = "records"
)

// UsersDir returns the directory holding one sub-directory per identity.
func (c *Config) UsersDir() string {
	return filepath.Join(c.Paths.DataDir, "users")
}

// UserDirectory returns the directory owned by username.
func (c *Config) UserDirectory(username string) (string, error) {
	name := utils.SanitizeUsername(username)
	if name == "" || name != username {
		return "", fmt.Errorf("invalid identity name %q (use lowercase letters, digits, '-', '_' or '.')", username)
	}
	return filepath.Join(c.UsersDir(), name), nil
}

// IdentityExists reports whether username already has a keystore.
func (c *Config) IdentityExists(username string) (bool, error) {
	dir, err := c.UserDirectory(username)
	if err != nil {
		return false, err
	}
	return utils.FileExists(filepath.Join(dir, KeystoreFileName))
}

// ListIdentities returns the names of every identity with a keystore, sorted.
func (c *Config) ListIdentities() ([]string, error) {
	entries, err := os.ReadDir(c.UsersDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read users directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ok, err := utils.FileExists(filepath.Join(c.UsersDir(), entry.Name(), KeystoreFileName))
		if err != nil {
			return nil, err
		}
		if ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// RequireIdentity returns the user directory or ErrIdentityNotFound.
func (c *Config) RequireIdentity(username string) (string, error) {
	dir, err := c.UserDirectory(username)
	if err != nil {
		return "", err
	}
	ok, err := utils.FileExists(filepath.Join(dir, KeystoreFileName))
	if err != nil {
		return "", fmt.Errorf("failed to check keystore for %s: %w", username, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", kerrors.ErrIdentityNotFound, username)
	}
	return dir, nil
}

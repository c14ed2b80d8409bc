package workflows

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/PolarWolf314/inkseal/internal/configs"
	logger "github.com/PolarWolf314/inkseal/internal/logging"
)

const testPassword = "correct horse battery staple"

var (
	templateOnce sync.Once
	templateDir  string
	templateErr  error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if templateDir != "" {
		_ = os.RemoveAll(templateDir)
	}
	os.Exit(code)
}

func baseConfig(dataDir string) *configs.Config {
	cfg := configs.Default()
	cfg.Keys.DefaultBits = 2048
	cfg.Paths.DataDir = dataDir
	cfg.Paths.RevocationLedger = filepath.Join(dataDir, "revocations.json")
	return cfg
}

// templateIdentities creates alice and bob once per test binary.
func templateIdentities(t *testing.T) string {
	t.Helper()
	templateOnce.Do(func() {
		templateDir, templateErr = os.MkdirTemp("", "inkseal-workflows-")
		if templateErr != nil {
			return
		}
		cfg := baseConfig(templateDir)
		for _, name := range []string{"alice", "bob"} {
			_, templateErr = CreateIdentity(context.Background(), CreateIdentityOptions{
				IdentityOptions: IdentityOptions{Config: cfg, Username: name, Password: testPassword, Logger: quietLogger()},
			})
			if templateErr != nil {
				templateErr = fmt.Errorf("create %s: %w", name, templateErr)
				return
			}
		}
	})
	if templateErr != nil {
		t.Fatalf("Failed to create template identities: %v", templateErr)
	}
	return templateDir
}

// newTestConfig returns a config whose data directory holds fresh copies of
// the template identities and an empty revocation ledger.
func newTestConfig(t *testing.T) *configs.Config {
	t.Helper()
	src := filepath.Join(templateIdentities(t), "users")
	dataDir := t.TempDir()
	dst := filepath.Join(dataDir, "users")

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0700)
		}
		// Audit logs belong to the template run.
		if d.Name() == configs.AuditFileName {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode().Perm())
	})
	if err != nil {
		t.Fatalf("Failed to copy template identities: %v", err)
	}
	return baseConfig(dataDir)
}

func quietLogger() logger.Logger {
	return logger.Logger{Stderr: io.Discard}
}

func as(cfg *configs.Config, username string) IdentityOptions {
	return IdentityOptions{Config: cfg, Username: username, Password: testPassword, Logger: quietLogger()}
}

package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
)

const cliPassword = "cli test password"

var recordIDPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func createCLIIdentity(t *testing.T, name string) {
	t.Helper()
	output, err := runCLI(t, []string{cliPassword}, "identity", "create", "--user", name)
	if err != nil {
		t.Fatalf("identity create failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "created") {
		t.Fatalf("Expected creation message, got: %s", output)
	}
}

func sealCLIRecord(t *testing.T, name, title, body string) string {
	t.Helper()
	output, err := runCLI(t, []string{cliPassword}, "record", "seal", "--user", name, "--title", title, "--body", body)
	if err != nil {
		t.Fatalf("record seal failed: %v\n%s", err, output)
	}
	id := recordIDPattern.FindString(output)
	if id == "" {
		t.Fatalf("Expected a record id in output, got: %s", output)
	}
	return id
}

func TestIdentityLifecycle(t *testing.T) {
	setupTestConfig(t)
	createCLIIdentity(t, "alice")

	output, err := runCLI(t, []string{cliPassword}, "identity", "show", "--user", "alice", "--output", "yaml")
	if err != nil {
		t.Fatalf("identity show failed: %v\n%s", err, output)
	}
	var shown struct {
		Username    string `yaml:"username"`
		Certificate struct {
			Subject      string `yaml:"subject"`
			KeyAlgorithm string `yaml:"key_algorithm"`
		} `yaml:"certificate"`
		Revoked bool `yaml:"revoked"`
	}
	if err := yaml.Unmarshal([]byte(output), &shown); err != nil {
		t.Fatalf("Expected YAML output, got %v:\n%s", err, output)
	}
	if shown.Username != "alice" || shown.Certificate.Subject != "alice" || shown.Certificate.KeyAlgorithm != "RSA 2048" {
		t.Errorf("Unexpected identity: %+v", shown)
	}

	output, err = runCLI(t, nil, "identity", "list")
	if err != nil {
		t.Fatalf("identity list failed: %v", err)
	}
	if !strings.Contains(output, "alice") {
		t.Errorf("Expected alice in list, got: %s", output)
	}

	output, err = runCLI(t, []string{"wrong password"}, "identity", "show", "--user", "alice")
	if !errors.Is(err, kerrors.ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication exit, got %v", err)
	}
	if !strings.Contains(output, "Wrong password") {
		t.Errorf("Expected wrong password hint, got: %s", output)
	}

	output, err = runCLI(t, []string{cliPassword}, "identity", "revoke", "--user", "alice")
	if err != nil {
		t.Fatalf("identity revoke failed: %v\n%s", err, output)
	}
	output, err = runCLI(t, nil, "revocations")
	if err != nil {
		t.Fatalf("revocations failed: %v", err)
	}
	if !strings.Contains(output, "alice") {
		t.Errorf("Expected alice on the ledger, got: %s", output)
	}

	output, err = runCLI(t, []string{cliPassword}, "record", "seal", "--user", "alice", "--title", "x", "--body", "y")
	if err != nil {
		t.Fatalf("Expected refused seal to exit cleanly, got %v", err)
	}
	if !strings.Contains(output, "--force") {
		t.Errorf("Expected revoked-certificate hint, got: %s", output)
	}
}

func TestCreateExistingIdentity(t *testing.T) {
	setupTestConfig(t)
	createCLIIdentity(t, "bob")

	output, err := runCLI(t, []string{cliPassword}, "identity", "create", "--user", "bob")
	if err != nil {
		t.Fatalf("Expected clean exit, got %v", err)
	}
	if !strings.Contains(output, "Failed to create identity") {
		t.Errorf("Expected failure message, got: %s", output)
	}
}

func TestRecordCommands(t *testing.T) {
	setupTestConfig(t)
	createCLIIdentity(t, "alice")

	id := sealCLIRecord(t, "alice", "Diary", "dear diary")

	output, err := runCLI(t, []string{cliPassword}, "record", "open", id, "--user", "alice")
	if err != nil {
		t.Fatalf("record open failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "dear diary") || !strings.Contains(output, "Valid") {
		t.Errorf("Expected contents and valid signature, got: %s", output)
	}

	output, err = runCLI(t, []string{cliPassword}, "record", "update", id, "--user", "alice", "--title", "Journal", "--tag", "personal")
	if err != nil {
		t.Fatalf("record update failed: %v\n%s", err, output)
	}

	output, err = runCLI(t, nil, "record", "list", "--user", "alice", "--query", "personal")
	if err != nil {
		t.Fatalf("record list failed: %v", err)
	}
	if !strings.Contains(output, id) || !strings.Contains(output, "Journal") {
		t.Errorf("Expected updated record in list, got: %s", output)
	}

	out := filepath.Join(t.TempDir(), "diary.txt")
	if _, err := runCLI(t, []string{cliPassword}, "record", "open", id, "--user", "alice", "--out", out); err != nil {
		t.Fatalf("record open --out failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Expected contents file: %v", err)
	}
	if string(data) != "dear diary" {
		t.Errorf("Expected 'dear diary', got %q", data)
	}

	if _, err := runCLI(t, []string{cliPassword}, "record", "delete", id, "--user", "alice"); err != nil {
		t.Fatalf("record delete failed: %v", err)
	}
	output, _ = runCLI(t, nil, "record", "list", "--user", "alice")
	if !strings.Contains(output, "No records") {
		t.Errorf("Expected empty list, got: %s", output)
	}
}

func TestExportAndImportCommands(t *testing.T) {
	setupTestConfig(t)
	createCLIIdentity(t, "alice")
	createCLIIdentity(t, "bob")

	id := sealCLIRecord(t, "alice", "Letter", "hi bob")
	dir := t.TempDir()
	pkgPath := filepath.Join(dir, "letter.pkg")

	output, err := runCLI(t, []string{cliPassword}, "export", id, "--user", "alice", "--out", pkgPath)
	if err != nil {
		t.Fatalf("export failed: %v\n%s", err, output)
	}
	if _, err := os.Stat(pkgPath); err != nil {
		t.Fatalf("Expected package file: %v", err)
	}

	output, err = runCLI(t, []string{cliPassword}, "import", dir, "--user", "bob")
	if err != nil {
		t.Fatalf("import failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Letter") || !strings.Contains(output, "Valid") || !strings.Contains(output, "Active") {
		t.Errorf("Expected valid active package, got: %s", output)
	}

	output, err = runCLI(t, []string{cliPassword}, "import", pkgPath, "--user", "alice", "--adopt")
	if err != nil {
		t.Fatalf("import --adopt failed: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Adopted") || !strings.Contains(output, "Saved as") {
		t.Errorf("Expected adoption summary, got: %s", output)
	}
}

func TestPasswordStdinRunsOut(t *testing.T) {
	setupTestConfig(t)

	_, err := runCLI(t, []string{}, "identity", "create", "--user", "carol")
	if err == nil || !strings.Contains(err.Error(), "not enough passwords") {
		t.Errorf("Expected not enough passwords error, got %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	cfg := setupTestConfig(t)

	output, err := runCLI(t, nil, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(output, "kdf_iterations = 100000") || !strings.Contains(output, cfg.Paths.DataDir) {
		t.Errorf("Expected effective config, got: %s", output)
	}
}

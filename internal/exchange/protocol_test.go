package exchange

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/identity"
	"github.com/PolarWolf314/inkseal/internal/revocation"
	"github.com/PolarWolf314/inkseal/internal/secrets"
)

type party struct {
	km       *identity.KeyManager
	cm       *secrets.CryptoManager
	protocol *Protocol
}

var (
	partiesOnce sync.Once
	alice, bob  *party
	partiesErr  error
	ledger      *revocation.MemoryRegistry
)

// parties returns alice and bob sharing one revocation registry. Keys are
// generated once per test binary.
func parties(t *testing.T) (*party, *party, *revocation.MemoryRegistry) {
	t.Helper()
	partiesOnce.Do(func() {
		ledger = revocation.NewMemoryRegistry()
		dir, err := os.MkdirTemp("", "inkseal-exchange-")
		if err != nil {
			partiesErr = err
			return
		}
		alice, partiesErr = newParty(filepath.Join(dir, "alice"), "alice", ledger)
		if partiesErr != nil {
			return
		}
		bob, partiesErr = newParty(filepath.Join(dir, "bob"), "bob", ledger)
	})
	if partiesErr != nil {
		t.Fatalf("Failed to set up identities: %v", partiesErr)
	}
	return alice, bob, ledger
}

func newParty(dir, name string, registry revocation.Registry) (*party, error) {
	km := identity.NewKeyManager(dir, registry)
	if err := km.GenerateKeyPair(context.Background(), 2048); err != nil {
		return nil, err
	}
	if _, err := km.IssueSelfSignedCertificate(name, 365); err != nil {
		return nil, err
	}
	cm := secrets.NewCryptoManager(km)
	return &party{km: km, cm: cm, protocol: NewProtocol(km, cm)}, nil
}

func TestExportImport_Fidelity(t *testing.T) {
	a, b, _ := parties(t)
	ctx := context.Background()

	env, err := a.cm.EncryptAndSign([]byte("shared thought"))
	if err != nil {
		t.Fatalf("EncryptAndSign failed: %v", err)
	}
	pkg, err := a.protocol.Export("rec-1", Metadata{Title: "Monday", Created: "2024-01-01T00:00:00Z"}, env)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(pkg.SignerCertificate, "BEGIN CERTIFICATE") {
		t.Fatalf("Expected PEM certificate in package")
	}

	result, err := b.protocol.Import(ctx, pkg)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !result.SignatureValid {
		t.Errorf("Expected valid signature")
	}
	if result.Revoked {
		t.Errorf("Expected unrevoked certificate")
	}
	if identity.SerialString(result.Certificate) != a.km.CertificateSerial() {
		t.Errorf("Expected serial %s, got %s", a.km.CertificateSerial(), identity.SerialString(result.Certificate))
	}
	if result.Metadata.ImportedFrom != "alice" || result.Metadata.Title != "Monday" {
		t.Errorf("Unexpected metadata: %+v", result.Metadata)
	}
	if !result.SelfSigned || result.Expired {
		t.Errorf("Expected self-signed, unexpired certificate, got self=%v expired=%v", result.SelfSigned, result.Expired)
	}

	// Import proves authenticity, not access.
	if _, err := b.cm.Decrypt(&result.Envelope); !errors.Is(err, kerrors.ErrDecryption) {
		t.Errorf("Expected bob to be unable to decrypt, got: %v", err)
	}
	if _, err := b.protocol.Adopt(ctx, &result.Envelope); !errors.Is(err, kerrors.ErrDecryption) {
		t.Errorf("Expected adopt to fail for bob, got: %v", err)
	}
}

func TestImport_ReportsRevocation(t *testing.T) {
	_, b, registry := parties(t)
	ctx := context.Background()

	other, err := newParty(filepath.Join(t.TempDir(), "carol"), "carol", registry)
	if err != nil {
		t.Fatalf("Failed to create third identity: %v", err)
	}

	env, _ := other.cm.EncryptAndSign([]byte("before revocation"))
	pkg, err := other.protocol.Export("rec-2", Metadata{Title: "t"}, env)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if _, err := other.km.Revoke(ctx, other.km.CertificateSerial(), "carol"); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	result, err := b.protocol.Import(ctx, pkg)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !result.SignatureValid || !result.Revoked {
		t.Errorf("Expected valid and revoked, got valid=%v revoked=%v", result.SignatureValid, result.Revoked)
	}
}

func TestImport_TamperedPackage(t *testing.T) {
	a, b, _ := parties(t)
	env, _ := a.cm.EncryptAndSign([]byte("original"))
	pkg, _ := a.protocol.Export("rec-3", Metadata{Title: "t"}, env)

	// Swap in bob's certificate: the signature no longer matches.
	bobPEM, _ := b.km.ExportCertificatePEM()
	forged := *pkg
	forged.SignerCertificate = string(bobPEM)

	result, err := b.protocol.Import(context.Background(), &forged)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.SignatureValid {
		t.Errorf("Expected invalid signature with substituted certificate")
	}
}

func TestImport_InvalidCertificate(t *testing.T) {
	a, b, _ := parties(t)
	env, _ := a.cm.EncryptAndSign([]byte("x"))
	pkg, _ := a.protocol.Export("rec-4", Metadata{}, env)
	pkg.SignerCertificate = "-----BEGIN CERTIFICATE-----\nAAAA\n-----END CERTIFICATE-----\n"

	if _, err := b.protocol.Import(context.Background(), pkg); !errors.Is(err, kerrors.ErrInvalidPackage) {
		t.Errorf("Expected ErrInvalidPackage, got: %v", err)
	}
	if _, err := b.protocol.Import(context.Background(), nil); !errors.Is(err, kerrors.ErrInvalidPackage) {
		t.Errorf("Expected ErrInvalidPackage for nil package, got: %v", err)
	}
}

func TestImport_UnsignedEnvelope(t *testing.T) {
	a, b, _ := parties(t)
	env, _ := a.cm.Encrypt([]byte("no signature"))
	pkg, err := a.protocol.Export("rec-5", Metadata{}, env)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	result, err := b.protocol.Import(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if result.SignatureValid {
		t.Errorf("Expected unsigned envelope to be reported as not valid")
	}
}

func TestImport_ExpiredIsInformational(t *testing.T) {
	a, b, _ := parties(t)
	env, _ := a.cm.EncryptAndSign([]byte("x"))
	pkg, _ := a.protocol.Export("rec-6", Metadata{}, env)

	future := NewProtocol(b.km, b.cm, WithClock(func() time.Time { return time.Now().AddDate(5, 0, 0) }))
	result, err := future.Import(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !result.Expired {
		t.Errorf("Expected certificate to be reported expired")
	}
	if !result.SignatureValid {
		t.Errorf("Expected expiry not to affect signature validity")
	}
}

func TestExport_RequiresCertificate(t *testing.T) {
	km := identity.NewKeyManager(t.TempDir(), revocation.NewMemoryRegistry())
	p := NewProtocol(km, secrets.NewCryptoManager(km))
	_, err := p.Export("id", Metadata{}, &secrets.Envelope{})
	if !errors.Is(err, kerrors.ErrNoCertificate) {
		t.Errorf("Expected ErrNoCertificate, got: %v", err)
	}
}

func TestAdopt_ReSealsUnderOwnKey(t *testing.T) {
	a, _, _ := parties(t)
	ctx := context.Background()

	env, _ := a.cm.EncryptAndSign([]byte("mine"))
	adopted, err := a.protocol.Adopt(ctx, env)
	if err != nil {
		t.Fatalf("Adopt failed: %v", err)
	}
	if adopted.Ciphertext == env.Ciphertext || adopted.EncryptedKey == env.EncryptedKey {
		t.Errorf("Expected fresh key material after adopt")
	}
	plaintext, verdict, err := a.cm.VerifyAndDecrypt(ctx, adopted)
	if err != nil {
		t.Fatalf("VerifyAndDecrypt failed: %v", err)
	}
	if string(plaintext) != "mine" || !verdict.Valid {
		t.Errorf("Unexpected adopt result %q %+v", plaintext, verdict)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := a.protocol.Adopt(cancelled, env); !errors.Is(err, kerrors.ErrAborted) {
		t.Errorf("Expected ErrAborted, got: %v", err)
	}
}

func TestWriteReadPackage(t *testing.T) {
	a, b, _ := parties(t)
	env, _ := a.cm.EncryptAndSign([]byte("on disk"))
	pkg, _ := a.protocol.Export("rec-7", Metadata{Title: "File", Created: "2024-02-02T00:00:00Z"}, env)

	path := filepath.Join(t.TempDir(), "rec-7"+FileExtension)
	if err := WritePackage(path, pkg); err != nil {
		t.Fatalf("WritePackage failed: %v", err)
	}
	loaded, err := ReadPackage(path)
	if err != nil {
		t.Fatalf("ReadPackage failed: %v", err)
	}
	if loaded.EntryID != "rec-7" || loaded.Title != "File" || loaded.EncryptedData != pkg.EncryptedData {
		t.Errorf("Package changed across write/read: %+v", loaded)
	}

	result, err := b.protocol.Import(context.Background(), loaded)
	if err != nil || !result.SignatureValid {
		t.Errorf("Expected loaded package to verify, got %v %v", result, err)
	}
}

func TestParsePackage_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":         "{",
		"missing cert":     `{"entry_id":"x","encrypted_data":{"encrypted_key":"a","iv":"b","ciphertext":"c"}}`,
		"missing envelope": `{"entry_id":"x","signer_certificate":"pem"}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParsePackage([]byte(input)); !errors.Is(err, kerrors.ErrInvalidPackage) {
				t.Errorf("Expected ErrInvalidPackage, got: %v", err)
			}
		})
	}
}

package identity

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/PolarWolf314/inkseal/internal/configs"
	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/revocation"
	"github.com/PolarWolf314/inkseal/internal/utils"
)

const testPassword = "correct horse battery staple"

func TestKeystore_RoundTripIsByteIdentical(t *testing.T) {
	m, registry := newTestManager(t, "alice")
	ctx := context.Background()

	wantPrivate, _ := m.ExportPrivateKeyPEM("")
	wantPublic, _ := m.ExportPublicKeyPEM()
	wantCert, _ := m.ExportCertificatePEM()

	if err := m.SaveKeystore(ctx, testPassword); err != nil {
		t.Fatalf("SaveKeystore failed: %v", err)
	}

	loaded := NewKeyManager(m.dir, registry)
	if err := loaded.LoadKeystore(ctx, testPassword); err != nil {
		t.Fatalf("LoadKeystore failed: %v", err)
	}

	gotPrivate, _ := loaded.ExportPrivateKeyPEM("")
	gotPublic, _ := loaded.ExportPublicKeyPEM()
	gotCert, _ := loaded.ExportCertificatePEM()
	if !bytes.Equal(gotPrivate, wantPrivate) {
		t.Errorf("Private key PEM changed across save/load")
	}
	if !bytes.Equal(gotPublic, wantPublic) {
		t.Errorf("Public key PEM changed across save/load")
	}
	if !bytes.Equal(gotCert, wantCert) {
		t.Errorf("Certificate PEM changed across save/load")
	}
}

func TestKeystore_FileLayout(t *testing.T) {
	m, _ := newTestManager(t, "alice")
	if err := m.SaveKeystore(context.Background(), testPassword); err != nil {
		t.Fatalf("SaveKeystore failed: %v", err)
	}

	raw, err := os.ReadFile(m.KeystorePath())
	if err != nil {
		t.Fatalf("Failed to read keystore: %v", err)
	}
	var doc map[string]string
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Keystore is not a flat JSON object: %v", err)
	}
	for _, field := range []string{"salt", "iv", "data"} {
		if _, ok := doc[field]; !ok {
			t.Errorf("Expected field %q in keystore", field)
		}
	}
	if len(doc) != 3 {
		t.Errorf("Expected exactly 3 fields with default iterations, got %d", len(doc))
	}
	if bytes.Contains(raw, []byte("PRIVATE KEY")) {
		t.Errorf("Keystore leaks plaintext key material")
	}

	certPEM, err := os.ReadFile(m.CertificatePath())
	if err != nil {
		t.Fatalf("Expected certificate file, got: %v", err)
	}
	if _, err := ParseCertificatePEM(certPEM); err != nil {
		t.Errorf("Expected parseable certificate file, got: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(m.KeystorePath())
		if err != nil {
			t.Fatalf("Failed to stat keystore: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("Expected keystore mode 0600, got %o", info.Mode().Perm())
		}
	}
}

func TestKeystore_FreshSaltAndIVPerSave(t *testing.T) {
	m, _ := newTestManager(t, "alice")
	ctx := context.Background()

	read := func() keystoreFile {
		raw, err := os.ReadFile(m.KeystorePath())
		if err != nil {
			t.Fatalf("Failed to read keystore: %v", err)
		}
		var f keystoreFile
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("Failed to parse keystore: %v", err)
		}
		return f
	}

	if err := m.SaveKeystore(ctx, testPassword); err != nil {
		t.Fatalf("SaveKeystore failed: %v", err)
	}
	first := read()
	if err := m.SaveKeystore(ctx, testPassword); err != nil {
		t.Fatalf("SaveKeystore failed: %v", err)
	}
	second := read()

	if first.Salt == second.Salt {
		t.Errorf("Expected a fresh salt on every save")
	}
	if first.IV == second.IV {
		t.Errorf("Expected a fresh IV on every save")
	}
}

func TestKeystore_WrongPasswordKeepsState(t *testing.T) {
	m, _ := newTestManager(t, "alice")
	ctx := context.Background()
	if err := m.SaveKeystore(ctx, testPassword); err != nil {
		t.Fatalf("SaveKeystore failed: %v", err)
	}

	before := m.PrivateKey()
	beforeCert := m.Certificate()

	err := m.LoadKeystore(ctx, "wrong password")
	if !errors.Is(err, kerrors.ErrAuthentication) {
		t.Fatalf("Expected ErrAuthentication, got: %v", err)
	}
	if m.PrivateKey() != before || m.Certificate() != beforeCert {
		t.Errorf("Expected in-memory state to be unchanged after failed load")
	}

	fresh := NewKeyManager(m.dir, revocation.NewMemoryRegistry())
	if err := fresh.LoadKeystore(ctx, "wrong password"); !errors.Is(err, kerrors.ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got: %v", err)
	}
	if fresh.HasKeyPair() {
		t.Errorf("Expected no key pair after failed load")
	}
}

func TestKeystore_NotFound(t *testing.T) {
	m := NewKeyManager(filepath.Join(t.TempDir(), "nobody"), revocation.NewMemoryRegistry())
	err := m.LoadKeystore(context.Background(), testPassword)
	if !errors.Is(err, kerrors.ErrKeystoreNotFound) {
		t.Errorf("Expected ErrKeystoreNotFound, got: %v", err)
	}
}

func TestKeystore_SavePreconditions(t *testing.T) {
	m := NewKeyManager(t.TempDir(), revocation.NewMemoryRegistry())
	if err := m.SaveKeystore(context.Background(), testPassword); !errors.Is(err, kerrors.ErrPrecondition) {
		t.Errorf("Expected ErrPrecondition without keys, got: %v", err)
	}

	weak := NewKeyManager(t.TempDir(), revocation.NewMemoryRegistry(), WithKDFIterations(1000))
	weak.private = sharedKey(t)
	if err := weak.SaveKeystore(context.Background(), testPassword); !errors.Is(err, kerrors.ErrWeakParameter) {
		t.Errorf("Expected ErrWeakParameter for low iteration count, got: %v", err)
	}
}

func TestKeystore_CustomIterationsAreRecorded(t *testing.T) {
	dir := t.TempDir()
	m := NewKeyManager(dir, revocation.NewMemoryRegistry(), WithKDFIterations(configs.MinKDFIterations+1))
	m.private = sharedKey(t)
	ctx := context.Background()
	if err := m.SaveKeystore(ctx, testPassword); err != nil {
		t.Fatalf("SaveKeystore failed: %v", err)
	}

	loaded := NewKeyManager(dir, revocation.NewMemoryRegistry())
	if err := loaded.LoadKeystore(ctx, testPassword); err != nil {
		t.Fatalf("Expected load with default options to honour stored iterations, got: %v", err)
	}
}

func TestKeystore_CertificateIsOptional(t *testing.T) {
	dir := t.TempDir()
	m := NewKeyManager(dir, revocation.NewMemoryRegistry())
	m.private = sharedKey(t)
	ctx := context.Background()
	if err := m.SaveKeystore(ctx, testPassword); err != nil {
		t.Fatalf("SaveKeystore failed: %v", err)
	}
	if exists, _ := utils.FileExists(m.CertificatePath()); exists {
		t.Errorf("Expected no certificate file without a certificate")
	}

	loaded := NewKeyManager(dir, revocation.NewMemoryRegistry())
	if err := loaded.LoadKeystore(ctx, testPassword); err != nil {
		t.Fatalf("LoadKeystore failed: %v", err)
	}
	if loaded.Certificate() != nil {
		t.Errorf("Expected no certificate after load")
	}
	if _, err := loaded.ExportCertificatePEM(); !errors.Is(err, kerrors.ErrPrecondition) {
		t.Errorf("Expected ErrPrecondition exporting a missing certificate, got: %v", err)
	}
}

func TestKeystore_CorruptOuterDocument(t *testing.T) {
	valid := keystoreFile{
		Salt: base64.StdEncoding.EncodeToString(make([]byte, saltSize)),
		IV:   base64.StdEncoding.EncodeToString(make([]byte, ivSize)),
		Data: base64.StdEncoding.EncodeToString(make([]byte, 32)),
	}
	mutate := func(f func(*keystoreFile)) []byte {
		doc := valid
		f(&doc)
		raw, _ := json.Marshal(doc)
		return raw
	}

	cases := map[string][]byte{
		"not json":        []byte("{{{"),
		"bad salt base64": mutate(func(k *keystoreFile) { k.Salt = "!!" }),
		"short salt":      mutate(func(k *keystoreFile) { k.Salt = base64.StdEncoding.EncodeToString([]byte("short")) }),
		"short iv":        mutate(func(k *keystoreFile) { k.IV = base64.StdEncoding.EncodeToString([]byte("short")) }),
		"partial block":   mutate(func(k *keystoreFile) { k.Data = base64.StdEncoding.EncodeToString(make([]byte, 17)) }),
		"empty data":      mutate(func(k *keystoreFile) { k.Data = "" }),
		"low iterations":  mutate(func(k *keystoreFile) { k.Iterations = 10 }),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, configs.KeystoreFileName), raw, 0600); err != nil {
				t.Fatalf("Failed to write keystore: %v", err)
			}
			m := NewKeyManager(dir, revocation.NewMemoryRegistry())
			err := m.LoadKeystore(context.Background(), testPassword)
			if !errors.Is(err, kerrors.ErrCorruptStore) {
				t.Errorf("Expected ErrCorruptStore, got: %v", err)
			}
		})
	}
}

// writeKeystore encrypts an arbitrary inner payload the way SaveKeystore does.
func writeKeystore(t *testing.T, dir string, inner []byte) {
	t.Helper()
	salt := make([]byte, saltSize)
	iv := make([]byte, ivSize)
	_, _ = rand.Read(salt)
	_, _ = rand.Read(iv)
	key, err := deriveKey(context.Background(), testPassword, salt, configs.MinKDFIterations)
	if err != nil {
		t.Fatalf("deriveKey failed: %v", err)
	}
	ciphertext, err := utils.EncryptCBC(key, iv, inner)
	if err != nil {
		t.Fatalf("EncryptCBC failed: %v", err)
	}
	raw, _ := json.Marshal(keystoreFile{
		Salt: base64.StdEncoding.EncodeToString(salt),
		IV:   base64.StdEncoding.EncodeToString(iv),
		Data: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err := os.WriteFile(filepath.Join(dir, configs.KeystoreFileName), raw, 0600); err != nil {
		t.Fatalf("Failed to write keystore: %v", err)
	}
}

func TestKeystore_CorruptInnerPayload(t *testing.T) {
	key := sharedKey(t)
	privatePEM, _ := encodePrivateKeyPEM(key)
	publicPEM, _ := encodePublicKeyPEM(&key.PublicKey)
	b64 := base64.StdEncoding.EncodeToString

	other, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("Failed to generate second key: %v", err)
	}
	otherPublicPEM, _ := encodePublicKeyPEM(&other.PublicKey)

	cases := []struct {
		name  string
		inner []byte
		want  error
	}{
		{"not json", []byte("plain garbage"), kerrors.ErrAuthentication},
		{"bad private pem", mustJSON(t, keystorePayload{PrivateKey: b64([]byte("nope")), PublicKey: b64(publicPEM)}), kerrors.ErrCorruptStore},
		{"private not base64", mustJSON(t, keystorePayload{PrivateKey: "%%%", PublicKey: b64(publicPEM)}), kerrors.ErrCorruptStore},
		{"mismatched public key", mustJSON(t, keystorePayload{PrivateKey: b64(privatePEM), PublicKey: b64(otherPublicPEM)}), kerrors.ErrCorruptStore},
		{"bad certificate", mustJSON(t, keystorePayload{PrivateKey: b64(privatePEM), PublicKey: b64(publicPEM), Certificate: b64([]byte("junk"))}), kerrors.ErrCorruptStore},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeKeystore(t, dir, tc.inner)
			m := NewKeyManager(dir, revocation.NewMemoryRegistry())
			err := m.LoadKeystore(context.Background(), testPassword)
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got: %v", tc.want, err)
			}
			if m.HasKeyPair() {
				t.Errorf("Expected no key pair after failed load")
			}
		})
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	return data
}

func TestKeystore_CancelledContext(t *testing.T) {
	m, _ := newTestManager(t, "alice")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.SaveKeystore(ctx, testPassword); !errors.Is(err, kerrors.ErrAborted) {
		t.Errorf("Expected ErrAborted, got: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	m, _ := newTestManager(t, "alice")
	ctx := context.Background()
	if err := m.SaveKeystore(ctx, testPassword); err != nil {
		t.Fatalf("SaveKeystore failed: %v", err)
	}

	if err := m.ChangePassword(ctx, "not it", "new-password"); !errors.Is(err, kerrors.ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication with wrong old password, got: %v", err)
	}
	if err := m.ChangePassword(ctx, testPassword, "new-password"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if err := m.LoadKeystore(ctx, testPassword); !errors.Is(err, kerrors.ErrAuthentication) {
		t.Errorf("Expected old password to stop working, got: %v", err)
	}
	if err := m.LoadKeystore(ctx, "new-password"); err != nil {
		t.Errorf("Expected new password to work, got: %v", err)
	}
}

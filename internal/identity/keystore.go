package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/PolarWolf314/inkseal/internal/configs"
	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/utils"
)

const (
	saltSize = 16
	ivSize   = 16
	keySize  = 32
)

// keystoreFile is the outer, on-disk document. Iterations is only written
// when it differs from the default count.
type keystoreFile struct {
	Salt       string `json:"salt"`
	IV         string `json:"iv"`
	Data       string `json:"data"`
	Iterations int    `json:"iterations,omitempty"`
}

// keystorePayload is the encrypted inner document. Each value is base64(PEM).
type keystorePayload struct {
	PrivateKey  string `json:"private_key"`
	PublicKey   string `json:"public_key"`
	Certificate string `json:"certificate,omitempty"`
}

// SaveKeystore encrypts the key pair and certificate under password and
// writes them to disk. A fresh salt and IV are drawn on every save.
func (m *KeyManager) SaveKeystore(ctx context.Context, password string) error {
	if m.iterations < configs.MinKDFIterations {
		return fmt.Errorf("%w: %d KDF iterations is below the minimum of %d", kerrors.ErrWeakParameter, m.iterations, configs.MinKDFIterations)
	}

	m.mu.RLock()
	private, cert := m.private, m.cert
	m.mu.RUnlock()
	if private == nil {
		return fmt.Errorf("%w: no key pair to save", kerrors.ErrPrecondition)
	}

	payload, err := encodePayload(private, cert)
	if err != nil {
		return err
	}
	defer utils.Wipe(payload)

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return fmt.Errorf("failed to generate IV: %w", err)
	}

	key, err := deriveKey(ctx, password, salt, m.iterations)
	if err != nil {
		return err
	}
	defer utils.Wipe(key)

	ciphertext, err := utils.EncryptCBC(key, iv, payload)
	if err != nil {
		return fmt.Errorf("failed to encrypt keystore: %w", err)
	}

	file := keystoreFile{
		Salt: base64.StdEncoding.EncodeToString(salt),
		IV:   base64.StdEncoding.EncodeToString(iv),
		Data: base64.StdEncoding.EncodeToString(ciphertext),
	}
	if m.iterations != configs.MinKDFIterations {
		file.Iterations = m.iterations
	}
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode keystore: %w", err)
	}

	if err := utils.WriteFileAtomic(m.KeystorePath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	if cert != nil {
		// #nosec G306 -- certificates are public.
		if err := utils.WriteFileAtomic(m.CertificatePath(), EncodeCertificatePEM(cert), 0644); err != nil {
			return fmt.Errorf("failed to write certificate: %w", err)
		}
	}

	m.log.Debugf("Saved keystore to %s", m.KeystorePath())
	return nil
}

// LoadKeystore decrypts the keystore with password and replaces the in-memory
// key material. On any failure the previous state is kept.
func (m *KeyManager) LoadKeystore(ctx context.Context, password string) error {
	raw, err := os.ReadFile(m.KeystorePath())
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", kerrors.ErrKeystoreNotFound, m.KeystorePath())
	}
	if err != nil {
		return fmt.Errorf("failed to read keystore: %w", err)
	}

	var file keystoreFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return corrupt("keystore is not valid JSON")
	}
	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil || len(salt) != saltSize {
		return corrupt("invalid salt")
	}
	iv, err := base64.StdEncoding.DecodeString(file.IV)
	if err != nil || len(iv) != ivSize {
		return corrupt("invalid IV")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(file.Data)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%ivSize != 0 {
		return corrupt("invalid ciphertext")
	}

	iterations := file.Iterations
	if iterations == 0 {
		iterations = configs.MinKDFIterations
	}
	if iterations < configs.MinKDFIterations {
		return corrupt("iteration count below minimum")
	}

	key, err := deriveKey(ctx, password, salt, iterations)
	if err != nil {
		return err
	}
	defer utils.Wipe(key)

	plaintext, err := utils.DecryptCBC(key, iv, ciphertext)
	if err != nil {
		m.log.Debugf("Keystore decryption failed")
		return fmt.Errorf("%w: wrong password", kerrors.ErrAuthentication)
	}
	defer utils.Wipe(plaintext)

	var payload keystorePayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return fmt.Errorf("%w: wrong password", kerrors.ErrAuthentication)
	}

	private, cert, err := decodePayload(&payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.private = private
	m.cert = cert
	m.mu.Unlock()

	m.log.Debugf("Loaded keystore from %s", m.KeystorePath())
	return nil
}

// ChangePassword re-encrypts the keystore under a new password.
func (m *KeyManager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if err := m.LoadKeystore(ctx, oldPassword); err != nil {
		return err
	}
	return m.SaveKeystore(ctx, newPassword)
}

// deriveKey runs PBKDF2-HMAC-SHA256 off the calling goroutine so that ctx
// can abort the wait.
func deriveKey(ctx context.Context, password string, salt []byte, iterations int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: key derivation: %v", kerrors.ErrAborted, err)
	}
	done := make(chan []byte, 1)
	go func() {
		done <- pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: key derivation: %v", kerrors.ErrAborted, ctx.Err())
	case key := <-done:
		return key, nil
	}
}

func encodePayload(private *rsa.PrivateKey, cert *x509.Certificate) ([]byte, error) {
	privatePEM, err := encodePrivateKeyPEM(private)
	if err != nil {
		return nil, err
	}
	publicPEM, err := encodePublicKeyPEM(&private.PublicKey)
	if err != nil {
		return nil, err
	}
	payload := keystorePayload{
		PrivateKey: base64.StdEncoding.EncodeToString(privatePEM),
		PublicKey:  base64.StdEncoding.EncodeToString(publicPEM),
	}
	utils.Wipe(privatePEM)
	if cert != nil {
		payload.Certificate = base64.StdEncoding.EncodeToString(EncodeCertificatePEM(cert))
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode keystore payload: %w", err)
	}
	return data, nil
}

func decodePayload(payload *keystorePayload) (*rsa.PrivateKey, *x509.Certificate, error) {
	privatePEM, err := base64.StdEncoding.DecodeString(payload.PrivateKey)
	if err != nil {
		return nil, nil, corrupt("private key is not base64")
	}
	defer utils.Wipe(privatePEM)
	private, err := ParsePrivateKeyPEM(privatePEM, "")
	if err != nil {
		return nil, nil, corrupt("private key PEM is invalid")
	}

	publicPEM, err := base64.StdEncoding.DecodeString(payload.PublicKey)
	if err != nil {
		return nil, nil, corrupt("public key is not base64")
	}
	public, err := ParsePublicKeyPEM(publicPEM)
	if err != nil {
		return nil, nil, corrupt("public key PEM is invalid")
	}
	if !public.Equal(&private.PublicKey) {
		return nil, nil, corrupt("public key does not match private key")
	}

	if payload.Certificate == "" {
		return private, nil, nil
	}
	certPEM, err := base64.StdEncoding.DecodeString(payload.Certificate)
	if err != nil {
		return nil, nil, corrupt("certificate is not base64")
	}
	cert, err := ParseCertificatePEM(certPEM)
	if err != nil {
		return nil, nil, corrupt("certificate PEM is invalid")
	}
	if certKey, ok := cert.PublicKey.(*rsa.PublicKey); !ok || !certKey.Equal(&private.PublicKey) {
		return nil, nil, corrupt("certificate does not match key pair")
	}
	return private, cert, nil
}

func corrupt(reason string) error {
	return fmt.Errorf("%w: %s", kerrors.ErrCorruptStore, reason)
}

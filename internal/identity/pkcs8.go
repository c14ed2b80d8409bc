package identity

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"

	"github.com/youmark/pkcs8"

	"github.com/PolarWolf314/inkseal/internal/configs"
	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
)

var oidPBKDF2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}

// Only the leading fields are declared; encoding/asn1 tolerates trailing
// elements, which is enough to read the iteration count before deriving.
type encryptedKeyHeader struct {
	Algorithm     pkix.AlgorithmIdentifier
	EncryptedData []byte
}

type pbes2Header struct {
	KeyDerivationFunc pkix.AlgorithmIdentifier
	EncryptionScheme  pkix.AlgorithmIdentifier
}

type pbkdf2Header struct {
	Salt           []byte
	IterationCount int
}

func encryptPrivateKeyPEM(key *rsa.PrivateKey, password string, iterations int) ([]byte, error) {
	if iterations > configs.MaxKDFIterations {
		return nil, fmt.Errorf("%w: %d KDF iterations is above the maximum of %d", kerrors.ErrPrecondition, iterations, configs.MaxKDFIterations)
	}
	der, err := pkcs8.MarshalPrivateKey(key, []byte(password), &pkcs8.Opts{
		Cipher: pkcs8.AES256CBC,
		KDFOpts: pkcs8.PBKDF2Opts{
			SaltSize:       saltSize,
			IterationCount: iterations,
			HMACHash:       crypto.SHA256,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemEncryptedPrivateKey, Bytes: der}), nil
}

func decryptPrivateKey(der []byte, password string) (*rsa.PrivateKey, error) {
	iterations, err := kdfIterations(der)
	if err != nil {
		return nil, err
	}
	if iterations <= 0 || iterations > configs.MaxKDFIterations {
		return nil, fmt.Errorf("%w: private key uses %d KDF iterations, allowed range is 1 to %d", kerrors.ErrWeakParameter, iterations, configs.MaxKDFIterations)
	}

	key, err := pkcs8.ParsePKCS8PrivateKeyRSA(der, []byte(password))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decrypt private key", kerrors.ErrAuthentication)
	}
	return key, nil
}

// kdfIterations reads the PBKDF2 iteration count of a PBES2 encrypted key.
func kdfIterations(der []byte) (int, error) {
	var info encryptedKeyHeader
	if _, err := asn1.Unmarshal(der, &info); err != nil {
		return 0, fmt.Errorf("failed to parse encrypted private key: %w", err)
	}
	var scheme pbes2Header
	if _, err := asn1.Unmarshal(info.Algorithm.Parameters.FullBytes, &scheme); err != nil {
		return 0, fmt.Errorf("failed to parse PBES2 parameters: %w", err)
	}
	if !scheme.KeyDerivationFunc.Algorithm.Equal(oidPBKDF2) {
		return 0, fmt.Errorf("unsupported key derivation %v", scheme.KeyDerivationFunc.Algorithm)
	}
	var kdf pbkdf2Header
	if _, err := asn1.Unmarshal(scheme.KeyDerivationFunc.Parameters.FullBytes, &kdf); err != nil {
		return 0, fmt.Errorf("failed to parse PBKDF2 parameters: %w", err)
	}
	return kdf.IterationCount, nil
}

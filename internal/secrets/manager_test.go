package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	cm := NewCryptoManager(newOwner(t))

	for _, size := range []int{0, 1, 15, 16, 17, 31, 32, 33, 1000} {
		plaintext := bytes.Repeat([]byte{'x'}, size)
		env, err := cm.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt failed for size %d: %v", size, err)
		}
		got, err := cm.Decrypt(env)
		if err != nil {
			t.Fatalf("Decrypt failed for size %d: %v", size, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("Round trip mismatch for size %d", size)
		}
	}
}

func TestEncrypt_Unicode(t *testing.T) {
	cm := NewCryptoManager(newOwner(t))
	text := "dear diary, ünïcødé ✓ 日記"
	env, err := cm.Encrypt([]byte(text))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	got, err := cm.Decrypt(env)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if string(got) != text {
		t.Errorf("Expected %q, got %q", text, got)
	}
}

func TestEncrypt_FreshKeyAndIV(t *testing.T) {
	cm := NewCryptoManager(newOwner(t))
	a, _ := cm.Encrypt([]byte("same"))
	b, _ := cm.Encrypt([]byte("same"))

	if a.EncryptedKey == b.EncryptedKey {
		t.Errorf("Expected distinct wrapped keys")
	}
	if a.IV == b.IV {
		t.Errorf("Expected distinct IVs")
	}
	if a.Ciphertext == b.Ciphertext {
		t.Errorf("Expected distinct ciphertexts")
	}
	if _, err := ParseTimestamp(a.Timestamp); err != nil {
		t.Errorf("Expected parseable timestamp, got %q: %v", a.Timestamp, err)
	}
}

func TestEncrypt_RequiresPublicKey(t *testing.T) {
	cm := NewCryptoManager(&testOwner{})
	_, err := cm.Encrypt([]byte("x"))
	if !errors.Is(err, kerrors.ErrEncryption) || !errors.Is(err, kerrors.ErrPrecondition) {
		t.Errorf("Expected ErrEncryption wrapping ErrPrecondition, got: %v", err)
	}
}

func TestDecrypt_WrongRecipient(t *testing.T) {
	alice, bob := testKeys(t)
	aliceCM := NewCryptoManager(&testOwner{key: alice})
	bobCM := NewCryptoManager(&testOwner{key: bob})

	env, err := aliceCM.Encrypt([]byte("for alice only"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	_, err = bobCM.Decrypt(env)
	if !errors.Is(err, kerrors.ErrDecryption) {
		t.Errorf("Expected ErrDecryption, got: %v", err)
	}
}

func TestDecrypt_ErrorsAreGeneric(t *testing.T) {
	cm := NewCryptoManager(newOwner(t))
	env, _ := cm.Encrypt([]byte("hello"))

	broken := []*Envelope{
		nil,
		{EncryptedKey: "!!", IV: env.IV, Ciphertext: env.Ciphertext},
		{EncryptedKey: env.EncryptedKey, IV: "!!", Ciphertext: env.Ciphertext},
		{EncryptedKey: env.EncryptedKey, IV: env.IV, Ciphertext: "!!"},
		{EncryptedKey: env.EncryptedKey, IV: base64.StdEncoding.EncodeToString([]byte("short")), Ciphertext: env.Ciphertext},
		{EncryptedKey: base64.StdEncoding.EncodeToString([]byte("garbage")), IV: env.IV, Ciphertext: env.Ciphertext},
	}
	for i, e := range broken {
		_, err := cm.Decrypt(e)
		if err != kerrors.ErrDecryption {
			t.Errorf("Case %d: expected bare ErrDecryption, got: %v", i, err)
		}
	}
}

func flipBit(t *testing.T, field string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(field)
	if err != nil {
		t.Fatalf("Failed to decode field: %v", err)
	}
	raw[len(raw)/2] ^= 0x01
	return base64.StdEncoding.EncodeToString(raw)
}

func TestTamperDetection(t *testing.T) {
	cm := NewCryptoManager(newOwner(t))
	ctx := context.Background()
	message := []byte("hello world, this spans more than one block")
	original, err := cm.EncryptAndSign(message)
	if err != nil {
		t.Fatalf("EncryptAndSign failed: %v", err)
	}

	t.Run("ciphertext", func(t *testing.T) {
		env := *original
		env.Ciphertext = flipBit(t, env.Ciphertext)
		_, verdict, _ := cm.VerifyAndDecrypt(ctx, &env)
		if verdict.Valid {
			t.Errorf("Expected invalid signature after ciphertext tampering")
		}
	})

	t.Run("wrapped key", func(t *testing.T) {
		env := *original
		env.EncryptedKey = flipBit(t, env.EncryptedKey)
		if _, _, err := cm.VerifyAndDecrypt(ctx, &env); !errors.Is(err, kerrors.ErrDecryption) {
			t.Errorf("Expected ErrDecryption after wrapped key tampering, got: %v", err)
		}
	})

	t.Run("signature", func(t *testing.T) {
		env := *original
		env.Signature = flipBit(t, env.Signature)
		_, verdict, _ := cm.VerifyAndDecrypt(ctx, &env)
		if verdict.Valid {
			t.Errorf("Expected invalid signature after signature tampering")
		}
	})

	t.Run("signed timestamp", func(t *testing.T) {
		env := *original
		env.SignedTimestamp = strings.Replace(env.SignedTimestamp, "Z", "1Z", 1)
		_, verdict, _ := cm.VerifyAndDecrypt(ctx, &env)
		if verdict.Valid {
			t.Errorf("Expected invalid signature after timestamp substitution")
		}
	})

	// IV tampering is the one field tamper detection does not cover. The
	// signature is over the ciphertext only and CBC carries no MAC, so the
	// verdict stays valid while the first block of plaintext is garbled and
	// the rest decrypts unchanged.
	t.Run("iv", func(t *testing.T) {
		env := *original
		env.IV = flipBit(t, env.IV)
		plaintext, verdict, err := cm.VerifyAndDecrypt(ctx, &env)
		if err != nil {
			t.Fatalf("Expected IV tampering to decrypt, got: %v", err)
		}
		if !verdict.Valid {
			t.Errorf("Expected signature over the ciphertext to remain valid")
		}
		if bytes.Equal(plaintext, message) {
			t.Errorf("Expected IV tampering to alter the plaintext")
		}
		if !bytes.Equal(plaintext[16:], message[16:]) {
			t.Errorf("Expected blocks after the first to decrypt unchanged")
		}
	})
}

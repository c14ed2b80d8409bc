package secrets

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/PolarWolf314/inkseal/internal/revocation"
)

var (
	keysOnce sync.Once
	keys     [2]*rsa.PrivateKey
	keysErr  error
)

// testKeys returns two 2048-bit keys generated once per test binary.
func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keysOnce.Do(func() {
		for i := range keys {
			keys[i], keysErr = rsa.GenerateKey(rand.Reader, 2048)
			if keysErr != nil {
				return
			}
		}
	})
	if keysErr != nil {
		t.Fatalf("Failed to generate test keys: %v", keysErr)
	}
	return keys[0], keys[1]
}

// testOwner is a minimal KeyOwner backed by a registry.
type testOwner struct {
	key      *rsa.PrivateKey
	serial   string
	registry revocation.Registry
}

func (o *testOwner) PublicKey() *rsa.PublicKey {
	if o.key == nil {
		return nil
	}
	return &o.key.PublicKey
}

func (o *testOwner) PrivateKey() *rsa.PrivateKey { return o.key }

func (o *testOwner) CertificateSerial() string { return o.serial }

func (o *testOwner) IsRevoked(ctx context.Context, serial string) (bool, error) {
	return o.registry.Contains(ctx, serial)
}

func newOwner(t *testing.T) *testOwner {
	t.Helper()
	alice, _ := testKeys(t)
	return &testOwner{key: alice, serial: "1001", registry: revocation.NewMemoryRegistry()}
}

// failingRegistry fails every lookup.
type failingRegistry struct{ revocation.MemoryRegistry }

func (*failingRegistry) Contains(context.Context, string) (bool, error) {
	return false, context.DeadlineExceeded
}

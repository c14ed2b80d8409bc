package revocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/utils"
)

const lockRetryDelay = 25 * time.Millisecond

// FileRegistry is a Registry persisted as a JSON ledger file shared between processes.
type FileRegistry struct {
	path string

	// mu serializes writers within this process; flock treats re-locking
	// the same handle as a no-op, so it cannot do this on its own.
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileRegistry returns a registry backed by the JSON ledger at path.
// The ledger is created on the first Append.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the ledger location.
func (f *FileRegistry) Path() string {
	return f.path
}

// Append adds entry under the ledger lock. It returns false when the
// serial was already revoked.
func (f *FileRegistry) Append(ctx context.Context, entry Entry) (added bool, err error) {
	if entry.Serial == "" {
		return false, fmt.Errorf("cannot revoke an empty serial")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return false, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, fmt.Errorf("%w: waiting for revocation ledger lock: %v", kerrors.ErrAborted, err)
		}
		return false, fmt.Errorf("failed to lock revocation ledger: %w", err)
	}
	if !locked {
		return false, fmt.Errorf("%w: revocation ledger lock not acquired", kerrors.ErrAborted)
	}
	defer func() {
		if unlockErr := f.lock.Unlock(); unlockErr != nil && err == nil {
			err = fmt.Errorf("failed to unlock revocation ledger: %w", unlockErr)
		}
	}()

	ledger, err := f.read()
	if err != nil {
		return false, err
	}
	if ledger.contains(entry.Serial) {
		return false, nil
	}
	ledger.Revoked = append(ledger.Revoked, normalize(entry))

	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to encode revocation ledger: %w", err)
	}
	// #nosec G306 -- the ledger holds public serials and is shared by every identity.
	if err := utils.WriteFileAtomic(f.path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write revocation ledger: %w", err)
	}

	return true, nil
}

// Contains reports whether serial appears in the ledger.
func (f *FileRegistry) Contains(_ context.Context, serial string) (bool, error) {
	ledger, err := f.read()
	if err != nil {
		return false, err
	}
	return ledger.contains(serial), nil
}

// List returns every ledger entry in revocation order.
func (f *FileRegistry) List(_ context.Context) ([]Entry, error) {
	ledger, err := f.read()
	if err != nil {
		return nil, err
	}
	return ledger.Revoked, nil
}

func (f *FileRegistry) read() (*Ledger, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return &Ledger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read revocation ledger: %w", err)
	}
	if len(data) == 0 {
		return &Ledger{}, nil
	}

	var ledger Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("%w: revocation ledger %s: %v", kerrors.ErrCorruptStore, f.path, err)
	}
	return &ledger, nil
}

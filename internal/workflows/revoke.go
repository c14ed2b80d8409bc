package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/inkseal/internal/audit"
	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/revocation"
)

// RevokeOptions configures the revoke workflow.
type RevokeOptions struct {
	IdentityOptions

	// Serial is the certificate to revoke. Empty revokes the identity's own
	// certificate.
	Serial string
}

// RevokeResult contains the outcome of a revoke operation.
type RevokeResult struct {
	// Serial is the decimal serial that is now on the ledger.
	Serial string

	// AlreadyRevoked is true when the ledger held the serial before this call.
	AlreadyRevoked bool
}

// RevokeIdentity records a certificate serial on the shared revocation
// ledger. Revoking twice is not an error.
func RevokeIdentity(ctx context.Context, opts RevokeOptions) (*RevokeResult, error) {
	s, err := openSession(ctx, opts.IdentityOptions)
	if err != nil {
		return nil, err
	}

	serial := opts.Serial
	if serial == "" {
		serial = s.keys.CertificateSerial()
	}
	if serial == "" {
		return nil, kerrors.ErrNoCertificate
	}

	already, err := s.keys.Revoke(ctx, serial, s.username)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke %s: %w", serial, err)
	}
	if already {
		s.log.Infof("Certificate %s was already revoked", serial)
	}

	entry := audit.LogWithUser("revoke", s.username)
	entry.Serial = serial
	audit.Log(s.auditPath(), entry)

	return &RevokeResult{Serial: serial, AlreadyRevoked: already}, nil
}

// ListRevocations returns the ledger in insertion order. It needs no
// unlocked identity.
func ListRevocations(ctx context.Context, opts IdentityOptions) ([]revocation.Entry, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: no configuration", kerrors.ErrInvalidConfig)
	}
	return opts.registry().List(ctx)
}

package workflows

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/inkseal/internal/audit"
	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/records"
	"github.com/PolarWolf314/inkseal/internal/secrets"
)

// SealOptions configures the record seal workflow.
type SealOptions struct {
	IdentityOptions

	Title string
	Body  []byte
	Tags  []string

	// Force seals even when the identity's own certificate is revoked.
	Force bool
}

// SealResult contains the outcome of a seal operation.
type SealResult struct {
	RecordID string
	Serial   string
}

// SealRecord encrypts and signs body for the identity and stores it.
func SealRecord(ctx context.Context, opts SealOptions) (*SealResult, error) {
	s, err := openSession(ctx, opts.IdentityOptions)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotRevoked(ctx, opts.Force); err != nil {
		return nil, err
	}

	env, err := s.crypto.EncryptAndSign(opts.Body)
	if err != nil {
		return nil, err
	}
	id, err := s.store().Save(opts.Title, env, opts.Tags)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Sealed record %s", id)

	entry := audit.LogWithUser("seal", s.username)
	entry.RecordID = id
	audit.Log(s.auditPath(), entry)

	return &SealResult{RecordID: id, Serial: env.CertSerial}, nil
}

// UpdateOptions configures the record update workflow. Nil fields are kept.
type UpdateOptions struct {
	IdentityOptions

	RecordID string
	Title    *string
	Body     []byte
	Tags     *[]string
	Force    bool
}

// UpdateRecord changes a record's metadata and, when Body is set, re-seals
// its contents with a fresh key and signature.
func UpdateRecord(ctx context.Context, opts UpdateOptions) error {
	s, err := openSession(ctx, opts.IdentityOptions)
	if err != nil {
		return err
	}

	changes := records.Changes{Title: opts.Title, Tags: opts.Tags}
	if opts.Body != nil {
		if err := s.checkNotRevoked(ctx, opts.Force); err != nil {
			return err
		}
		env, err := s.crypto.EncryptAndSign(opts.Body)
		if err != nil {
			return err
		}
		changes.Envelope = env
	}
	if err := s.store().Update(opts.RecordID, changes); err != nil {
		return err
	}

	entry := audit.LogWithUser("update", s.username)
	entry.RecordID = opts.RecordID
	audit.Log(s.auditPath(), entry)
	return nil
}

// OpenOptions configures the record open workflow.
type OpenOptions struct {
	IdentityOptions

	RecordID string
}

// OpenResult contains a decrypted record and its signature verdict.
type OpenResult struct {
	Metadata  records.Metadata
	Plaintext []byte
	Verdict   secrets.Verdict
	Signed    bool
}

// OpenRecord verifies and decrypts a stored record. A bad signature is
// reported in the verdict, not as an error.
func OpenRecord(ctx context.Context, opts OpenOptions) (*OpenResult, error) {
	s, err := openSession(ctx, opts.IdentityOptions)
	if err != nil {
		return nil, err
	}
	meta, env, err := s.store().Load(opts.RecordID)
	if err != nil {
		return nil, err
	}

	plaintext, verdict, err := s.crypto.VerifyAndDecrypt(ctx, env)
	if err != nil {
		return nil, err
	}
	if env.Signed() && !verdict.Valid {
		s.log.Warnf("Signature on record %s did not verify", opts.RecordID)
	}

	entry := audit.LogWithUser("open", s.username)
	entry.RecordID = opts.RecordID
	entry.Valid = audit.Bool(verdict.Valid)
	entry.Revoked = audit.Bool(verdict.Revoked)
	audit.Log(s.auditPath(), entry)

	return &OpenResult{
		Metadata:  *meta,
		Plaintext: plaintext,
		Verdict:   verdict,
		Signed:    env.Signed(),
	}, nil
}

// ListRecordsOptions configures the record list workflow.
type ListRecordsOptions struct {
	IdentityOptions

	// Query filters by title or tag, case-insensitively.
	Query string
}

// ListRecords returns record metadata, newest first. Listing does not need
// the keystore password.
func ListRecords(ctx context.Context, opts ListRecordsOptions) ([]records.Metadata, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: no configuration", kerrors.ErrInvalidConfig)
	}
	dir, err := opts.Config.RequireIdentity(opts.Username)
	if err != nil {
		return nil, err
	}
	s := &session{dir: dir}
	if opts.Query != "" {
		return s.store().Search(opts.Query)
	}
	return s.store().List()
}

// DeleteOptions configures the record delete workflow.
type DeleteOptions struct {
	IdentityOptions

	RecordID string
}

// DeleteRecord removes a record and its envelope.
func DeleteRecord(ctx context.Context, opts DeleteOptions) error {
	s, err := openSession(ctx, opts.IdentityOptions)
	if err != nil {
		return err
	}
	if err := s.store().Delete(opts.RecordID); err != nil {
		return err
	}

	entry := audit.LogWithUser("delete", s.username)
	entry.RecordID = opts.RecordID
	audit.Log(s.auditPath(), entry)
	return nil
}

// checkNotRevoked refuses to seal under a revoked certificate unless forced.
func (s *session) checkNotRevoked(ctx context.Context, force bool) error {
	serial := s.keys.CertificateSerial()
	revoked, err := s.keys.IsRevoked(ctx, serial)
	if err != nil {
		return fmt.Errorf("failed to check revocation status: %w", err)
	}
	if !revoked {
		return nil
	}
	if !force {
		return fmt.Errorf("%w: %s", kerrors.ErrCertificateRevoked, serial)
	}
	s.log.Warnf("Sealing with revoked certificate %s", serial)
	return nil
}

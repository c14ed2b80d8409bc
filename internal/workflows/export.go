package workflows

import (
	"context"
	"path/filepath"

	"github.com/PolarWolf314/inkseal/internal/audit"
	"github.com/PolarWolf314/inkseal/internal/exchange"
)

// ExportOptions configures the export workflow.
type ExportOptions struct {
	IdentityOptions

	RecordID string

	// OutputPath defaults to <record id>.pkg in the working directory.
	OutputPath string
}

// ExportResult contains the outcome of an export operation.
type ExportResult struct {
	OutputPath string
	Signed     bool
}

// ExportRecord writes a stored record as a shareable package carrying the
// identity's certificate.
func ExportRecord(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	s, err := openSession(ctx, opts.IdentityOptions)
	if err != nil {
		return nil, err
	}
	meta, env, err := s.store().Load(opts.RecordID)
	if err != nil {
		return nil, err
	}

	protocol := exchange.NewProtocol(s.keys, s.crypto, exchange.WithLogger(s.log))
	pkg, err := protocol.Export(meta.ID, exchange.Metadata{Title: meta.Title, Created: meta.Created}, env)
	if err != nil {
		return nil, err
	}

	output := opts.OutputPath
	if output == "" {
		output = meta.ID + exchange.FileExtension
	}
	output = filepath.Clean(output)
	if err := exchange.WritePackage(output, pkg); err != nil {
		return nil, err
	}

	entry := audit.LogWithUser("export", s.username)
	entry.RecordID = meta.ID
	entry.OutputPath = output
	audit.Log(s.auditPath(), entry)

	return &ExportResult{OutputPath: output, Signed: env.Signed()}, nil
}

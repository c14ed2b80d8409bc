package workflows

import (
	"context"
	"errors"

	"github.com/PolarWolf314/inkseal/internal/audit"
	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/exchange"
)

// AdoptedTitlePrefix marks records created by adopting an imported package.
const AdoptedTitlePrefix = "[Imported] "

// ImportOptions configures the import workflow.
type ImportOptions struct {
	IdentityOptions

	// Patterns are package paths, directories or glob patterns.
	Patterns []string

	// BaseDir resolves relative patterns. Empty means the working directory.
	BaseDir string

	// Adopt decrypts each package addressed to this identity and stores it
	// as a new record.
	Adopt bool
}

// PackageResult is the evaluation of one package.
type PackageResult struct {
	Path   string
	Result *exchange.ImportResult

	// RecordID is set when the package was adopted.
	RecordID string

	// Err holds a per-package failure. Other packages are still processed.
	Err error
}

// ImportResult contains the outcome of an import operation.
type ImportResult struct {
	Packages []PackageResult
	Adopted  int
}

// ImportPackages evaluates every matching package against the identity's
// view of the revocation ledger.
func ImportPackages(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	s, err := openSession(ctx, opts.IdentityOptions)
	if err != nil {
		return nil, err
	}
	paths, err := exchange.ResolvePackages(opts.Patterns, opts.BaseDir)
	if err != nil {
		return nil, err
	}

	protocol := exchange.NewProtocol(s.keys, s.crypto, exchange.WithLogger(s.log))
	store := s.store()
	result := &ImportResult{}
	allValid := true
	anyRevoked := false

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, errors.Join(kerrors.ErrAborted, err)
		}
		pr := PackageResult{Path: path}

		pkg, err := exchange.ReadPackage(path)
		if err != nil {
			pr.Err = err
			result.Packages = append(result.Packages, pr)
			allValid = false
			continue
		}
		imported, err := protocol.Import(ctx, pkg)
		if err != nil {
			pr.Err = err
			result.Packages = append(result.Packages, pr)
			allValid = false
			continue
		}
		pr.Result = imported
		allValid = allValid && imported.SignatureValid
		anyRevoked = anyRevoked || imported.Revoked

		if opts.Adopt {
			adopted, err := protocol.Adopt(ctx, &imported.Envelope)
			if err != nil {
				s.log.Warnf("Could not adopt %s: %v", path, err)
				pr.Err = err
			} else {
				id, err := store.Save(AdoptedTitlePrefix+imported.Metadata.Title, adopted, nil)
				if err != nil {
					pr.Err = err
				} else {
					pr.RecordID = id
					result.Adopted++
				}
			}
		}
		result.Packages = append(result.Packages, pr)
	}

	entry := audit.LogWithUser("import", s.username)
	entry.Files = paths
	entry.Count = len(paths)
	entry.Valid = audit.Bool(allValid)
	entry.Revoked = audit.Bool(anyRevoked)
	audit.Log(s.auditPath(), entry)

	return result, nil
}

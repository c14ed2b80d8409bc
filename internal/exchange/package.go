package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	kerrors "github.com/PolarWolf314/inkseal/internal/errors"
	"github.com/PolarWolf314/inkseal/internal/secrets"
	"github.com/PolarWolf314/inkseal/internal/utils"
)

// FileExtension is the conventional suffix for package files.
const FileExtension = ".pkg"

// Package is the portable export unit.
type Package struct {
	EntryID           string           `json:"entry_id"`
	Title             string           `json:"title"`
	Created           string           `json:"created"`
	EncryptedData     secrets.Envelope `json:"encrypted_data"`
	SignerCertificate string           `json:"signer_certificate"`
}

// WritePackage stores pkg as indented JSON.
func WritePackage(path string, pkg *Package) error {
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode package: %w", err)
	}
	// #nosec G306 -- packages are meant to be shared.
	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write package %s: %w", path, err)
	}
	return nil
}

// ReadPackage loads a package file. Malformed content yields ErrInvalidPackage.
func ReadPackage(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package %s: %w", path, err)
	}
	return ParsePackage(data)
}

// ParsePackage decodes and structurally checks a package.
func ParsePackage(data []byte) (*Package, error) {
	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidPackage, err)
	}
	if err := pkg.validate(); err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (p *Package) validate() error {
	var missing []error
	if p.SignerCertificate == "" {
		missing = append(missing, errors.New("signer_certificate is missing"))
	}
	if p.EncryptedData.Ciphertext == "" {
		missing = append(missing, errors.New("encrypted_data.ciphertext is missing"))
	}
	if p.EncryptedData.EncryptedKey == "" {
		missing = append(missing, errors.New("encrypted_data.encrypted_key is missing"))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %w", kerrors.ErrInvalidPackage, errors.Join(missing...))
	}
	return nil
}

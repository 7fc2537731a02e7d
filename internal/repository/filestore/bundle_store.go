// internal/repository/filestore/bundle_store.go
package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"panel-service/internal/domain/bundle"
	xerrors "panel-service/internal/pkg/errors"
)

// BundleStore persists one credential bundle file per domain. Bundles never
// expire; a save overwrites the previous file for the domain.
type BundleStore struct {
	dir string
}

func NewBundleStore(dataDir string) (*BundleStore, error) {
	dir := filepath.Join(dataDir, "bundles")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create bundle dir: %w", err)
	}
	return &BundleStore{dir: dir}, nil
}

// Save writes the bundle for its domain.
func (s *BundleStore) Save(b *bundle.CredentialBundle) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	path := filepath.Join(s.dir, bundle.FileName(b.Domain))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace bundle: %w", err)
	}
	return nil
}

// SaveRaw stores an already-serialized bundle file under its file name,
// validating that the payload parses as a bundle first.
func (s *BundleStore) SaveRaw(fileName string, data []byte) error {
	var b bundle.CredentialBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("invalid bundle payload: %w", err)
	}

	path := filepath.Join(s.dir, filepath.Base(fileName))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	return nil
}

// Load reads the bundle for a domain.
func (s *BundleStore) Load(domain string) (*bundle.CredentialBundle, error) {
	return s.LoadFile(bundle.FileName(domain))
}

// LoadFile reads a bundle by file name.
func (s *BundleStore) LoadFile(fileName string) (*bundle.CredentialBundle, error) {
	path := filepath.Join(s.dir, filepath.Base(fileName))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}

	var b bundle.CredentialBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %w", err)
	}
	return &b, nil
}

// RawFile returns the serialized bundle file for download.
func (s *BundleStore) RawFile(fileName string) ([]byte, error) {
	path := filepath.Join(s.dir, filepath.Base(fileName))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}
	return data, nil
}

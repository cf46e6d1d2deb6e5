package evidence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const manifestFile = "manifest.yaml"

// Key addresses one stored evidence blob.
type Key struct {
	VersionID  uuid.UUID
	Kind       Kind
	EvidenceID uuid.UUID
	// Table is set for related data only.
	Table string
}

// Store persists evidence blobs. Blobs are write-once.
type Store interface {
	Put(ctx context.Context, key Key, data []byte) (string, error)
	Delete(ctx context.Context, key Key) error
	SaveManifest(ctx context.Context, m *Manifest) (string, error)
}

// Manifest lists what a version run persisted and how it ended.
type Manifest struct {
	VersionID  string         `yaml:"version_id"`
	CreatedAt  time.Time      `yaml:"created_at"`
	RootTable  string         `yaml:"root_table"`
	Anonymized bool           `yaml:"anonymized"`
	Evidence   []Item         `yaml:"evidence"`
	Tables     []TableSummary `yaml:"related_tables,omitempty"`
	Error      string         `yaml:"error,omitempty"`
}

// Item is one persisted evidence blob.
type Item struct {
	ID       string `yaml:"id"`
	Kind     string `yaml:"kind"`
	Table    string `yaml:"table,omitempty"`
	Location string `yaml:"location"`
	Rows     int    `yaml:"rows"`
}

// TableSummary records a discovered related table.
type TableSummary struct {
	Name string `yaml:"name"`
	IDs  int    `yaml:"ids"`
}

// FileStore keeps evidence under a base directory:
//
//	<base>/<version>/<kind>/<evidence id><ext>
//	<base>/<version>/<kind>/<evidence id>/<table><ext>
type FileStore struct {
	baseDir string
}

// NewFileStore creates a store rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) path(key Key) string {
	dir := filepath.Join(s.baseDir, key.VersionID.String(), key.Kind.String())
	if key.Table == "" {
		return filepath.Join(dir, key.EvidenceID.String()+key.Kind.Extension())
	}
	return filepath.Join(dir, key.EvidenceID.String(), key.Table+key.Kind.Extension())
}

// Put writes data and returns its path. Writing an existing key fails.
func (s *FileStore) Put(_ context.Context, key Key, data []byte) (string, error) {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create evidence directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create evidence file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write evidence file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close evidence file: %w", err)
	}
	return path, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *FileStore) Delete(_ context.Context, key Key) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete evidence file: %w", err)
	}
	return nil
}

// SaveManifest writes manifest.yaml into the version directory, replacing
// any earlier manifest.
func (s *FileStore) SaveManifest(_ context.Context, m *Manifest) (string, error) {
	dir := filepath.Join(s.baseDir, m.VersionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create version directory: %w", err)
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := filepath.Join(dir, manifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// LoadManifest reads the manifest of a version.
func (s *FileStore) LoadManifest(versionID string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, versionID, manifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

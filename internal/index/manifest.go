package index

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ManifestFile is the manifest's name inside an index location.
const ManifestFile = "manifest.json"

// FileEntry records the content hash that produced a file's indexed chunks.
type FileEntry struct {
	SHA1 string `json:"sha1"`
}

// Manifest ties an index location to its embedding family and to the exact
// bytes of every ingested file.
type Manifest struct {
	EmbedFamily string               `json:"embed_family"`
	Files       map[string]FileEntry `json:"files"`
}

// NewManifest returns an empty manifest for family.
func NewManifest(family string) *Manifest {
	return &Manifest{EmbedFamily: family, Files: map[string]FileEntry{}}
}

// LoadManifest reads dir/manifest.json. A missing file returns ErrNotFound.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no manifest in %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Files == nil {
		m.Files = map[string]FileEntry{}
	}
	return &m, nil
}

// Save writes the manifest atomically, indented by two spaces.
func (m *Manifest) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, ManifestFile)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Unchanged reports whether name was indexed from bytes hashing to sum.
func (m *Manifest) Unchanged(name, sum string) bool {
	e, ok := m.Files[name]
	return ok && e.SHA1 == sum
}

// Record stores the hash for name.
func (m *Manifest) Record(name, sum string) {
	if m.Files == nil {
		m.Files = map[string]FileEntry{}
	}
	m.Files[name] = FileEntry{SHA1: sum}
}

// Names returns the recorded file names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Files))
	for n := range m.Files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SHA1File hashes a file's contents.
func SHA1File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

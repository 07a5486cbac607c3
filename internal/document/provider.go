package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/annota/internal/checksum"
)

// Provider reads documents relative to a root directory.
type Provider interface {
	// Read returns the raw bytes at path.
	Read(path string) ([]byte, error)
	// Load reads and parses the document at path and returns it with the
	// checksum of the bytes read.
	Load(path string) (*Document, string, error)
	// Abs resolves path against the root.
	Abs(path string) (string, error)
}

// FS is a Provider backed by the local file system.
type FS struct {
	root string
}

// NewFS returns a provider rooted at dir, which must exist.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("document: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("document: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string { return f.root }

// Abs resolves rel against the root and rejects any result outside it.
func (f *FS) Abs(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("document: empty path")
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("document: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("document: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("document: path escapes root: %s", rel)
	}
	return abs, nil
}

// Read returns the bytes of the file at path.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("document: read %s: %w", path, err)
	}
	return data, nil
}

// Load reads and parses the document at path.
func (f *FS) Load(path string) (*Document, string, error) {
	data, err := f.Read(path)
	if err != nil {
		return nil, "", err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, "", fmt.Errorf("document: load %s: %w", path, err)
	}
	return doc, checksum.Sum(data), nil
}

// Split separates a document path into a provider root and a relative name.
func Split(path string) (dir, name string) {
	return filepath.Dir(path), filepath.Base(path)
}

// Package fs provides a filesystem-backed data source rooted at a
// directory, the classic static TFTP file server.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dtftp/pkg/source"
)

// Provider serves files from below a root directory. Requested paths are
// cleaned and confined to the root; anything escaping it (e.g. "../etc/
// passwd") is rejected with source.ErrAccessDenied before touching the
// filesystem.
type Provider struct {
	root string
}

// New creates a provider rooted at root. The directory must exist.
func New(root string) (*Provider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root %q: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", abs)
	}

	return &Provider{root: abs}, nil
}

// Root returns the absolute root directory.
func (p *Provider) Root() string { return p.root }

// Open resolves path below the root and opens it for reading.
func (p *Provider) Open(_ context.Context, path string) (source.Source, error) {
	full, err := p.resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%q: %w", path, source.ErrNotFound)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%q: %w", path, source.ErrAccessDenied)
		}
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%q is a directory: %w", path, source.ErrAccessDenied)
	}

	return &fileSource{file: f, size: info.Size()}, nil
}

// resolve confines a client-supplied path to the root directory.
func (p *Provider) resolve(path string) (string, error) {
	// TFTP paths use forward slashes regardless of platform
	cleaned := filepath.Clean("/" + filepath.FromSlash(path))
	full := filepath.Join(p.root, cleaned)

	if full != p.root && !strings.HasPrefix(full, p.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%q escapes root: %w", path, source.ErrAccessDenied)
	}
	return full, nil
}

type fileSource struct {
	file   *os.File
	size   int64
	closed bool
}

func (s *fileSource) Read(p []byte) (int, error) { return s.file.Read(p) }

func (s *fileSource) Size() (int64, bool) { return s.size, true }

func (s *fileSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// Package memory provides in-memory data sources, mainly for dynamically
// generated payloads and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/dtftp/pkg/source"
)

// BytesSource serves a byte slice. The size is always known.
type BytesSource struct {
	reader *bytes.Reader
	size   int64
}

// NewBytes creates a source over b. The slice is not copied; callers must
// not mutate it while the transfer runs.
func NewBytes(b []byte) *BytesSource {
	return &BytesSource{reader: bytes.NewReader(b), size: int64(len(b))}
}

// NewString creates a source over the raw bytes of s.
func NewString(s string) *BytesSource {
	return NewBytes([]byte(s))
}

func (s *BytesSource) Read(p []byte) (int, error) { return s.reader.Read(p) }

func (s *BytesSource) Size() (int64, bool) { return s.size, true }

func (s *BytesSource) Close() error { return nil }

// Provider serves a fixed map of path to payload. Useful for servers whose
// whole catalog is built at startup (e.g. generated boot configs).
type Provider struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{entries: make(map[string][]byte)}
}

// Put registers or replaces the payload served for path.
func (p *Provider) Put(path string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[path] = payload
}

// Open returns a source over the payload registered for path.
func (p *Provider) Open(_ context.Context, path string) (source.Source, error) {
	p.mu.RLock()
	payload, ok := p.entries[path]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", path, source.ErrNotFound)
	}
	return NewBytes(payload), nil
}

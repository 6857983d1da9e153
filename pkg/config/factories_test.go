package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFilesystemProvider(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "boot.cfg"), []byte("kernel"), 0o644))

	provider, err := CreateSourceProvider(context.Background(), &SourceConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"root": root},
	})
	require.NoError(t, err)

	src, err := provider.Open(context.Background(), "boot.cfg")
	require.NoError(t, err)
	defer src.Close()

	content, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, []byte("kernel"), content)
}

func TestCreateFilesystemProviderRequiresRoot(t *testing.T) {
	_, err := CreateSourceProvider(context.Background(), &SourceConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{},
	})
	assert.ErrorContains(t, err, "root is required")
}

func TestCreateMemoryProvider(t *testing.T) {
	provider, err := CreateSourceProvider(context.Background(), &SourceConfig{
		Type: "memory",
		Memory: map[string]any{
			"files": map[string]any{"motd": "hello"},
		},
	})
	require.NoError(t, err)

	src, err := provider.Open(context.Background(), "motd")
	require.NoError(t, err)
	defer src.Close()

	content, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)
}

func TestCreateBadgerProviderInMemory(t *testing.T) {
	provider, err := CreateSourceProvider(context.Background(), &SourceConfig{
		Type:   "badger",
		Badger: map[string]any{"in_memory": true},
	})
	require.NoError(t, err)

	closer, ok := provider.(io.Closer)
	require.True(t, ok, "badger provider must be closable")
	assert.NoError(t, closer.Close())
}

func TestCreateBadgerProviderRequiresPath(t *testing.T) {
	_, err := CreateSourceProvider(context.Background(), &SourceConfig{
		Type:   "badger",
		Badger: map[string]any{},
	})
	assert.ErrorContains(t, err, "path is required")
}

func TestCreateSourceProviderUnknownType(t *testing.T) {
	_, err := CreateSourceProvider(context.Background(), &SourceConfig{Type: "tape"})
	assert.ErrorContains(t, err, "unknown source type")
}

func TestCreateMetricsDisabled(t *testing.T) {
	collector, httpServer := CreateMetrics(&MetricsConfig{Enabled: false})
	assert.Nil(t, collector)
	assert.Nil(t, httpServer)
}

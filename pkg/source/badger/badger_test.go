package badger

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dtftp/pkg/source"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("PutThenOpen", func(t *testing.T) {
		p := newTestProvider(t)
		require.NoError(t, p.Put("boot/grub.cfg", []byte("set timeout=5")))

		src, err := p.Open(ctx, "boot/grub.cfg")
		require.NoError(t, err)
		defer src.Close()

		size, ok := src.Size()
		assert.True(t, ok)
		assert.Equal(t, int64(13), size)

		data, err := io.ReadAll(src)
		require.NoError(t, err)
		assert.Equal(t, "set timeout=5", string(data))
	})

	t.Run("MissingKeyIsNotFound", func(t *testing.T) {
		p := newTestProvider(t)
		_, err := p.Open(ctx, "missing")
		assert.ErrorIs(t, err, source.ErrNotFound)
	})

	t.Run("SourceSurvivesOverwrite", func(t *testing.T) {
		p := newTestProvider(t)
		require.NoError(t, p.Put("f", []byte("before")))

		src, err := p.Open(ctx, "f")
		require.NoError(t, err)
		defer src.Close()

		require.NoError(t, p.Put("f", []byte("after")))

		data, err := io.ReadAll(src)
		require.NoError(t, err)
		assert.Equal(t, "before", string(data))
	})

	t.Run("PersistsAcrossReopen", func(t *testing.T) {
		dir := t.TempDir()

		p, err := New(Config{Path: dir})
		require.NoError(t, err)
		require.NoError(t, p.Put("f", []byte("durable")))
		require.NoError(t, p.Close())

		p, err = New(Config{Path: dir})
		require.NoError(t, err)
		defer p.Close()

		src, err := p.Open(ctx, "f")
		require.NoError(t, err)
		defer src.Close()

		data, err := io.ReadAll(src)
		require.NoError(t, err)
		assert.Equal(t, "durable", string(data))
	})
}

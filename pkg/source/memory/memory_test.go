package memory

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dtftp/pkg/source"
)

func TestBytesSource(t *testing.T) {
	t.Run("ReadAll", func(t *testing.T) {
		src := NewString("hello tftp")

		size, ok := src.Size()
		assert.True(t, ok)
		assert.Equal(t, int64(10), size)

		data, err := io.ReadAll(src)
		require.NoError(t, err)
		assert.Equal(t, "hello tftp", string(data))
	})

	t.Run("ShortReads", func(t *testing.T) {
		src := NewBytes([]byte{1, 2, 3, 4, 5})
		buf := make([]byte, 2)

		n, err := src.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		data, err := io.ReadAll(src)
		require.NoError(t, err)
		assert.Equal(t, []byte{3, 4, 5}, data)
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		src := NewBytes(nil)

		size, ok := src.Size()
		assert.True(t, ok)
		assert.Equal(t, int64(0), size)

		_, err := src.Read(make([]byte, 1))
		assert.Equal(t, io.EOF, err)
	})
}

func TestProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("ServesRegisteredPayload", func(t *testing.T) {
		p := NewProvider()
		p.Put("generated/config", []byte("option 66"))

		src, err := p.Open(ctx, "generated/config")
		require.NoError(t, err)
		defer src.Close()

		data, err := io.ReadAll(src)
		require.NoError(t, err)
		assert.Equal(t, "option 66", string(data))
	})

	t.Run("MissingPathIsNotFound", func(t *testing.T) {
		p := NewProvider()
		_, err := p.Open(ctx, "missing")
		assert.ErrorIs(t, err, source.ErrNotFound)
	})

	t.Run("PutReplaces", func(t *testing.T) {
		p := NewProvider()
		p.Put("f", []byte("v1"))
		p.Put("f", []byte("v2"))

		src, err := p.Open(ctx, "f")
		require.NoError(t, err)
		defer src.Close()

		data, err := io.ReadAll(src)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))
	})
}

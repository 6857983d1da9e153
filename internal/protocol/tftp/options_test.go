package tftp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefaults() Defaults {
	return Defaults{Blocksize: DefaultBlocksize, Timeout: 2 * time.Second}
}

func knownSize(n int64) SizeFunc {
	return func() (int64, bool) { return n, true }
}

func unknownSize() (int64, bool) { return 0, false }

func TestNegotiate(t *testing.T) {
	t.Run("NoOptionsFallsBackToDefaults", func(t *testing.T) {
		neg, ackRequired := Negotiate(nil, testDefaults(), knownSize(100))

		assert.False(t, ackRequired)
		assert.Equal(t, DefaultBlocksize, neg.Blocksize)
		assert.Equal(t, 2*time.Second, neg.Timeout)
		assert.Equal(t, int64(-1), neg.TransferSize)
		assert.Empty(t, neg.Acknowledged)
	})

	t.Run("BlocksizeAccepted", func(t *testing.T) {
		neg, ackRequired := Negotiate(
			[]Option{{Name: "blksize", Value: "1400"}}, testDefaults(), nil)

		assert.True(t, ackRequired)
		assert.Equal(t, 1400, neg.Blocksize)
		require.Len(t, neg.Acknowledged, 1)
		assert.Equal(t, Option{Name: "blksize", Value: "1400"}, neg.Acknowledged[0])
	})

	t.Run("BlocksizeClamped", func(t *testing.T) {
		tests := []struct {
			name      string
			requested string
			want      int
		}{
			{"AboveMax", "100000", MaxBlocksize},
			{"BelowMin", "4", MinBlocksize},
			{"AtMax", "65464", MaxBlocksize},
			{"AtMin", "8", MinBlocksize},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				neg, ackRequired := Negotiate(
					[]Option{{Name: "blksize", Value: tt.requested}}, testDefaults(), nil)

				assert.True(t, ackRequired)
				assert.Equal(t, tt.want, neg.Blocksize)
			})
		}
	})

	t.Run("TimeoutClamped", func(t *testing.T) {
		neg, ackRequired := Negotiate(
			[]Option{{Name: "timeout", Value: "999"}}, testDefaults(), nil)

		assert.True(t, ackRequired)
		assert.Equal(t, 255*time.Second, neg.Timeout)
		assert.Equal(t, Option{Name: "timeout", Value: "255"}, neg.Acknowledged[0])
	})

	t.Run("TransferSizeEchoed", func(t *testing.T) {
		neg, ackRequired := Negotiate(
			[]Option{{Name: "tsize", Value: "0"}}, testDefaults(), knownSize(1500))

		assert.True(t, ackRequired)
		assert.Equal(t, int64(1500), neg.TransferSize)
		assert.Equal(t, Option{Name: "tsize", Value: "1500"}, neg.Acknowledged[0])
	})

	t.Run("TransferSizeOmittedWhenUnknown", func(t *testing.T) {
		neg, ackRequired := Negotiate(
			[]Option{{Name: "tsize", Value: "0"}}, testDefaults(), unknownSize)

		assert.False(t, ackRequired)
		assert.Equal(t, int64(-1), neg.TransferSize)
		assert.Empty(t, neg.Acknowledged)
	})

	t.Run("UnrecognizedOptionsIgnored", func(t *testing.T) {
		neg, ackRequired := Negotiate([]Option{
			{Name: "windowsize", Value: "16"},
			{Name: "multicast", Value: ""},
		}, testDefaults(), nil)

		assert.False(t, ackRequired)
		assert.Equal(t, DefaultBlocksize, neg.Blocksize)
		assert.Empty(t, neg.Acknowledged)
	})

	t.Run("NonNumericValueIgnored", func(t *testing.T) {
		neg, ackRequired := Negotiate(
			[]Option{{Name: "blksize", Value: "huge"}}, testDefaults(), nil)

		assert.False(t, ackRequired)
		assert.Equal(t, DefaultBlocksize, neg.Blocksize)
	})

	t.Run("MixedRecognizedAndUnrecognized", func(t *testing.T) {
		neg, ackRequired := Negotiate([]Option{
			{Name: "windowsize", Value: "16"},
			{Name: "blksize", Value: "8192"},
			{Name: "timeout", Value: "5"},
		}, testDefaults(), nil)

		assert.True(t, ackRequired)
		assert.Equal(t, 8192, neg.Blocksize)
		assert.Equal(t, 5*time.Second, neg.Timeout)
		require.Len(t, neg.Acknowledged, 2)
		assert.Equal(t, "blksize", neg.Acknowledged[0].Name)
		assert.Equal(t, "timeout", neg.Acknowledged[1].Name)
	})
}

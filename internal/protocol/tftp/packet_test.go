package tftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReadRequest(t *testing.T) {
	t.Run("PlainRequest", func(t *testing.T) {
		raw := []byte{0, 1}
		raw = append(raw, "pxelinux.0\x00octet\x00"...)

		pkt, err := Decode(raw)
		require.NoError(t, err)

		req, ok := pkt.(*ReadRequest)
		require.True(t, ok)
		assert.Equal(t, "pxelinux.0", req.Filename)
		assert.Equal(t, ModeOctet, req.Mode)
		assert.Empty(t, req.Options)
	})

	t.Run("ModeIsCaseInsensitive", func(t *testing.T) {
		raw := []byte{0, 1}
		raw = append(raw, "boot.img\x00OcTeT\x00"...)

		pkt, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, ModeOctet, pkt.(*ReadRequest).Mode)
	})

	t.Run("RequestWithOptions", func(t *testing.T) {
		raw := []byte{0, 1}
		raw = append(raw, "boot.img\x00octet\x00blksize\x001400\x00tsize\x000\x00"...)

		pkt, err := Decode(raw)
		require.NoError(t, err)

		req := pkt.(*ReadRequest)
		require.Len(t, req.Options, 2)
		assert.Equal(t, Option{Name: "blksize", Value: "1400"}, req.Options[0])
		assert.Equal(t, Option{Name: "tsize", Value: "0"}, req.Options[1])
	})

	t.Run("OptionOrderIsPreserved", func(t *testing.T) {
		raw := []byte{0, 1}
		raw = append(raw, "f\x00octet\x00tsize\x000\x00timeout\x005\x00blksize\x008\x00"...)

		pkt, err := Decode(raw)
		require.NoError(t, err)

		req := pkt.(*ReadRequest)
		require.Len(t, req.Options, 3)
		assert.Equal(t, "tsize", req.Options[0].Name)
		assert.Equal(t, "timeout", req.Options[1].Name)
		assert.Equal(t, "blksize", req.Options[2].Name)
	})

	t.Run("OddOptionStringsAreMalformed", func(t *testing.T) {
		raw := []byte{0, 1}
		raw = append(raw, "f\x00octet\x00blksize\x00"...)

		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrMalformedPacket)
	})

	t.Run("MissingTerminatorIsMalformed", func(t *testing.T) {
		raw := []byte{0, 1}
		raw = append(raw, "f\x00octet"...)

		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrMalformedPacket)
	})

	t.Run("MissingModeIsMalformed", func(t *testing.T) {
		raw := []byte{0, 1}
		raw = append(raw, "f\x00"...)

		_, err := Decode(raw)
		assert.ErrorIs(t, err, ErrMalformedPacket)
	})
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"Empty", []byte{}},
		{"SingleByte", []byte{0}},
		{"UnknownOpcode", []byte{0, 9, 0, 0}},
		{"TruncatedAck", []byte{0, 4, 0}},
		{"TruncatedData", []byte{0, 3, 0}},
		{"ErrorWithoutMessage", []byte{0, 5, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestDecodeWriteRequest(t *testing.T) {
	raw := []byte{0, 2}
	raw = append(raw, "upload.bin\x00octet\x00"...)

	pkt, err := Decode(raw)
	require.NoError(t, err)

	wrq, ok := pkt.(*WriteRequest)
	require.True(t, ok)
	assert.Equal(t, "upload.bin", wrq.Filename)
	assert.Equal(t, ModeOctet, wrq.Mode)
}

func TestDataRoundTrip(t *testing.T) {
	t.Run("FullBlock", func(t *testing.T) {
		payload := make([]byte, 512)
		for i := range payload {
			payload[i] = byte(i)
		}

		raw := (&Data{Block: 7, Payload: payload}).Encode()
		require.Len(t, raw, 516)

		pkt, err := Decode(raw)
		require.NoError(t, err)

		data := pkt.(*Data)
		assert.Equal(t, uint16(7), data.Block)
		assert.Equal(t, payload, data.Payload)
	})

	t.Run("EmptyFinalBlock", func(t *testing.T) {
		raw := (&Data{Block: 3}).Encode()
		require.Len(t, raw, 4)

		pkt, err := Decode(raw)
		require.NoError(t, err)
		assert.Empty(t, pkt.(*Data).Payload)
	})

	t.Run("MaxBlockNumber", func(t *testing.T) {
		raw := (&Data{Block: MaxBlockNumber, Payload: []byte{1}}).Encode()

		pkt, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, uint16(MaxBlockNumber), pkt.(*Data).Block)
	})
}

func TestAckRoundTrip(t *testing.T) {
	raw := (&Ack{Block: 42}).Encode()
	assert.Equal(t, []byte{0, 4, 0, 42}, raw)

	pkt, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), pkt.(*Ack).Block)
}

func TestErrorRoundTrip(t *testing.T) {
	raw := (&Error{Code: ErrCodeFileNotFound, Message: "file not found"}).Encode()

	// message must be null-terminated on the wire
	assert.Equal(t, byte(0), raw[len(raw)-1])

	pkt, err := Decode(raw)
	require.NoError(t, err)

	e := pkt.(*Error)
	assert.Equal(t, ErrCodeFileNotFound, e.Code)
	assert.Equal(t, "file not found", e.Message)
}

func TestOptionAckRoundTrip(t *testing.T) {
	oack := &OptionAck{Options: []Option{
		{Name: "blksize", Value: "1400"},
		{Name: "tsize", Value: "1048576"},
	}}

	pkt, err := Decode(oack.Encode())
	require.NoError(t, err)
	assert.Equal(t, oack.Options, pkt.(*OptionAck).Options)
}

// Package netascii implements the netascii transfer mode of RFC 764/1350:
// LF expands to CR LF and a bare CR expands to CR NUL on the wire.
package netascii

import (
	"bytes"
	"io"

	"github.com/marmos91/dtftp/pkg/source"
)

// Reader wraps a data source and encodes its bytes into netascii on the
// fly. It implements source.Source so sessions can use it transparently.
//
// Because encoding changes the byte count, the encoded size cannot be
// derived from the underlying source's size: Size has to pull the whole
// stream through the encoder and buffer it. That makes tsize expensive for
// netascii transfers, which is why it is computed only on demand.
type Reader struct {
	src source.Source

	// encoded holds expansion output not yet handed to the caller.
	encoded []byte

	// slurp replaces the streaming path once Size has buffered the whole
	// encoded stream.
	slurp *bytes.Reader
	size  int64
	sized bool

	raw [512]byte
}

// New wraps src in a netascii encoder.
func New(src source.Source) *Reader {
	return &Reader{src: src}
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.slurp != nil {
		return r.slurp.Read(p)
	}

	// encode until we can satisfy the request or the source is drained
	for len(r.encoded) < len(p) {
		n, err := r.src.Read(r.raw[:])
		if n > 0 {
			r.encoded = r.expand(r.encoded, r.raw[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}

	if len(r.encoded) == 0 {
		return 0, io.EOF
	}

	n := copy(p, r.encoded)
	r.encoded = r.encoded[n:]
	return n, nil
}

// Size returns the encoded stream length. The first call reads and buffers
// the entire underlying source; subsequent reads are served from the
// buffer, so calling Size mid-transfer is not supported.
func (r *Reader) Size() (int64, bool) {
	if r.sized {
		return r.size, true
	}

	var buf bytes.Buffer
	if len(r.encoded) > 0 {
		buf.Write(r.encoded)
		r.encoded = nil
	}

	chunk := make([]byte, 4096)
	for {
		n, err := r.src.Read(chunk)
		if n > 0 {
			buf.Write(r.expand(nil, chunk[:n]))
		}
		if err != nil {
			break
		}
	}

	r.slurp = bytes.NewReader(buf.Bytes())
	r.size = int64(buf.Len())
	r.sized = true
	return r.size, true
}

func (r *Reader) Close() error {
	return r.src.Close()
}

func (r *Reader) expand(dst, raw []byte) []byte {
	for _, c := range raw {
		switch c {
		case '\n':
			dst = append(dst, '\r', '\n')
		case '\r':
			dst = append(dst, '\r', 0)
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

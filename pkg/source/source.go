// Package source defines the data-source contract between the TFTP session
// engine and whatever produces the bytes of a transfer, plus backends for
// local files, in-memory payloads, S3 objects and Badger values.
//
// The session engine is deliberately ignorant of where bytes come from: it
// only needs sequential reads, an optional total size (for the tsize
// option), and a Close it can call exactly once on every terminal path.
package source

import (
	"context"
	"errors"
)

// ErrNotFound reports that the requested path does not resolve to any
// content. Sessions translate it into a TFTP "file not found" error reply.
var ErrNotFound = errors.New("source not found")

// ErrAccessDenied reports that the path resolves outside the area the
// provider is allowed to serve. Sessions translate it into a TFTP "access
// violation" error reply.
var ErrAccessDenied = errors.New("access denied")

// Source supplies the bytes for exactly one transfer.
//
// Read follows io.Reader semantics: it may return fewer bytes than
// requested, with io.EOF at end of stream. The session engine re-reads
// until it has a full block or hits EOF, so short reads are fine.
//
// Size reports the total byte length when it is known up front, with
// ok=false otherwise (e.g. generated payloads of unpredictable length).
// It may be expensive; the engine calls it only when the client requested
// the tsize option.
//
// Close must be idempotent. The owning session calls it on every terminal
// transition, including error and timeout paths.
type Source interface {
	Read(p []byte) (int, error)
	Size() (n int64, ok bool)
	Close() error
}

// Provider resolves request paths to sources. One Provider serves many
// concurrent sessions, so implementations must be safe for concurrent use.
//
// Open returns ErrNotFound (possibly wrapped) when the path has no content
// and ErrAccessDenied when the path is outside the served area. Any other
// error is reported to the client as an undefined TFTP error.
type Provider interface {
	Open(ctx context.Context, path string) (Source, error)
}

package server

import (
	"context"
	"net"

	"github.com/marmos91/dtftp/pkg/source"
)

// Request describes an incoming read request as seen by a Handler.
//
// Options carries the raw option strings from the request, before
// negotiation. Handlers can inspect them (for example to pick a different
// backend per block size) but must not rely on the server honoring them
// verbatim: negotiation may clamp or drop any of them.
type Request struct {
	// Path is the requested file path, exactly as sent by the client.
	Path string

	// Mode is the transfer mode ("octet" or "netascii"), lowercased.
	Mode string

	// Peer is the client's address.
	Peer net.Addr

	// Options maps raw option names to raw values, lowercased names.
	Options map[string]string
}

// Handler resolves read requests to data sources.
//
// Open is called once per session, from the session's own goroutine. The
// returned source is closed by the session on every terminal path, so
// handlers must not retain it. Returning source.ErrNotFound or
// source.ErrAccessDenied maps to the corresponding TFTP error reply; any
// other error maps to a generic one.
//
// The context is cancelled when the server shuts down; handlers doing slow
// lookups should honor it.
type Handler interface {
	Open(ctx context.Context, req *Request) (source.Source, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request) (source.Source, error)

func (f HandlerFunc) Open(ctx context.Context, req *Request) (source.Source, error) {
	return f(ctx, req)
}

// ProviderHandler adapts a source.Provider to the Handler interface,
// serving the requested path directly from the provider.
func ProviderHandler(provider source.Provider) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (source.Source, error) {
		return provider.Open(ctx, req.Path)
	})
}

// Package badger provides a BadgerDB-backed data source. Payloads are
// stored as values keyed by request path, which suits fleets of small
// generated files (boot configs, ignition payloads) that must survive
// restarts without a full filesystem tree.
package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/dtftp/pkg/source"
	"github.com/marmos91/dtftp/pkg/source/memory"
)

// Provider serves values from a Badger database. Values are copied out of
// the transaction on Open, so a source stays valid for the whole session
// regardless of concurrent writes.
type Provider struct {
	db *badgerdb.DB
}

// Config contains the settings for a Badger provider.
type Config struct {
	// Path is the database directory. Created if it does not exist.
	Path string

	// InMemory runs Badger without disk persistence. Used in tests.
	InMemory bool
}

// New opens (or creates) the database.
func New(cfg Config) (*Provider, error) {
	opts := badgerdb.DefaultOptions(cfg.Path)
	opts.InMemory = cfg.InMemory
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}
	// Badger's default logger prints to stderr with its own format; drop
	// it so server logs stay uniform.
	opts.Logger = nil

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database at %q: %w", cfg.Path, err)
	}
	return &Provider{db: db}, nil
}

// Open reads the value stored under path.
func (p *Provider) Open(_ context.Context, path string) (source.Source, error) {
	var payload []byte
	err := p.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, fmt.Errorf("%q: %w", path, source.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return memory.NewBytes(payload), nil
}

// Put stores payload under path. Exposed so operators can load content
// into the database from tooling or startup code.
func (p *Provider) Put(path string, payload []byte) error {
	err := p.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(path), payload)
	})
	if err != nil {
		return fmt.Errorf("store %q: %w", path, err)
	}
	return nil
}

// Close releases the database. Must be called on shutdown.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Package store defines the pluggable key-value backend the trie is read
// from and written to: an Environment that hands out read and write
// transactions, and a Store bound to one transaction for get/put/has
// access to raw node bytes keyed by trie.Hash. Two implementations are
// provided: package memory (in-process, copy-on-write) and package lmdb
// (disk-backed, memory-mapped).
package store

import (
	"context"

	"github.com/casper-network/triestore/trie"
)

// ErrorKind classifies a BackendError so callers can distinguish a missing
// key from an I/O fault without string-matching.
type ErrorKind int

const (
	// NotFound means the requested hash has no corresponding entry.
	NotFound ErrorKind = iota
	// Corrupted means a stored entry failed to decode.
	Corrupted
	// IO means the underlying medium (disk, mmap) returned an error.
	IO
	// MapFull means a fixed-size backend (e.g. LMDB's mmap) is out of
	// room and needs to be resized or compacted.
	MapFull
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case Corrupted:
		return "Corrupted"
	case IO:
		return "IO"
	case MapFull:
		return "MapFull"
	default:
		return "Unknown"
	}
}

// BackendError is the error type every Store and Environment method
// returns for backend-level failures.
type BackendError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return "store: " + e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return "store: " + e.Kind.String() + ": " + e.Msg
}

func (e *BackendError) Unwrap() error { return e.Err }

// NewBackendError builds a BackendError of the given kind.
func NewBackendError(kind ErrorKind, msg string, err error) *BackendError {
	return &BackendError{Kind: kind, Msg: msg, Err: err}
}

// Store is a key-value view over one transaction, keyed by trie.Hash.
type Store interface {
	// Get retrieves the raw bytes for hash. ok is false if absent.
	Get(hash trie.Hash) (data []byte, ok bool, err error)
	// Put stores the raw bytes for hash, overwriting any prior value.
	// Content addressing means two Puts of the same hash always carry
	// the same bytes, so overwriting is never observable.
	Put(hash trie.Hash, data []byte) error
	// Has reports whether hash exists without fetching its value.
	Has(hash trie.Hash) (bool, error)
}

// ReadTxn is a read-only transaction: a consistent, point-in-time view
// that does not observe writes made by transactions started after it.
type ReadTxn interface {
	Store
	// Close releases the transaction's resources. Read transactions
	// never fail to close.
	Close()
}

// WriteTxn is the single concurrent write transaction an Environment
// permits at a time (the MVCC single-writer contract).
type WriteTxn interface {
	Store
	// Commit makes every Put in this transaction durable and visible to
	// read transactions started afterward.
	Commit() error
	// Abort discards every Put in this transaction.
	Abort()
}

// Environment is the backend a trie (or history layer) is mounted on. It
// hands out one read transaction per call and serializes write
// transactions: only one WriteTxn may be open at a time, guaranteeing the
// single-writer/multiple-readers contract every backend implementation
// must uphold.
type Environment interface {
	// BeginRead opens a new read transaction. Multiple read transactions
	// may be open concurrently, each seeing a stable snapshot.
	BeginRead(ctx context.Context) (ReadTxn, error)
	// BeginWrite opens the (single) write transaction, blocking until
	// any other write transaction has committed or aborted.
	BeginWrite(ctx context.Context) (WriteTxn, error)
	// Close releases the environment's resources. No transactions may
	// be open when Close is called.
	Close() error
}

// ReaderFrom adapts a Store to trie.NodeReader.
type ReaderFrom struct {
	S Store
}

func (r ReaderFrom) GetNode(h trie.Hash) (trie.Node, bool, error) {
	data, ok, err := r.S.Get(h)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	n, err := trie.DecodeExact(data)
	if err != nil {
		return nil, false, NewBackendError(Corrupted, "decoding node "+h.Hex(), err)
	}
	return n, true, nil
}

// WriterFrom adapts a Store to trie.NodeWriter.
type WriterFrom struct {
	S Store
}

func (w WriterFrom) GetNode(h trie.Hash) (trie.Node, bool, error) {
	return ReaderFrom{S: w.S}.GetNode(h)
}

func (w WriterFrom) PutNode(h trie.Hash, n trie.Node) error {
	enc, err := trie.Encode(n)
	if err != nil {
		return err
	}
	return w.S.Put(h, enc)
}

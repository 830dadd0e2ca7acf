package trie

import "errors"

var (
	// ErrRootNotFound is returned by Scan (and surfaced as
	// WriteRootNotFound by Write) when the root hash is absent from the
	// store.
	ErrRootNotFound = errors.New("trie: root not found")

	// ErrCorrupted means a pointer reachable from a live root resolved to
	// nothing in the backend — a dangling reference that should never
	// occur given the append-only, content-addressed invariants.
	ErrCorrupted = errors.New("trie: corrupted: dangling node reference")

	// ErrKeyIsPrefix is returned when descending a write's key consumes
	// it entirely without reaching a leaf or an empty slot, meaning the
	// key is a strict prefix of some other stored key. The store's
	// fixed-length-key model should make this unreachable; it is a
	// fail-closed guard against building the wrong structure, not an
	// expected outcome.
	ErrKeyIsPrefix = errors.New("trie: key is a prefix of an existing key")
)

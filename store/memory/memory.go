// Package memory implements an in-process store.Environment: the trie
// store's default backend for tests and for embedding in a process that
// never needs to survive a restart. Committed nodes live in an
// atomically-swapped map for snapshot-isolated reads; a bloom filter
// short-circuits negative Has lookups before touching the map.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/holiman/bloomfilter/v2"

	"github.com/casper-network/triestore/metrics"
	"github.com/casper-network/triestore/store"
	"github.com/casper-network/triestore/trie"
)

// bloomExpectedItemsDefault sizes the negative-lookup filter when
// Options.InitialCapacity is zero. Every Commit rebuilds the filter,
// starting from this size and doubling it until it covers the committed
// node count, mirroring the geth accounts-bloom pattern of accepting
// occasional false positives in exchange for a cheap Has fast path.
const bloomExpectedItemsDefault = 1 << 20

// Options configures an Environment. The zero value selects defaults
// sized for tests and small embedded uses.
type Options struct {
	// InitialCapacity seeds the node map and bloom filter sizing; it is
	// an estimate of the eventual committed node count, not a hard cap.
	// Zero selects bloomExpectedItemsDefault.
	InitialCapacity uint64
	// Metrics records Get/Put latencies for every transaction this
	// environment opens. Nil disables backend-level metrics.
	Metrics *metrics.Collectors
}

type snapshot struct {
	nodes map[trie.Hash][]byte
	bloom *bloomfilter.Filter
}

// Environment is an in-memory store.Environment. The zero value is not
// usable; construct with New or NewWithOptions.
type Environment struct {
	writerMu sync.Mutex // serializes write transactions
	current  atomic.Pointer[snapshot]
	metrics  *metrics.Collectors
}

// New returns an empty in-memory environment sized for a small embedded
// or test workload.
func New() *Environment {
	return NewWithOptions(Options{})
}

// NewWithOptions returns an empty in-memory environment sized per opts.
func NewWithOptions(opts Options) *Environment {
	cap := opts.InitialCapacity
	if cap == 0 {
		cap = bloomExpectedItemsDefault
	}
	bf, err := bloomfilter.NewOptimal(cap, 0.001)
	if err != nil {
		// NewOptimal only fails for invalid (n, p) pairs; cap is always
		// a positive uint64, so this is unreachable.
		panic(err)
	}
	env := &Environment{metrics: opts.Metrics}
	env.current.Store(&snapshot{nodes: make(map[trie.Hash][]byte, cap), bloom: bf})
	return env
}

func hashKey(h trie.Hash) uint64 {
	var x uint64
	for i := 0; i < 8; i++ {
		x = x<<8 | uint64(h[i])
	}
	return x
}

// BeginRead returns a snapshot-isolated read transaction over whichever
// snapshot is current at the moment it's called.
func (e *Environment) BeginRead(_ context.Context) (store.ReadTxn, error) {
	return &readTxn{snap: e.current.Load(), metrics: e.metrics}, nil
}

// BeginWrite acquires the single write lock and hands back a transaction
// that accumulates writes in a copy-on-write overlay over the current
// snapshot, swapped in atomically on Commit.
func (e *Environment) BeginWrite(ctx context.Context) (store.WriteTxn, error) {
	done := make(chan struct{})
	go func() {
		e.writerMu.Lock()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		go func() {
			<-done
			e.writerMu.Unlock()
		}()
		return nil, ctx.Err()
	}

	base := e.current.Load()
	return &writeTxn{
		env:     e,
		base:    base,
		overlay: make(map[trie.Hash][]byte),
		metrics: e.metrics,
	}, nil
}

// Close is a no-op; the in-memory environment holds no external resources.
func (e *Environment) Close() error { return nil }

// Len reports the number of distinct node hashes currently committed.
// It exists for tests that assert a failed commit added no nodes; callers
// that only need to read or write node data should go through the
// store.Environment interface instead.
func (e *Environment) Len() int {
	return len(e.current.Load().nodes)
}

type readTxn struct {
	snap    *snapshot
	metrics *metrics.Collectors
}

func (r *readTxn) Get(h trie.Hash) ([]byte, bool, error) {
	start := time.Now()
	data, ok := r.snap.nodes[h]
	r.metrics.ObserveBackendGet(time.Since(start))
	return data, ok, nil
}

func (r *readTxn) Has(h trie.Hash) (bool, error) {
	if !r.snap.bloom.Contains(hashKey(h)) {
		return false, nil
	}
	_, ok := r.snap.nodes[h]
	return ok, nil
}

func (r *readTxn) Put(trie.Hash, []byte) error {
	return store.NewBackendError(store.IO, "put on a read transaction", nil)
}

func (r *readTxn) Close() {}

type writeTxn struct {
	env     *Environment
	base    *snapshot
	overlay map[trie.Hash][]byte
	closed  bool
	metrics *metrics.Collectors
}

func (w *writeTxn) Get(h trie.Hash) ([]byte, bool, error) {
	start := time.Now()
	defer func() { w.metrics.ObserveBackendGet(time.Since(start)) }()
	if data, ok := w.overlay[h]; ok {
		return data, true, nil
	}
	data, ok := w.base.nodes[h]
	return data, ok, nil
}

func (w *writeTxn) Has(h trie.Hash) (bool, error) {
	if _, ok := w.overlay[h]; ok {
		return true, nil
	}
	if !w.base.bloom.Contains(hashKey(h)) {
		return false, nil
	}
	_, ok := w.base.nodes[h]
	return ok, nil
}

func (w *writeTxn) Put(h trie.Hash, data []byte) error {
	start := time.Now()
	cp := make([]byte, len(data))
	copy(cp, data)
	w.overlay[h] = cp
	w.metrics.ObserveBackendPut(time.Since(start))
	return nil
}

// Commit merges the overlay into a fresh map (preserving the base map's
// immutability for readers still holding it) and publishes it atomically.
func (w *writeTxn) Commit() error {
	if w.closed {
		return store.NewBackendError(store.IO, "commit on a closed write transaction", nil)
	}
	w.closed = true
	defer w.env.writerMu.Unlock()

	merged := make(map[trie.Hash][]byte, len(w.base.nodes)+len(w.overlay))
	for h, v := range w.base.nodes {
		merged[h] = v
	}
	bloomCap := bloomExpectedItemsDefault
	for uint64(len(merged)+len(w.overlay)) > uint64(bloomCap) {
		bloomCap *= 2
	}
	bf, err := bloomfilter.NewOptimal(uint64(bloomCap), 0.001)
	if err != nil {
		return store.NewBackendError(store.IO, "rebuilding bloom filter", err)
	}
	for h, v := range w.overlay {
		merged[h] = v
	}
	for h := range merged {
		bf.Add(hashKey(h))
	}

	w.env.current.Store(&snapshot{nodes: merged, bloom: bf})
	return nil
}

// Abort discards the overlay; the environment's snapshot is untouched.
func (w *writeTxn) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.env.writerMu.Unlock()
}

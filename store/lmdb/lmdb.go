// Package lmdb implements a store.Environment backed by LMDB
// (github.com/bmatsuo/lmdb-go/lmdb): the durable backend for running the
// trie store against a real data directory. One unnamed database holds
// every node, keyed by its 32-byte hash; a bloom filter mirrors the
// in-memory backend's negative-lookup fast path so repeated misses (a
// common shape during proof verification) don't round-trip through the
// memory-mapped file.
package lmdb

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatsuo/lmdb-go/lmdb"
	"github.com/holiman/bloomfilter/v2"

	"github.com/casper-network/triestore/metrics"
	"github.com/casper-network/triestore/store"
	"github.com/casper-network/triestore/trie"
)

// Options configures an Environment.
type Options struct {
	// Path is the data directory LMDB will create or open.
	Path string
	// MapSize is the maximum size in bytes the memory-mapped file may
	// grow to. LMDB reserves the address space up front but only
	// allocates pages on disk as they're used.
	MapSize int64
	// BloomCapacity is the expected number of distinct node hashes, used
	// to size the negative-lookup filter. Zero selects a 16M-entry
	// default.
	BloomCapacity uint64
	// Metrics records Get/Put latencies for every transaction this
	// environment opens. Nil disables backend-level metrics.
	Metrics *metrics.Collectors
}

const defaultBloomCapacity = 1 << 24

// Environment is an LMDB-backed store.Environment with exactly one
// writer permitted at a time, enforced by writerMu (LMDB itself already
// serializes writers process-wide via its own file lock, but that lock
// blocks rather than returning a context-aware error, so writerMu is
// acquired first).
type Environment struct {
	env      *lmdb.Env
	dbi      lmdb.DBI
	writerMu sync.Mutex
	bloom    atomic.Pointer[bloomfilter.Filter]
	metrics  *metrics.Collectors
}

// Open creates or opens an LMDB environment at opts.Path with a single
// unnamed database, eagerly opening the DBI so every later transaction
// can reuse it without a second round trip.
func Open(opts Options) (*Environment, error) {
	env, err := lmdb.NewEnv()
	if err != nil {
		return nil, store.NewBackendError(store.IO, "creating lmdb environment", err)
	}
	mapSize := opts.MapSize
	if mapSize == 0 {
		mapSize = 1 << 30 // 1 GiB
	}
	if err := env.SetMapSize(mapSize); err != nil {
		return nil, store.NewBackendError(store.IO, "setting lmdb map size", err)
	}
	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, store.NewBackendError(store.IO, "creating data directory", err)
	}
	if err := env.Open(opts.Path, 0, 0o644); err != nil {
		return nil, store.NewBackendError(store.IO, "opening lmdb environment", err)
	}

	var dbi lmdb.DBI
	err = env.Update(func(txn *lmdb.Txn) error {
		var err error
		dbi, err = txn.OpenRoot(0)
		return err
	})
	if err != nil {
		env.Close()
		return nil, store.NewBackendError(store.IO, "opening root database", err)
	}

	cap := opts.BloomCapacity
	if cap == 0 {
		cap = defaultBloomCapacity
	}
	bf, err := bloomfilter.NewOptimal(cap, 0.001)
	if err != nil {
		env.Close()
		return nil, store.NewBackendError(store.IO, "sizing bloom filter", err)
	}
	e := &Environment{env: env, dbi: dbi, metrics: opts.Metrics}
	e.bloom.Store(bf)

	if err := e.rebuildBloomFromDisk(); err != nil {
		env.Close()
		return nil, err
	}
	return e, nil
}

func (e *Environment) rebuildBloomFromDisk() error {
	bf := e.bloom.Load()
	return e.env.View(func(txn *lmdb.Txn) error {
		cur, err := txn.OpenCursor(e.dbi)
		if err != nil {
			return err
		}
		defer cur.Close()
		for {
			k, _, err := cur.Get(nil, nil, lmdb.Next)
			if lmdb.IsNotFound(err) {
				break
			}
			if err != nil {
				return err
			}
			var h trie.Hash
			copy(h[:], k)
			bf.Add(hashKey(h))
		}
		return nil
	})
}

func hashKey(h trie.Hash) uint64 {
	var x uint64
	for i := 0; i < 8; i++ {
		x = x<<8 | uint64(h[i])
	}
	return x
}

// BeginRead opens an LMDB read-only transaction.
func (e *Environment) BeginRead(_ context.Context) (store.ReadTxn, error) {
	txn, err := e.env.BeginTxn(nil, lmdb.Readonly)
	if err != nil {
		return nil, store.NewBackendError(store.IO, "beginning read transaction", err)
	}
	return &readTxn{env: e, txn: txn}, nil
}

// BeginWrite acquires the environment's write lock and opens an LMDB
// read-write transaction.
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

	txn, err := e.env.BeginTxn(nil, 0)
	if err != nil {
		e.writerMu.Unlock()
		return nil, store.NewBackendError(store.IO, "beginning write transaction", err)
	}
	return &writeTxn{env: e, txn: txn, added: nil}, nil
}

// Close closes the LMDB environment. No transactions may be open.
func (e *Environment) Close() error {
	e.env.Close()
	return nil
}

type readTxn struct {
	env *Environment
	txn *lmdb.Txn
}

func (r *readTxn) Get(h trie.Hash) ([]byte, bool, error) {
	start := time.Now()
	defer func() { r.env.metrics.ObserveBackendGet(time.Since(start)) }()
	data, err := r.txn.Get(r.env.dbi, h[:])
	if lmdb.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.NewBackendError(store.IO, "lmdb get", err)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true, nil
}

func (r *readTxn) Has(h trie.Hash) (bool, error) {
	if !r.env.bloom.Load().Contains(hashKey(h)) {
		return false, nil
	}
	_, ok, err := r.Get(h)
	return ok, err
}

func (r *readTxn) Put(trie.Hash, []byte) error {
	return store.NewBackendError(store.IO, "put on a read transaction", nil)
}

func (r *readTxn) Close() {
	r.txn.Abort()
}

type writeTxn struct {
	env    *Environment
	txn    *lmdb.Txn
	added  []trie.Hash
	closed bool
}

func (w *writeTxn) Get(h trie.Hash) ([]byte, bool, error) {
	start := time.Now()
	defer func() { w.env.metrics.ObserveBackendGet(time.Since(start)) }()
	data, err := w.txn.Get(w.env.dbi, h[:])
	if lmdb.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.NewBackendError(store.IO, "lmdb get", err)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true, nil
}

func (w *writeTxn) Has(h trie.Hash) (bool, error) {
	for _, a := range w.added {
		if a == h {
			return true, nil
		}
	}
	if !w.env.bloom.Load().Contains(hashKey(h)) {
		return false, nil
	}
	_, ok, err := w.Get(h)
	return ok, err
}

func (w *writeTxn) Put(h trie.Hash, data []byte) error {
	start := time.Now()
	defer func() { w.env.metrics.ObserveBackendPut(time.Since(start)) }()
	err := w.txn.Put(w.env.dbi, h[:], data, 0)
	if err != nil {
		if errno, ok := err.(lmdb.Errno); ok && errno == lmdb.MapFull {
			return store.NewBackendError(store.MapFull, "lmdb map is full", err)
		}
		return store.NewBackendError(store.IO, "lmdb put", err)
	}
	w.added = append(w.added, h)
	return nil
}

func (w *writeTxn) Commit() error {
	if w.closed {
		return store.NewBackendError(store.IO, "commit on a closed write transaction", nil)
	}
	w.closed = true
	defer w.env.writerMu.Unlock()

	if err := w.txn.Commit(); err != nil {
		return store.NewBackendError(store.IO, "lmdb commit", err)
	}
	bf := w.env.bloom.Load()
	for _, h := range w.added {
		bf.Add(hashKey(h))
	}
	return nil
}

func (w *writeTxn) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.txn.Abort()
	w.env.writerMu.Unlock()
}

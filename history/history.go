package history

import (
	"context"
	"sort"
	"time"

	"github.com/casper-network/triestore/log"
	"github.com/casper-network/triestore/metrics"
	"github.com/casper-network/triestore/store"
	"github.com/casper-network/triestore/trie"
)

// CommitResultKind tags the outcome of a Commit call.
type CommitResultKind int

const (
	Success CommitResultKind = iota
	RootNotFound
	CommitKeyNotFound
	CommitTypeMismatch
)

func (k CommitResultKind) String() string {
	switch k {
	case Success:
		return "Success"
	case RootNotFound:
		return "RootNotFound"
	case CommitKeyNotFound:
		return "KeyNotFound"
	case CommitTypeMismatch:
		return "TypeMismatch"
	default:
		return "Unknown"
	}
}

// CommitResult is the outcome of History.Commit.
type CommitResult struct {
	Kind CommitResultKind

	// NewRoot is set only when Kind == Success.
	NewRoot trie.Hash
	// FailedKey is set for CommitKeyNotFound and CommitTypeMismatch.
	FailedKey Key
	// Expected/Actual are set for CommitTypeMismatch.
	Expected ValueKind
	Actual   ValueKind
}

// History is the commit layer above a store.Environment: it checks out
// TrackingCopy instances for speculative reads and folds a transform
// batch into a new root inside a single backend write transaction.
type History struct {
	env     store.Environment
	cache   int
	metrics *metrics.Collectors
	log     *log.Logger
}

// NewHistory wires a History to env. cacheBytes configures every
// TrackingCopy's local value cache (0 selects DefaultCacheBytes).
func NewHistory(env store.Environment, cacheBytes int, m *metrics.Collectors) *History {
	return &History{
		env:     env,
		cache:   cacheBytes,
		metrics: m,
		log:     log.Default().Module("history"),
	}
}

// Checkout opens a TrackingCopy rooted at root. ok is false when root is
// not present in the store.
func (h *History) Checkout(ctx context.Context, root trie.Hash) (tc *TrackingCopy, ok bool, err error) {
	rtx, err := h.env.BeginRead(ctx)
	if err != nil {
		return nil, false, err
	}
	defer rtx.Close()

	has, err := rtx.Has(root)
	if err != nil {
		return nil, false, err
	}
	if !has {
		return nil, false, nil
	}
	reader := checkoutReader{env: h.env, ctx: ctx}
	return NewTrackingCopy(reader, root, h.cache, h.metrics), true, nil
}

// checkoutReader opens a fresh read transaction per node fetch so a
// TrackingCopy's reader outlives the short-lived transaction Checkout
// used to confirm the root's presence. This trades one read transaction
// per node fetch for not having to keep a long-lived read transaction
// open for the tracking copy's entire lifetime, which in LMDB would pin
// the backend's free list.
type checkoutReader struct {
	env store.Environment
	ctx context.Context
}

func (r checkoutReader) GetNode(h trie.Hash) (trie.Node, bool, error) {
	rtx, err := r.env.BeginRead(r.ctx)
	if err != nil {
		return nil, false, err
	}
	defer rtx.Close()
	return store.ReaderFrom{S: rtx}.GetNode(h)
}

// Commit folds transforms into root inside one backend write transaction,
// iterating keys in sorted order for determinism. A typed failure
// aborts the transaction and leaves the backend untouched.
func (h *History) Commit(ctx context.Context, root trie.Hash, transforms map[string]Transform) (CommitResult, error) {
	start := time.Now()
	res, err := h.commit(ctx, root, transforms)
	h.metrics.ObserveCommit(res.Kind.String(), time.Since(start))
	if err != nil {
		h.log.Warn("commit failed", "root", root.Hex(), "error", err)
	}
	return res, err
}

func (h *History) commit(ctx context.Context, root trie.Hash, transforms map[string]Transform) (CommitResult, error) {
	wtx, err := h.env.BeginWrite(ctx)
	if err != nil {
		return CommitResult{}, err
	}
	committed := false
	defer func() {
		if !committed {
			wtx.Abort()
		}
	}()

	has, err := wtx.Has(root)
	if err != nil {
		return CommitResult{}, err
	}
	if !has {
		return CommitResult{Kind: RootNotFound}, nil
	}

	keys := make([]string, 0, len(transforms))
	for k := range transforms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rw := store.WriterFrom{S: wtx}
	currentRoot := root

	for _, k := range keys {
		key := Key(k)
		t := transforms[k]

		prior, priorFound, err := readValue(h.metrics, rw, currentRoot, key)
		if err != nil {
			return CommitResult{}, err
		}
		var priorPtr *StoredValue
		if priorFound {
			priorPtr = &prior
		}

		newValue, applyErr := Apply(t, priorPtr)
		if applyErr != nil {
			ae := applyErr.(*ApplyError)
			switch ae.Kind {
			case KeyNotFound:
				return CommitResult{Kind: CommitKeyNotFound, FailedKey: key}, nil
			case TypeMismatch, ExplicitFailure:
				return CommitResult{
					Kind:      CommitTypeMismatch,
					FailedKey: key,
					Expected:  ae.Expected,
					Actual:    ae.Actual,
				}, nil
			}
			return CommitResult{}, applyErr
		}

		writeStart := time.Now()
		writeRes, err := trie.Write(rw, currentRoot, key, EncodeStoredValue(newValue))
		if err != nil {
			h.metrics.ObserveWrite("error", time.Since(writeStart))
			return CommitResult{}, err
		}
		h.metrics.ObserveWrite(writeRes.Kind.String(), time.Since(writeStart))
		switch writeRes.Kind {
		case trie.Written:
			currentRoot = writeRes.NewRoot
		case trie.AlreadyExists:
			// No-op write: the computed value is byte-identical to what's
			// already stored, so the root does not change.
		case trie.WriteRootNotFound:
			return CommitResult{}, trie.ErrCorrupted
		}
	}

	if err := wtx.Commit(); err != nil {
		return CommitResult{}, err
	}
	committed = true
	return CommitResult{Kind: Success, NewRoot: currentRoot}, nil
}

func readValue(m *metrics.Collectors, r trie.NodeReader, root trie.Hash, key Key) (StoredValue, bool, error) {
	start := time.Now()
	res, err := trie.Read(r, root, key)
	if err != nil {
		m.ObserveRead("error", time.Since(start))
		return StoredValue{}, false, err
	}
	m.ObserveRead(res.Kind.String(), time.Since(start))
	if res.Kind != trie.Found {
		return StoredValue{}, false, nil
	}
	v, err := DecodeStoredValue(res.Value)
	if err != nil {
		return StoredValue{}, false, err
	}
	return v, true, nil
}

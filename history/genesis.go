package history

import (
	"context"
	"sort"
	"time"

	"github.com/casper-network/triestore/metrics"
	"github.com/casper-network/triestore/store"
	"github.com/casper-network/triestore/trie"
)

// CreateEmptyRoot ensures the canonical empty trie node is present in env
// and returns its hash. It is idempotent: calling it against an
// environment that already has the empty root is a harmless no-op write.
func CreateEmptyRoot(ctx context.Context, env store.Environment) (trie.Hash, error) {
	root := trie.NewEmptyBranch()
	hash, err := trie.HashNode(root)
	if err != nil {
		return trie.Hash{}, err
	}

	wtx, err := env.BeginWrite(ctx)
	if err != nil {
		return trie.Hash{}, err
	}
	committed := false
	defer func() {
		if !committed {
			wtx.Abort()
		}
	}()

	has, err := wtx.Has(hash)
	if err != nil {
		return trie.Hash{}, err
	}
	if !has {
		if err := (store.WriterFrom{S: wtx}).PutNode(hash, root); err != nil {
			return trie.Hash{}, err
		}
	}
	if err := wtx.Commit(); err != nil {
		return trie.Hash{}, err
	}
	committed = true
	return hash, nil
}

// Seed writes a batch of initial key/value pairs against the empty root
// in a single backend write transaction, returning the resulting genesis
// root. Seed does not go through the transform/Apply machinery: every
// entry is an unconditional Write, matching how a chain's genesis state
// is populated from a snapshot rather than from contract execution. m may
// be nil.
func Seed(ctx context.Context, env store.Environment, entries map[string]StoredValue, m *metrics.Collectors) (trie.Hash, error) {
	root, err := CreateEmptyRoot(ctx, env)
	if err != nil {
		return trie.Hash{}, err
	}
	if len(entries) == 0 {
		return root, nil
	}

	wtx, err := env.BeginWrite(ctx)
	if err != nil {
		return trie.Hash{}, err
	}
	committed := false
	defer func() {
		if !committed {
			wtx.Abort()
		}
	}()

	rw := store.WriterFrom{S: wtx}
	current := root
	keys := sortedKeys(entries)
	for _, k := range keys {
		start := time.Now()
		res, err := trie.Write(rw, current, []byte(k), EncodeStoredValue(entries[k]))
		if err != nil {
			m.ObserveWrite("error", time.Since(start))
			return trie.Hash{}, err
		}
		m.ObserveWrite(res.Kind.String(), time.Since(start))
		if res.Kind == trie.Written {
			current = res.NewRoot
		}
	}

	if err := wtx.Commit(); err != nil {
		return trie.Hash{}, err
	}
	committed = true
	return current, nil
}

func sortedKeys(m map[string]StoredValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

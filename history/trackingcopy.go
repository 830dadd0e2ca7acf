package history

import (
	"time"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/casper-network/triestore/metrics"
	"github.com/casper-network/triestore/trie"
)

// TrackingCopy is a read-through, write-buffering view over one trie
// root: reads check a local transform buffer, then a local value cache,
// then fall through to the underlying trie. Writes only ever
// touch the transform buffer; nothing reaches the backend until the
// buffer is handed to History.Commit. A tracking copy used for
// speculative execution that fails (revert, out-of-gas) is simply
// discarded, leaving the backend untouched.
type TrackingCopy struct {
	reader  trie.NodeReader
	root    trie.Hash
	metrics *metrics.Collectors

	transforms map[string]Transform
	cache      *fastcache.Cache
}

// DefaultCacheBytes is the size of a TrackingCopy's local value cache
// when none is supplied.
const DefaultCacheBytes = 32 * 1024 * 1024

// NewTrackingCopy opens a tracking copy rooted at root, reading through
// reader. cacheBytes <= 0 selects DefaultCacheBytes.
func NewTrackingCopy(reader trie.NodeReader, root trie.Hash, cacheBytes int, m *metrics.Collectors) *TrackingCopy {
	if cacheBytes <= 0 {
		cacheBytes = DefaultCacheBytes
	}
	return &TrackingCopy{
		reader:     reader,
		root:       root,
		metrics:    m,
		transforms: make(map[string]Transform),
		cache:      fastcache.New(cacheBytes),
	}
}

// Root returns the trie root this tracking copy reads through.
func (tc *TrackingCopy) Root() trie.Hash { return tc.root }

// Read resolves key through the three-tier order: transform buffer,
// value cache, underlying trie.
func (tc *TrackingCopy) Read(key Key) (StoredValue, bool, error) {
	if t, ok := tc.transforms[string(key)]; ok {
		v, err := tc.valueAfterTransform(key, t)
		if err != nil {
			return StoredValue{}, false, err
		}
		return v, true, nil
	}

	if cached, ok := tc.cache.HasGet(nil, key); ok {
		tc.metrics.CacheHit()
		v, err := DecodeStoredValue(cached)
		if err != nil {
			return StoredValue{}, false, err
		}
		return v, true, nil
	}
	tc.metrics.CacheMiss()

	start := time.Now()
	res, err := trie.Read(tc.reader, tc.root, key)
	if err != nil {
		tc.metrics.ObserveRead("error", time.Since(start))
		return StoredValue{}, false, err
	}
	tc.metrics.ObserveRead(res.Kind.String(), time.Since(start))
	switch res.Kind {
	case trie.Found:
		v, err := DecodeStoredValue(res.Value)
		if err != nil {
			return StoredValue{}, false, err
		}
		tc.cache.Set(key, res.Value)
		return v, true, nil
	case trie.NotFound:
		return StoredValue{}, false, nil
	default:
		return StoredValue{}, false, trie.ErrRootNotFound
	}
}

// valueAfterTransform computes what Read(key) would observe given a
// pending transform, without mutating the transform buffer. An additive
// transform is resolved against the value beneath it (cache or trie) each
// time it's read, so a read immediately after AddU64 reflects the delta
// without waiting for commit.
func (tc *TrackingCopy) valueAfterTransform(key Key, t Transform) (StoredValue, error) {
	if t.Kind == Write {
		return t.WriteValue, nil
	}
	prior, found, err := tc.readThroughCache(key)
	if err != nil {
		return StoredValue{}, err
	}
	var priorPtr *StoredValue
	if found {
		priorPtr = &prior
	}
	return Apply(t, priorPtr)
}

func (tc *TrackingCopy) readThroughCache(key Key) (StoredValue, bool, error) {
	if cached, ok := tc.cache.HasGet(nil, key); ok {
		v, err := DecodeStoredValue(cached)
		return v, true, err
	}
	start := time.Now()
	res, err := trie.Read(tc.reader, tc.root, key)
	if err != nil {
		tc.metrics.ObserveRead("error", time.Since(start))
		return StoredValue{}, false, err
	}
	tc.metrics.ObserveRead(res.Kind.String(), time.Since(start))
	if res.Kind != trie.Found {
		return StoredValue{}, false, nil
	}
	v, err := DecodeStoredValue(res.Value)
	return v, true, err
}

// Write buffers an unconditional write; it never touches the backend.
func (tc *TrackingCopy) Write(key Key, value StoredValue) {
	tc.transforms[string(key)] = NewWriteTransform(value)
}

// AddTransform buffers an additive or failure transform for key. Like
// the commit transform map itself, the buffer holds one Transform per
// key. If a plain Write is already pending for key, t is resolved
// against that write's value right away and the buffer keeps the
// resolved value as a Write, so a later Read sees v1+delta rather than
// losing v1; if that resolution fails, t replaces the pending Write.
// Any other kind of pending transform (including another
// additive one) is replaced outright, matching History.Commit's own
// one-transform-per-key resolution.
func (tc *TrackingCopy) AddTransform(key Key, t Transform) {
	k := string(key)
	if prior, ok := tc.transforms[k]; ok && prior.Kind == Write {
		if resolved, err := Apply(t, &prior.WriteValue); err == nil {
			tc.transforms[k] = NewWriteTransform(resolved)
			return
		}
	}
	tc.transforms[k] = t
}

// Transforms returns a copy of the pending transform buffer, keyed by
// the raw key bytes, ready to hand to History.Commit.
func (tc *TrackingCopy) Transforms() map[string]Transform {
	out := make(map[string]Transform, len(tc.transforms))
	for k, v := range tc.transforms {
		out[k] = v
	}
	return out
}

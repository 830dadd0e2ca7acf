package history

import (
	"context"
	"testing"

	"github.com/casper-network/triestore/store/memory"
	"github.com/casper-network/triestore/trie"
)

func newTestHistory(t *testing.T) (*History, *memory.Environment, context.Context) {
	t.Helper()
	env := memory.New()
	t.Cleanup(func() { env.Close() })
	return NewHistory(env, 0, nil), env, context.Background()
}

func TestCommitWriteThenCheckoutReads(t *testing.T) {
	h, env, ctx := newTestHistory(t)

	root, err := CreateEmptyRoot(ctx, env)
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.Commit(ctx, root, map[string]Transform{
		"k1": NewWriteTransform(NewBytesValue([]byte("value0"))),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != Success {
		t.Fatalf("expected Success, got %v", res.Kind)
	}

	tc, ok, err := h.Checkout(ctx, res.NewRoot)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected checkout to succeed")
	}
	v, found, err := tc.Read(Key("k1"))
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(v.Bytes) != "value0" {
		t.Fatalf("got %v found=%v", v, found)
	}
}

func TestCheckoutUnknownRoot(t *testing.T) {
	h, _, ctx := newTestHistory(t)
	_, ok, err := h.Checkout(ctx, trie.HashBytes([]byte("never-committed")))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected checkout of an unknown root to fail")
	}
}

func TestCommitRootNotFound(t *testing.T) {
	h, _, ctx := newTestHistory(t)
	res, err := h.Commit(ctx, trie.HashBytes([]byte("nonexistent")), map[string]Transform{
		"k": NewWriteTransform(NewBytesValue([]byte("v"))),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != RootNotFound {
		t.Fatalf("expected RootNotFound, got %v", res.Kind)
	}
}

// TestCommitTypeMismatchLeavesNoTrace checks that committing AddU64
// against a key holding a Bytes value returns TypeMismatch and adds no
// nodes to the store.
func TestCommitTypeMismatchLeavesNoTrace(t *testing.T) {
	h, env, ctx := newTestHistory(t)

	root, err := CreateEmptyRoot(ctx, env)
	if err != nil {
		t.Fatal(err)
	}
	res, err := h.Commit(ctx, root, map[string]Transform{
		"k": NewWriteTransform(NewBytesValue([]byte("a string"))),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != Success {
		t.Fatalf("setup commit failed: %v", res.Kind)
	}
	rootBefore := res.NewRoot
	countBefore := env.Len()

	res2, err := h.Commit(ctx, rootBefore, map[string]Transform{
		"k": NewAddU64Transform(7),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res2.Kind != CommitTypeMismatch {
		t.Fatalf("expected TypeMismatch, got %v", res2.Kind)
	}
	if res2.Expected != KindUInt64 || res2.Actual != KindBytes {
		t.Fatalf("expected/actual kinds wrong: %v/%v", res2.Expected, res2.Actual)
	}

	countAfter := env.Len()
	if countAfter != countBefore {
		t.Fatalf("expected node count unchanged after a failed commit, before=%d after=%d", countBefore, countAfter)
	}

	tc, ok, err := h.Checkout(ctx, rootBefore)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected the pre-failure root to still be valid")
	}
	v, found, err := tc.Read(Key("k"))
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(v.Bytes) != "a string" {
		t.Fatalf("expected the prior value to be unchanged, got %v found=%v", v, found)
	}
}

func TestCommitAddU64AccumulatesAcrossCommits(t *testing.T) {
	h, env, ctx := newTestHistory(t)
	root, err := CreateEmptyRoot(ctx, env)
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.Commit(ctx, root, map[string]Transform{
		"balance": NewWriteTransform(NewUInt64Value(100)),
	})
	if err != nil || res.Kind != Success {
		t.Fatalf("res=%v err=%v", res.Kind, err)
	}

	res2, err := h.Commit(ctx, res.NewRoot, map[string]Transform{
		"balance": NewAddU64Transform(50),
	})
	if err != nil || res2.Kind != Success {
		t.Fatalf("res2=%v err=%v", res2.Kind, err)
	}

	tc, ok, err := h.Checkout(ctx, res2.NewRoot)
	if err != nil || !ok {
		t.Fatalf("checkout failed: ok=%v err=%v", ok, err)
	}
	v, found, err := tc.Read(Key("balance"))
	if err != nil || !found {
		t.Fatalf("read failed: found=%v err=%v", found, err)
	}
	if v.UInt64 != 150 {
		t.Fatalf("expected 150, got %d", v.UInt64)
	}
}

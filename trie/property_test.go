package trie

import (
	"sort"
	"testing"

	"pgregory.net/rapid"
)

// drawDistinctKeys draws n distinct fixed-length keys, rejecting repeats
// drawn by chance so every entry in the resulting batch is a separate
// trie key.
func drawDistinctKeys(rt *rapid.T, n, length int) [][]byte {
	seen := make(map[string]bool, n)
	keys := make([][]byte, 0, n)
	for len(keys) < n {
		k := rapid.SliceOfN(rapid.Byte(), length, length).Draw(rt, "key")
		if seen[string(k)] {
			continue
		}
		seen[string(k)] = true
		keys = append(keys, k)
	}
	return keys
}

// TestWriteSequenceHistoryPreservationProperty generalizes
// TestHistoryPreservation to arbitrary write sequences: every root
// produced along an arbitrary chain of writes must still read back
// exactly the value that was current immediately after that write.
func TestWriteSequenceHistoryPreservationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newMemStore()
		root := NewEmptyBranch()
		r, err := HashNode(root)
		if err != nil {
			rt.Fatal(err)
		}
		if err := s.PutNode(r, root); err != nil {
			rt.Fatal(err)
		}

		n := rapid.IntRange(1, 16).Draw(rt, "n")
		keys := drawDistinctKeys(rt, n, 6)

		type snapshot struct {
			root Hash
			key  []byte
			val  []byte
		}
		var snaps []snapshot
		for i, k := range keys {
			v := rapid.SliceOfN(rapid.Byte(), 0, 16).Draw(rt, "value")
			res, err := Write(s, r, k, v)
			if err != nil {
				rt.Fatalf("write %d: %v", i, err)
			}
			if res.Kind != Written {
				rt.Fatalf("write %d: expected Written, got %v", i, res.Kind)
			}
			r = res.NewRoot
			snaps = append(snaps, snapshot{root: r, key: k, val: v})
		}

		for _, snap := range snaps {
			res, err := Read(s, snap.root, snap.key)
			if err != nil {
				rt.Fatal(err)
			}
			if res.Kind != Found {
				rt.Fatalf("key %x at root %x: expected Found, got %v", snap.key, snap.root, res.Kind)
			}
			if string(res.Value) != string(snap.val) {
				rt.Fatalf("key %x at root %x = %x, want %x", snap.key, snap.root, res.Value, snap.val)
			}
		}
	})
}

// TestWriteSequenceNoDanglingPointersProperty generalizes
// TestNoDanglingPointers to arbitrary write sequences: every pointer
// reachable from the final root of an arbitrary write chain must resolve
// to a node actually present in the store.
func TestWriteSequenceNoDanglingPointersProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := newMemStore()
		root := NewEmptyBranch()
		r, err := HashNode(root)
		if err != nil {
			rt.Fatal(err)
		}
		if err := s.PutNode(r, root); err != nil {
			rt.Fatal(err)
		}

		n := rapid.IntRange(1, 16).Draw(rt, "n")
		keys := drawDistinctKeys(rt, n, 6)
		for i, k := range keys {
			v := rapid.SliceOfN(rapid.Byte(), 0, 16).Draw(rt, "value")
			res, err := Write(s, r, k, v)
			if err != nil {
				rt.Fatalf("write %d: %v", i, err)
			}
			r = res.NewRoot
		}

		var walk func(h Hash) error
		walk = func(h Hash) error {
			n, ok, err := s.GetNode(h)
			if err != nil {
				return err
			}
			if !ok {
				rt.Fatalf("dangling pointer to %x", h)
			}
			switch v := n.(type) {
			case *Branch:
				for _, p := range v.Pointers {
					if p != nil {
						if err := walk(p.Hash); err != nil {
							return err
						}
					}
				}
			case Extension:
				return walk(v.Pointer.Hash)
			}
			return nil
		}
		if err := walk(r); err != nil {
			rt.Fatal(err)
		}
	})
}

// TestCanonicalHashingIndependentOfWriteOrderProperty builds the same
// logical key/value map two different ways — inserting the same entries
// in two independently drawn orders, each against its own empty root —
// and checks the two construction paths converge on the same root hash.
// A content-addressed trie's root is a function of its logical contents,
// never of the order those contents were inserted in.
func TestCanonicalHashingIndependentOfWriteOrderProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 16).Draw(rt, "n")
		keys := drawDistinctKeys(rt, n, 6)
		values := make([][]byte, n)
		for i := range values {
			values[i] = rapid.SliceOfN(rapid.Byte(), 0, 16).Draw(rt, "value")
		}

		orderA := make([]int, n)
		for i := range orderA {
			orderA[i] = i
		}
		priorities := make([]int, n)
		for i := range priorities {
			priorities[i] = rapid.IntRange(0, 1<<30).Draw(rt, "priority")
		}
		orderB := make([]int, n)
		copy(orderB, orderA)
		sort.SliceStable(orderB, func(i, j int) bool {
			return priorities[orderB[i]] < priorities[orderB[j]]
		})

		buildRoot := func(order []int) Hash {
			s := newMemStore()
			root := NewEmptyBranch()
			r, err := HashNode(root)
			if err != nil {
				rt.Fatal(err)
			}
			if err := s.PutNode(r, root); err != nil {
				rt.Fatal(err)
			}
			for _, i := range order {
				res, err := Write(s, r, keys[i], values[i])
				if err != nil {
					rt.Fatal(err)
				}
				r = res.NewRoot
			}
			return r
		}

		rootA := buildRoot(orderA)
		rootB := buildRoot(orderB)
		if rootA != rootB {
			rt.Fatalf("root hash depends on write order: order A = %x, order B = %x", rootA, rootB)
		}
	})
}

// Package trie implements the versioned, content-addressed radix trie that
// backs the execution engine's global state: a compact encoding of leaves,
// 256-way branch nodes, and path-compressing extensions, read and written
// over a pluggable key-value backend (see package store).
package trie

// PointerTag distinguishes whether a Pointer references a terminal Leaf or
// an interior Node, so readers can short-circuit on leaves without a
// second fetch.
type PointerTag uint8

const (
	// LeafPointer references a Leaf node.
	LeafPointer PointerTag = 0
	// NodePointer references a Node (branch) node.
	NodePointer PointerTag = 1
)

func (t PointerTag) String() string {
	switch t {
	case LeafPointer:
		return "Leaf"
	case NodePointer:
		return "Node"
	default:
		return "Unknown"
	}
}

// Pointer is a tagged 33-byte reference to another trie node: a tag byte
// plus the 32-byte NodeHash of the pointee.
type Pointer struct {
	Tag  PointerTag
	Hash Hash
}

// NewLeafPointer returns a Pointer tagged as referencing a Leaf.
func NewLeafPointer(h Hash) Pointer { return Pointer{Tag: LeafPointer, Hash: h} }

// NewNodePointer returns a Pointer tagged as referencing a Node.
func NewNodePointer(h Hash) Pointer { return Pointer{Tag: NodePointer, Hash: h} }

// IsLeaf reports whether the pointer references a Leaf.
func (p Pointer) IsLeaf() bool { return p.Tag == LeafPointer }

// PointerBlock is a fixed array of 256 optional Pointers, indexed by a
// single key byte. A nil slot is empty.
type PointerBlock [256]*Pointer

// Count returns the number of occupied slots.
func (pb *PointerBlock) Count() int {
	n := 0
	for _, p := range pb {
		if p != nil {
			n++
		}
	}
	return n
}

// Copy returns a deep copy of the pointer block. Writers must copy-on-write
// a block before mutating a slot, so unrelated readers of the parent
// version keep seeing the unmodified block.
func (pb *PointerBlock) Copy() *PointerBlock {
	var out PointerBlock
	for i, p := range pb {
		if p == nil {
			continue
		}
		cp := *p
		out[i] = &cp
	}
	return &out
}

// Node is the interface implemented by the three trie node variants:
// Leaf, Node (branch), and Extension.
type Node interface {
	nodeVariant()
}

// Leaf is a terminal node carrying the full key and the stored value, so
// that a lookup reaching it can verify the key exactly.
type Leaf struct {
	Key   []byte
	Value []byte
}

func (Leaf) nodeVariant() {}

// Branch is an interior node with a 256-wide pointer block indexed by the
// next key byte. The spec calls this variant "Node"; it is named Branch
// here to avoid colliding with the Node interface.
type Branch struct {
	Pointers PointerBlock
}

func (*Branch) nodeVariant() {}

// Extension path-compresses a run of single-child branches. Affix must be
// non-empty and Pointer must reference a Branch, never another Extension
// and never a Leaf.
type Extension struct {
	Affix   []byte
	Pointer Pointer
}

func (Extension) nodeVariant() {}

// NewEmptyBranch returns a Branch with no occupied slots — the node whose
// hash is the canonical empty-trie root.
func NewEmptyBranch() *Branch {
	return &Branch{}
}

// EmptyRootHash returns the hash of the canonical empty trie: the hash of
// an empty Branch node.
func EmptyRootHash() (Hash, error) {
	return HashNode(NewEmptyBranch())
}

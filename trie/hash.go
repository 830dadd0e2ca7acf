package trie

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashLength is the size in bytes of a NodeHash.
const HashLength = 32

// Hash is a Blake2b-256 digest identifying a trie node by its content.
// It doubles as the node's storage key.
type Hash [HashLength]byte

// Zero is the all-zero hash that IsZero compares against. Empty
// pointer-block slots are nil pointers, not Zero.
var Zero Hash

// BytesToHash copies b into a Hash, left-padding with zeros if b is
// shorter than HashLength and truncating from the left if longer.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the "0x"-prefixed hex representation of the hash.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == Zero }

// HashBytes computes the Blake2b-256 digest of data.
func HashBytes(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

// HashNode computes the canonical NodeHash of a trie node: the Blake2b-256
// digest of its canonical encoding. Two nodes with equal logical
// contents always produce equal hashes.
func HashNode(n Node) (Hash, error) {
	enc, err := Encode(n)
	if err != nil {
		return Hash{}, err
	}
	return HashBytes(enc), nil
}

package trie

import (
	"encoding/binary"
	"fmt"
)

// Discriminant bytes tagging the three node variants on the wire.
const (
	discriminantLeaf      = 0
	discriminantNode      = 1
	discriminantExtension = 2
)

// pointerEncodedLength is the wire size of a Pointer: 1 tag byte + 32-byte hash.
const pointerEncodedLength = 1 + HashLength

// CodecErrorKind classifies a decode failure.
type CodecErrorKind int

const (
	// Truncated means the input ended before a complete value could be read.
	Truncated CodecErrorKind = iota
	// LeftoverBytes means bytes remained after a decode that must be exact.
	LeftoverBytes
	// BadDiscriminant means a tag byte did not match any known variant.
	BadDiscriminant
)

func (k CodecErrorKind) String() string {
	switch k {
	case Truncated:
		return "Truncated"
	case LeftoverBytes:
		return "LeftoverBytes"
	case BadDiscriminant:
		return "BadDiscriminant"
	default:
		return "Unknown"
	}
}

// CodecError is returned by Decode and DecodeExact on malformed input.
type CodecError struct {
	Kind CodecErrorKind
	Msg  string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("trie: codec error (%s): %s", e.Kind, e.Msg)
}

func newCodecError(kind CodecErrorKind, msg string) *CodecError {
	return &CodecError{Kind: kind, Msg: msg}
}

// Encode serializes a trie node to its canonical wire representation.
// Two nodes with equal logical contents always produce byte-identical
// encodings.
func Encode(n Node) ([]byte, error) {
	switch v := n.(type) {
	case Leaf:
		return encodeLeaf(v), nil
	case *Branch:
		return encodeBranch(v), nil
	case Extension:
		return encodeExtension(v), nil
	default:
		return nil, fmt.Errorf("trie: unknown node type %T", n)
	}
}

func encodeLeaf(l Leaf) []byte {
	buf := make([]byte, 0, 1+4+len(l.Key)+4+len(l.Value))
	buf = append(buf, discriminantLeaf)
	buf = appendBytesField(buf, l.Key)
	buf = appendBytesField(buf, l.Value)
	return buf
}

func encodeBranch(b *Branch) []byte {
	count := b.Pointers.Count()
	buf := make([]byte, 0, 1+4+count*(1+pointerEncodedLength))
	buf = append(buf, discriminantNode)
	buf = appendUint32(buf, uint32(count))
	for i, p := range b.Pointers {
		if p == nil {
			continue
		}
		buf = append(buf, byte(i))
		buf = appendPointer(buf, *p)
	}
	return buf
}

func encodeExtension(e Extension) []byte {
	buf := make([]byte, 0, 1+4+len(e.Affix)+pointerEncodedLength)
	buf = append(buf, discriminantExtension)
	buf = appendUint32(buf, uint32(len(e.Affix)))
	buf = append(buf, e.Affix...)
	buf = appendPointer(buf, e.Pointer)
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBytesField(buf []byte, b []byte) []byte {
	buf = appendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func appendPointer(buf []byte, p Pointer) []byte {
	buf = append(buf, byte(p.Tag))
	return append(buf, p.Hash[:]...)
}

// Decode parses a single canonical node encoding from data, returning the
// node and the unconsumed remainder of data. It does not require the input
// to be fully consumed; callers that need an exact decode should use DecodeExact.
func Decode(data []byte) (Node, []byte, error) {
	if len(data) < 1 {
		return nil, nil, newCodecError(Truncated, "empty input, expected discriminant byte")
	}
	switch data[0] {
	case discriminantLeaf:
		return decodeLeaf(data[1:])
	case discriminantNode:
		return decodeBranch(data[1:])
	case discriminantExtension:
		return decodeExtension(data[1:])
	default:
		return nil, nil, newCodecError(BadDiscriminant, fmt.Sprintf("unknown tag byte %d", data[0]))
	}
}

// DecodeExact decodes a single node from data and fails with LeftoverBytes
// if any bytes remain afterward. Used by all top-level store reads.
func DecodeExact(data []byte) (Node, error) {
	n, rest, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, newCodecError(LeftoverBytes, fmt.Sprintf("%d bytes left over after decode", len(rest)))
	}
	return n, nil
}

func readUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, newCodecError(Truncated, "expected 4-byte length prefix")
	}
	return binary.BigEndian.Uint32(data[:4]), data[4:], nil
}

func readBytesField(data []byte) ([]byte, []byte, error) {
	n, rest, err := readUint32(data)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < uint64(n) {
		return nil, nil, newCodecError(Truncated, "byte string shorter than its declared length")
	}
	return rest[:n], rest[n:], nil
}

func readPointer(data []byte) (Pointer, []byte, error) {
	if len(data) < pointerEncodedLength {
		return Pointer{}, nil, newCodecError(Truncated, "truncated pointer")
	}
	tag := PointerTag(data[0])
	if tag != LeafPointer && tag != NodePointer {
		return Pointer{}, nil, newCodecError(BadDiscriminant, fmt.Sprintf("unknown pointer tag %d", tag))
	}
	h := BytesToHash(data[1:pointerEncodedLength])
	return Pointer{Tag: tag, Hash: h}, data[pointerEncodedLength:], nil
}

func decodeLeaf(data []byte) (Node, []byte, error) {
	key, rest, err := readBytesField(data)
	if err != nil {
		return nil, nil, err
	}
	value, rest, err := readBytesField(rest)
	if err != nil {
		return nil, nil, err
	}
	return Leaf{Key: key, Value: value}, rest, nil
}

func decodeBranch(data []byte) (Node, []byte, error) {
	count, rest, err := readUint32(data)
	if err != nil {
		return nil, nil, err
	}
	b := &Branch{}
	for i := uint32(0); i < count; i++ {
		if len(rest) < 1 {
			return nil, nil, newCodecError(Truncated, "truncated pointer-block entry index")
		}
		idx := rest[0]
		rest = rest[1:]
		p, r2, err := readPointer(rest)
		if err != nil {
			return nil, nil, err
		}
		rest = r2
		ptr := p
		b.Pointers[idx] = &ptr
	}
	return b, rest, nil
}

func decodeExtension(data []byte) (Node, []byte, error) {
	affix, rest, err := readBytesField(data)
	if err != nil {
		return nil, nil, err
	}
	p, rest, err := readPointer(rest)
	if err != nil {
		return nil, nil, err
	}
	return Extension{Affix: affix, Pointer: p}, rest, nil
}

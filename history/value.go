// Package history implements the versioned commit layer above package
// trie: a TrackingCopy read-through cache for speculative execution, and
// a History that applies batches of typed Transforms to produce a new
// root atomically.
package history

import (
	"encoding/binary"
	"sort"
)

// ValueKind tags the variant a StoredValue holds.
type ValueKind uint8

const (
	KindBytes ValueKind = iota
	KindInt32
	KindUInt64
	KindUInt512
	KindNamedKeys
)

func (k ValueKind) String() string {
	switch k {
	case KindBytes:
		return "Bytes"
	case KindInt32:
		return "Int32"
	case KindUInt64:
		return "UInt64"
	case KindUInt512:
		return "UInt512"
	case KindNamedKeys:
		return "NamedKeys"
	default:
		return "Unknown"
	}
}

// Key is a raw trie key, the same byte string Read/Write/Scan operate on.
type Key []byte

// StoredValue is the typed envelope every leaf's value bytes decode to.
// Exactly one field is meaningful, selected by Kind; the others are the
// zero value.
type StoredValue struct {
	Kind ValueKind

	Bytes     []byte
	Int32     int32
	UInt64    uint64
	UInt512   U512
	NamedKeys map[string]Key
}

// NewBytesValue wraps opaque, untyped bytes.
func NewBytesValue(b []byte) StoredValue { return StoredValue{Kind: KindBytes, Bytes: b} }

// NewInt32Value wraps a signed 32-bit integer.
func NewInt32Value(v int32) StoredValue { return StoredValue{Kind: KindInt32, Int32: v} }

// NewUInt64Value wraps an unsigned 64-bit integer.
func NewUInt64Value(v uint64) StoredValue { return StoredValue{Kind: KindUInt64, UInt64: v} }

// NewUInt512Value wraps a U512.
func NewUInt512Value(v U512) StoredValue { return StoredValue{Kind: KindUInt512, UInt512: v} }

// NewNamedKeysValue wraps a name-to-key map.
func NewNamedKeysValue(m map[string]Key) StoredValue {
	return StoredValue{Kind: KindNamedKeys, NamedKeys: m}
}

// EncodeStoredValue produces the canonical byte encoding stored as a
// Leaf's Value: a one-byte kind tag followed by the variant's payload,
// using the same big-endian, length-prefixed conventions as the node
// codec in package trie.
func EncodeStoredValue(v StoredValue) []byte {
	switch v.Kind {
	case KindBytes:
		out := make([]byte, 1, 1+len(v.Bytes))
		out[0] = byte(KindBytes)
		return append(out, v.Bytes...)
	case KindInt32:
		out := make([]byte, 5)
		out[0] = byte(KindInt32)
		binary.BigEndian.PutUint32(out[1:], uint32(v.Int32))
		return out
	case KindUInt64:
		out := make([]byte, 9)
		out[0] = byte(KindUInt64)
		binary.BigEndian.PutUint64(out[1:], v.UInt64)
		return out
	case KindUInt512:
		out := make([]byte, 1, 1+64)
		out[0] = byte(KindUInt512)
		return append(out, v.UInt512.Bytes()...)
	case KindNamedKeys:
		out := []byte{byte(KindNamedKeys)}
		count := make([]byte, 4)
		binary.BigEndian.PutUint32(count, uint32(len(v.NamedKeys)))
		out = append(out, count...)
		names := make([]string, 0, len(v.NamedKeys))
		for name := range v.NamedKeys {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			nameLen := make([]byte, 4)
			binary.BigEndian.PutUint32(nameLen, uint32(len(name)))
			out = append(out, nameLen...)
			out = append(out, name...)

			k := v.NamedKeys[name]
			keyLen := make([]byte, 4)
			binary.BigEndian.PutUint32(keyLen, uint32(len(k)))
			out = append(out, keyLen...)
			out = append(out, k...)
		}
		return out
	default:
		panic("history: unknown StoredValue kind")
	}
}

// ErrValueCodec is returned by DecodeStoredValue when data is truncated
// or carries an unrecognized kind tag.
type ErrValueCodec struct{ Msg string }

func (e *ErrValueCodec) Error() string { return "history: value codec: " + e.Msg }

// DecodeStoredValue parses the canonical encoding produced by
// EncodeStoredValue.
func DecodeStoredValue(data []byte) (StoredValue, error) {
	if len(data) < 1 {
		return StoredValue{}, &ErrValueCodec{Msg: "truncated: missing kind tag"}
	}
	kind := ValueKind(data[0])
	rest := data[1:]
	switch kind {
	case KindBytes:
		b := make([]byte, len(rest))
		copy(b, rest)
		return NewBytesValue(b), nil
	case KindInt32:
		if len(rest) != 4 {
			return StoredValue{}, &ErrValueCodec{Msg: "truncated Int32"}
		}
		return NewInt32Value(int32(binary.BigEndian.Uint32(rest))), nil
	case KindUInt64:
		if len(rest) != 8 {
			return StoredValue{}, &ErrValueCodec{Msg: "truncated UInt64"}
		}
		return NewUInt64Value(binary.BigEndian.Uint64(rest)), nil
	case KindUInt512:
		if len(rest) != 64 {
			return StoredValue{}, &ErrValueCodec{Msg: "truncated UInt512"}
		}
		u, ok := U512FromBigEndian(rest)
		if !ok {
			return StoredValue{}, &ErrValueCodec{Msg: "UInt512 overflows 512 bits"}
		}
		return NewUInt512Value(u), nil
	case KindNamedKeys:
		if len(rest) < 4 {
			return StoredValue{}, &ErrValueCodec{Msg: "truncated NamedKeys count"}
		}
		count := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		m := make(map[string]Key, count)
		for i := uint32(0); i < count; i++ {
			if len(rest) < 4 {
				return StoredValue{}, &ErrValueCodec{Msg: "truncated NamedKeys entry name length"}
			}
			nameLen := binary.BigEndian.Uint32(rest[:4])
			rest = rest[4:]
			if uint32(len(rest)) < nameLen {
				return StoredValue{}, &ErrValueCodec{Msg: "truncated NamedKeys entry name"}
			}
			name := string(rest[:nameLen])
			rest = rest[nameLen:]

			if len(rest) < 4 {
				return StoredValue{}, &ErrValueCodec{Msg: "truncated NamedKeys entry key length"}
			}
			keyLen := binary.BigEndian.Uint32(rest[:4])
			rest = rest[4:]
			if uint32(len(rest)) < keyLen {
				return StoredValue{}, &ErrValueCodec{Msg: "truncated NamedKeys entry key"}
			}
			k := make(Key, keyLen)
			copy(k, rest[:keyLen])
			rest = rest[keyLen:]
			m[name] = k
		}
		if len(rest) != 0 {
			return StoredValue{}, &ErrValueCodec{Msg: "leftover bytes after NamedKeys"}
		}
		return NewNamedKeysValue(m), nil
	default:
		return StoredValue{}, &ErrValueCodec{Msg: "unrecognized kind tag"}
	}
}


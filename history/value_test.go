package history

import (
	"bytes"
	"testing"
)

func TestStoredValueRoundTrip(t *testing.T) {
	cases := []StoredValue{
		NewBytesValue([]byte("hello")),
		NewBytesValue(nil),
		NewInt32Value(-42),
		NewInt32Value(0),
		NewUInt64Value(18446744073709551615),
		NewUInt512Value(U512FromUint64(7)),
		NewNamedKeysValue(map[string]Key{
			"contract": []byte{1, 2, 3},
			"purse":    []byte{4, 5},
		}),
		NewNamedKeysValue(map[string]Key{}),
	}

	for i, v := range cases {
		enc := EncodeStoredValue(v)
		got, err := DecodeStoredValue(enc)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if got.Kind != v.Kind {
			t.Fatalf("case %d: kind mismatch %v != %v", i, got.Kind, v.Kind)
		}
		switch v.Kind {
		case KindBytes:
			if !bytes.Equal(got.Bytes, v.Bytes) {
				t.Fatalf("case %d: bytes mismatch", i)
			}
		case KindInt32:
			if got.Int32 != v.Int32 {
				t.Fatalf("case %d: int32 mismatch", i)
			}
		case KindUInt64:
			if got.UInt64 != v.UInt64 {
				t.Fatalf("case %d: uint64 mismatch", i)
			}
		case KindUInt512:
			if got.UInt512.Cmp(v.UInt512) != 0 {
				t.Fatalf("case %d: uint512 mismatch", i)
			}
		case KindNamedKeys:
			if len(got.NamedKeys) != len(v.NamedKeys) {
				t.Fatalf("case %d: named keys length mismatch", i)
			}
			for name, k := range v.NamedKeys {
				if !bytes.Equal(got.NamedKeys[name], k) {
					t.Fatalf("case %d: named key %q mismatch", i, name)
				}
			}
		}
	}
}

func TestDecodeStoredValueTruncated(t *testing.T) {
	if _, err := DecodeStoredValue(nil); err == nil {
		t.Fatal("expected error decoding empty data")
	}
	if _, err := DecodeStoredValue([]byte{byte(KindUInt64), 1, 2}); err == nil {
		t.Fatal("expected error decoding truncated UInt64")
	}
}

func TestU512AddOverflow(t *testing.T) {
	max := mustMaxU512(t)
	one := U512FromUint64(1)
	if _, ok := max.Add(one); ok {
		t.Fatal("expected overflow adding 1 to the maximum U512")
	}

	sum, ok := U512FromUint64(2).Add(U512FromUint64(3))
	if !ok || sum.Cmp(U512FromUint64(5)) != 0 {
		t.Fatalf("expected 5, got %v ok=%v", sum, ok)
	}
}

func mustMaxU512(t *testing.T) U512 {
	t.Helper()
	raw := make([]byte, 64)
	for i := range raw {
		raw[i] = 0xff
	}
	u, ok := U512FromBigEndian(raw)
	if !ok {
		t.Fatal("expected max U512 to be representable")
	}
	return u
}

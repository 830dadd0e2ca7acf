package trie

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

func TestCodecRoundTripKnownShapes(t *testing.T) {
	h1 := HashBytes([]byte("a"))
	h2 := HashBytes([]byte("b"))

	cases := []Node{
		Leaf{Key: []byte{1, 2, 3}, Value: []byte("value0")},
		Leaf{Key: []byte{}, Value: []byte{}},
		NewEmptyBranch(),
		func() Node {
			b := &Branch{}
			b.Pointers[0] = &Pointer{Tag: LeafPointer, Hash: h1}
			b.Pointers[255] = &Pointer{Tag: NodePointer, Hash: h2}
			return b
		}(),
		Extension{Affix: []byte{0x00}, Pointer: Pointer{Tag: NodePointer, Hash: h1}},
		Extension{Affix: []byte{0x00, 0x00, 0x00, 0x00, 0x00}, Pointer: Pointer{Tag: NodePointer, Hash: h2}},
	}

	for i, n := range cases {
		enc, err := Encode(n)
		if err != nil {
			t.Fatalf("case %d: Encode: %v", i, err)
		}
		got, err := DecodeExact(enc)
		if err != nil {
			t.Fatalf("case %d: DecodeExact: %v", i, err)
		}
		enc2, err := Encode(got)
		if err != nil {
			t.Fatalf("case %d: re-Encode: %v", i, err)
		}
		if !bytes.Equal(enc, enc2) {
			t.Fatalf("case %d: round trip changed encoding: %x != %x", i, enc, enc2)
		}
	}
}

func TestDecodeExactRejectsLeftoverBytes(t *testing.T) {
	enc, _ := Encode(Leaf{Key: []byte("k"), Value: []byte("v")})
	enc = append(enc, 0xff)
	_, err := DecodeExact(enc)
	var cerr *CodecError
	if err == nil {
		t.Fatal("expected LeftoverBytes error")
	}
	if !errorsAs(err, &cerr) || cerr.Kind != LeftoverBytes {
		t.Fatalf("expected LeftoverBytes, got %v", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	enc, _ := Encode(Leaf{Key: []byte("k"), Value: []byte("v")})
	_, _, err := Decode(enc[:len(enc)-1])
	var cerr *CodecError
	if !errorsAs(err, &cerr) || cerr.Kind != Truncated {
		t.Fatalf("expected Truncated, got %v", err)
	}
}

func TestDecodeBadDiscriminant(t *testing.T) {
	_, _, err := Decode([]byte{0x7f})
	var cerr *CodecError
	if !errorsAs(err, &cerr) || cerr.Kind != BadDiscriminant {
		t.Fatalf("expected BadDiscriminant, got %v", err)
	}
}

func errorsAs(err error, target **CodecError) bool {
	if ce, ok := err.(*CodecError); ok {
		*target = ce
		return true
	}
	return false
}

// TestCodecRoundTripProperty uses rapid to generate arbitrary leaves and
// branches and asserts decode(encode(n)) == n.
func TestCodecRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		kind := rapid.IntRange(0, 2).Draw(rt, "kind")
		var n Node
		switch kind {
		case 0:
			n = Leaf{
				Key:   rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(rt, "key"),
				Value: rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(rt, "value"),
			}
		case 1:
			b := &Branch{}
			slots := rapid.SliceOfDistinct(rapid.IntRange(0, 255), func(i int) int { return i }).Draw(rt, "slots")
			for _, s := range slots {
				tag := PointerTag(rapid.IntRange(0, 1).Draw(rt, "tag"))
				var hb [HashLength]byte
				copy(hb[:], rapid.SliceOfN(rapid.Byte(), HashLength, HashLength).Draw(rt, "hash"))
				b.Pointers[s] = &Pointer{Tag: tag, Hash: Hash(hb)}
			}
			n = b
		default:
			affixLen := rapid.IntRange(1, 8).Draw(rt, "affixLen")
			var hb [HashLength]byte
			copy(hb[:], rapid.SliceOfN(rapid.Byte(), HashLength, HashLength).Draw(rt, "hash"))
			n = Extension{
				Affix:   rapid.SliceOfN(rapid.Byte(), affixLen, affixLen).Draw(rt, "affix"),
				Pointer: Pointer{Tag: NodePointer, Hash: Hash(hb)},
			}
		}

		enc, err := Encode(n)
		if err != nil {
			rt.Fatalf("Encode: %v", err)
		}
		got, err := DecodeExact(enc)
		if err != nil {
			rt.Fatalf("DecodeExact: %v", err)
		}
		enc2, err := Encode(got)
		if err != nil {
			rt.Fatalf("re-Encode: %v", err)
		}
		if !bytes.Equal(enc, enc2) {
			rt.Fatalf("round trip mismatch: %x != %x", enc, enc2)
		}
	})
}

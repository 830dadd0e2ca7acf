package history

import "math/big"

// u512Bits is the bit width a U512 may never exceed. No third-party
// library in the available dependency set models a fixed 512-bit integer
// (holiman/uint256 only covers 256 bits), so U512 is built directly on
// math/big with an explicit bit-length check after every arithmetic
// operation — the overflow behavior is the part of the type that matters,
// and big.Int already gives correct unbounded arithmetic to check it
// against.
const u512Bits = 512

// U512 is an immutable 512-bit unsigned integer held in a math/big.Int;
// its canonical encoding, produced by Bytes, is a 64-byte big-endian
// string. The zero value is a valid representation of zero.
type U512 struct {
	v *big.Int
}

// ZeroU512 returns the value 0.
func ZeroU512() U512 { return U512{v: new(big.Int)} }

// U512FromUint64 widens a uint64 to U512.
func U512FromUint64(x uint64) U512 {
	return U512{v: new(big.Int).SetUint64(x)}
}

// U512FromBigEndian interprets b as a big-endian unsigned integer. It
// returns false if b represents a value that does not fit in 512 bits.
func U512FromBigEndian(b []byte) (U512, bool) {
	v := new(big.Int).SetBytes(b)
	if v.BitLen() > u512Bits {
		return U512{}, false
	}
	return U512{v: v}, true
}

func (u U512) bigOrZero() *big.Int {
	if u.v == nil {
		return new(big.Int)
	}
	return u.v
}

// Bytes returns the big-endian encoding of u, left-padded to 64 bytes.
func (u U512) Bytes() []byte {
	raw := u.bigOrZero().Bytes()
	out := make([]byte, u512Bits/8)
	copy(out[len(out)-len(raw):], raw)
	return out
}

// Add returns u+w and reports whether the result overflows 512 bits. An
// overflowing Add leaves the returned U512 unspecified; callers must
// check ok before using it.
func (u U512) Add(w U512) (sum U512, ok bool) {
	r := new(big.Int).Add(u.bigOrZero(), w.bigOrZero())
	if r.BitLen() > u512Bits {
		return U512{}, false
	}
	return U512{v: r}, true
}

// Cmp compares u and w as unsigned integers.
func (u U512) Cmp(w U512) int {
	return u.bigOrZero().Cmp(w.bigOrZero())
}

// String renders u in decimal, for logging and test failure messages.
func (u U512) String() string {
	return u.bigOrZero().String()
}

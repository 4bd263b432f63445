package bits

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// parityFold is a reference implementation: XOR-fold all 64 bits down to
// one. Used to cross-check the popcount-based Parity64.
func parityFold(x uint64) uint64 {
	x ^= x >> 32
	x ^= x >> 16
	x ^= x >> 8
	x ^= x >> 4
	x ^= x >> 2
	x ^= x >> 1
	return x & 1
}

// TestParity64PinnedValues pins Parity64 to known outputs. Every built
// table's query path depends on this primitive, so an accidental change
// here would silently remap all indices.
func TestParity64PinnedValues(t *testing.T) {
	cases := []struct {
		x    uint64
		want uint64
	}{
		{0x0000000000000000, 0},
		{0x0000000000000001, 1},
		{0x0000000000000003, 0},
		{0x8000000000000000, 1},
		{0x8000000000000001, 0},
		{0xFFFFFFFFFFFFFFFF, 0},
		{0x7FFFFFFFFFFFFFFF, 1},
		{0xDEADBEEFCAFEBABE, 0},
		{0x0123456789ABCDEF, 0},
		{0x0123456789ABCDEE, 1},
	}
	for _, tc := range cases {
		if got := Parity64(tc.x); got != tc.want {
			t.Errorf("Parity64(%#016x) = %d, want %d", tc.x, got, tc.want)
		}
	}
}

// TestParity64MatchesFold cross-checks Parity64 against the XOR-fold
// reference over random inputs.
func TestParity64MatchesFold(t *testing.T) {
	rng := newTestRNG(t)
	for i := 0; i < 100000; i++ {
		x := rng.Uint64()
		if got, want := Parity64(x), parityFold(x); got != want {
			t.Fatalf("Parity64(%#016x) = %d, want %d", x, got, want)
		}
	}
}

// TestParity64Linearity verifies parity is linear over GF(2):
// parity(a^b) == parity(a) ^ parity(b). The whole matrix construction
// rests on this property.
func TestParity64Linearity(t *testing.T) {
	rng := newTestRNG(t)
	for i := 0; i < 100000; i++ {
		a, b := rng.Uint64(), rng.Uint64()
		if Parity64(a^b) != Parity64(a)^Parity64(b) {
			t.Fatalf("linearity violated for a=%#016x b=%#016x", a, b)
		}
	}
}

// TestParity64SingleBits: any single-bit value has odd parity.
func TestParity64SingleBits(t *testing.T) {
	for b := 0; b < 64; b++ {
		if got := Parity64(1 << b); got != 1 {
			t.Errorf("Parity64(1<<%d) = %d, want 1", b, got)
		}
	}
}

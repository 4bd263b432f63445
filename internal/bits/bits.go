// Package bits provides low-level bit manipulation primitives.
package bits

import "math/bits"

// Parity64 returns the population count of x modulo 2: 1 if an odd number
// of bits are set, 0 if even. Compiles to a hardware POPCNT on amd64 and
// CNT on arm64, so it is branch-free and costs a handful of cycles. It is
// the innermost operation of every query (once per matrix row), so its
// cost dominates lookup latency.
func Parity64(x uint64) uint64 {
	return uint64(bits.OnesCount64(x)) & 1
}

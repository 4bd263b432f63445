// Package partition splits a static uint64 key set into at most four
// buckets of at most 64 keys each, using one or two single-bit tests.
//
// The routing scheme is deliberately tiny: a key's bucket index is formed
// by testing the key against up to two bit masks, one output bit per
// positive test. An all-zero scheme routes everything to bucket 0. The
// partitioner's only job is feasibility (no bucket over 64 keys); it never
// optimizes for balance beyond that, because the downstream row-mask
// search only cares about the 64-key ceiling.
package partition

import (
	"fmt"
	"math/bits"

	staterrors "github.com/avestra/staticmph/errors"
)

const (
	// MaxBucketKeys is the hard per-bucket capacity. A bucket's keys are
	// compressed to 6-bit codes, so more than 64 keys can never fit.
	MaxBucketKeys = 64

	// targetBucketKeys is the per-bucket load used when estimating how
	// many buckets a key set needs. Two keys of headroom below the hard
	// capacity keep the downstream row-mask search out of its worst case.
	targetBucketKeys = 62

	// MaxKeys is the hard input ceiling: four buckets of 64 keys.
	MaxKeys = 4 * MaxBucketKeys

	// MaxBuckets is the largest bucket count a two-bit scheme can encode.
	MaxBuckets = 4
)

// Scheme routes keys to buckets via up to two single-bit tests, each
// represented as a mask. A zero mask means the test is absent; the
// all-zero scheme routes every key to bucket 0. Masks[0] contributes bit 0
// of the bucket index, Masks[1] bit 1, so a one-test scheme always stores
// its mask in Masks[0].
type Scheme struct {
	Masks [2]uint64
}

// NumBuckets returns how many buckets the scheme routes to: 1, 2, or 4.
func (s Scheme) NumBuckets() int {
	n := 1
	if s.Masks[0] != 0 {
		n <<= 1
	}
	if s.Masks[1] != 0 {
		n <<= 1
	}
	return n
}

// BucketIndex returns the bucket for key, in [0, NumBuckets()).
func (s Scheme) BucketIndex(key uint64) int {
	idx := 0
	if key&s.Masks[0] != 0 {
		idx |= 1
	}
	if key&s.Masks[1] != 0 {
		idx |= 2
	}
	return idx
}

// Partition selects a routing scheme for keys and groups keys by bucket.
//
// keys is reordered in place so that each bucket occupies one contiguous
// run: bucket b is keys[offsets[b]:offsets[b+1]] for b < NumBuckets().
// Unused trailing offsets equal len(keys).
//
// The required bucket count is the smallest power of two B in {1, 2, 4}
// with B*62 >= len(keys); only schemes of exactly that size are searched.
// Candidate bits are tried most-balanced first (ties by bit index), and
// the first scheme keeping every bucket within 64 keys wins. If no
// candidate of the required size works, ErrPartitionFailed is returned.
// Key sets above 256 fail up front with ErrTooManyKeys.
func Partition(keys []uint64) (Scheme, [MaxBuckets + 1]int, error) {
	var offsets [MaxBuckets + 1]int
	n := len(keys)
	if n > MaxKeys {
		return Scheme{}, offsets, fmt.Errorf("%w: %d keys", staterrors.ErrTooManyKeys, n)
	}

	// Base case: everything fits in one bucket, no tests needed.
	if n <= targetBucketKeys {
		for b := 1; b <= MaxBuckets; b++ {
			offsets[b] = n
		}
		return Scheme{}, offsets, nil
	}

	order, ones := rankBits(keys)

	var scheme Scheme
	if n <= 2*targetBucketKeys {
		// Two buckets: a single bit test must leave both sides <= 64.
		found := false
		for _, b := range order {
			c1 := ones[b]
			if c1 <= MaxBucketKeys && n-c1 <= MaxBucketKeys {
				scheme.Masks[0] = 1 << b
				found = true
				break
			}
		}
		if !found {
			return Scheme{}, offsets, fmt.Errorf("%w: %d keys, 2 buckets", staterrors.ErrPartitionFailed, n)
		}
	} else {
		// Four buckets: the first feasible pair of bit tests wins.
		found := false
	pairs:
		for i := 0; i < len(order)-1; i++ {
			for j := i + 1; j < len(order); j++ {
				m0 := uint64(1) << order[i]
				m1 := uint64(1) << order[j]
				if feasiblePair(keys, m0, m1) {
					scheme.Masks[0] = m0
					scheme.Masks[1] = m1
					found = true
					break pairs
				}
			}
		}
		if !found {
			return Scheme{}, offsets, fmt.Errorf("%w: %d keys, 4 buckets", staterrors.ErrPartitionFailed, n)
		}
	}

	groupByBucket(keys, scheme, &offsets)
	return scheme, offsets, nil
}

// rankBits returns the 64 bit positions ordered by how evenly each bit
// splits keys (most balanced first, ties by position), along with the
// per-bit set counts. Balanced bits are tried first because they are the
// ones most likely to keep both sides under the bucket capacity.
func rankBits(keys []uint64) ([64]uint, [64]int) {
	var ones [64]int
	for _, key := range keys {
		for key != 0 {
			b := bits.TrailingZeros64(key)
			ones[b]++
			key &= key - 1
		}
	}

	n := len(keys)
	var order [64]uint
	for i := range order {
		order[i] = uint(i)
	}
	// Insertion sort by |2*ones - n|; 64 elements, stable by construction.
	skew := func(b uint) int {
		d := 2*ones[b] - n
		if d < 0 {
			return -d
		}
		return d
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && skew(order[j]) < skew(order[j-1]); j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	return order, ones
}

// feasiblePair reports whether routing by the two masks keeps all four
// induced buckets within MaxBucketKeys.
func feasiblePair(keys []uint64, m0, m1 uint64) bool {
	var sizes [4]int
	for _, key := range keys {
		idx := 0
		if key&m0 != 0 {
			idx |= 1
		}
		if key&m1 != 0 {
			idx |= 2
		}
		sizes[idx]++
		if sizes[idx] > MaxBucketKeys {
			return false
		}
	}
	return true
}

// groupByBucket reorders keys in place so each bucket is contiguous and
// fills offsets with the bucket boundaries (counting sort over 4 buckets).
func groupByBucket(keys []uint64, s Scheme, offsets *[MaxBuckets + 1]int) {
	var sizes [MaxBuckets]int
	for _, key := range keys {
		sizes[s.BucketIndex(key)]++
	}
	offsets[0] = 0
	for b := 0; b < MaxBuckets; b++ {
		offsets[b+1] = offsets[b] + sizes[b]
	}

	var tmp [MaxKeys]uint64
	copy(tmp[:], keys)
	var cursors [MaxBuckets]int
	for b := range cursors {
		cursors[b] = offsets[b]
	}
	for _, key := range tmp[:len(keys)] {
		b := s.BucketIndex(key)
		keys[cursors[b]] = key
		cursors[b]++
	}
}

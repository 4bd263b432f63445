package staticmph

import (
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	staterrors "github.com/avestra/staticmph/errors"
	"github.com/avestra/staticmph/internal/linmap"
	"github.com/avestra/staticmph/internal/partition"
)

// MaxKeys is the hard ceiling on the size of a key set. Build fails
// cleanly beyond it; below roughly 200 well-distributed keys it succeeds
// with high probability, degrading sharply past ~248.
const MaxKeys = partition.MaxKeys

// Table is a perfect hash over a small static set of 64-bit keys.
//
// Build consumes the key set once and discovers a routing scheme (up to
// two discriminating bit tests) plus one six-row parity matrix per bucket.
// Query then maps any uint64 to a slot below Len() in a handful of
// branch-free parity operations; members of the built key set are
// guaranteed pairwise-distinct slots.
//
// A Table is not safe for concurrent Builds; callers must serialize them.
// After a successful Build the table is immutable and Query may be called
// from any number of goroutines with no locking. Query performs no
// validity checking: calling it before a successful Build is a programming
// error with unspecified (but memory-safe) results.
type Table struct {
	cfg   config
	masks [2]uint64
	rows  [partition.MaxBuckets]linmap.Matrix
	size  uint32
	built bool
}

// New returns an empty Table. Options configure subsequent Builds.
func New(opts ...Option) *Table {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Table{cfg: cfg}
}

// Build constructs the perfect hash for keys and returns the lookup table
// size: 64, 128, or 256 depending on how many buckets the key set needed.
// Indices returned by Query are always below that size.
//
// keys is not modified; Build works on an internal copy. Duplicate keys
// are rejected with ErrDuplicateKey. Every returned error wraps
// ErrBuildFailed, with ErrTooManyKeys, ErrPartitionFailed,
// ErrMatrixSearchFailed, or ErrDuplicateKey underneath identifying the
// stage; all failures are ordinary recoverable values, and a caller may
// retry with another seed or a smaller key set.
//
// A successful Build fully replaces any previously built state; prior
// indices are no longer meaningful. On failure the table is left in the
// failed state (Len reports 0) until a later Build succeeds.
func (t *Table) Build(keys []uint64) (int, error) {
	t.built = false
	t.size = 0

	if len(keys) > MaxKeys {
		return 0, fmt.Errorf("%w: %w", staterrors.ErrBuildFailed,
			fmt.Errorf("%w: %d keys", staterrors.ErrTooManyKeys, len(keys)))
	}

	var scratch [MaxKeys]uint64
	buf := scratch[:len(keys)]
	copy(buf, keys)

	scheme, offsets, err := partition.Partition(buf)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", staterrors.ErrBuildFailed, err)
	}

	seed := t.cfg.seed
	if !t.cfg.seeded {
		seed = rand.Uint64()
	}

	numBuckets := scheme.NumBuckets()
	var rows [partition.MaxBuckets]linmap.Matrix
	if t.cfg.parallel && numBuckets > 1 {
		err = solveBucketsParallel(buf, offsets, numBuckets, seed, t.cfg, &rows)
	} else {
		err = solveBuckets(buf, offsets, numBuckets, seed, t.cfg, &rows)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", staterrors.ErrBuildFailed, err)
	}

	t.masks = scheme.Masks
	t.rows = rows
	t.size = uint32(numBuckets) * 64
	t.built = true
	return int(t.size), nil
}

// solveBuckets runs the row-mask search for each bucket sequentially.
// Each bucket gets its own solver seeded from (seed, bucket) so results
// match the parallel path exactly.
func solveBuckets(buf []uint64, offsets [partition.MaxBuckets + 1]int,
	numBuckets int, seed uint64, cfg config, rows *[partition.MaxBuckets]linmap.Matrix) error {
	for b := 0; b < numBuckets; b++ {
		solver := linmap.NewSolver(bucketSeed(seed, b), cfg.attempts, cfg.rowCandidates)
		m, err := solver.Solve(buf[offsets[b]:offsets[b+1]])
		if err != nil {
			return err
		}
		rows[b] = m
	}
	return nil
}

// solveBucketsParallel fans the per-bucket searches out across an
// errgroup, one goroutine per bucket. Bucket key runs are disjoint slices
// of buf, so the workers never touch the same memory.
func solveBucketsParallel(buf []uint64, offsets [partition.MaxBuckets + 1]int,
	numBuckets int, seed uint64, cfg config, rows *[partition.MaxBuckets]linmap.Matrix) error {
	var g errgroup.Group
	for b := 0; b < numBuckets; b++ {
		g.Go(func() error {
			solver := linmap.NewSolver(bucketSeed(seed, b), cfg.attempts, cfg.rowCandidates)
			m, err := solver.Solve(buf[offsets[b]:offsets[b+1]])
			if err != nil {
				return err
			}
			rows[b] = m
			return nil
		})
	}
	return g.Wait()
}

// bucketSeed derives a per-bucket solver seed from the build seed using a
// SplitMix64 step, so buckets explore independent trajectories.
func bucketSeed(seed uint64, bucket int) uint64 {
	z := seed + uint64(bucket+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Query returns the table index for key: the bucket index from the two
// bit tests in the high bits, the bucket matrix's 6-bit code in the low
// bits. It is defined over all uint64 inputs and is a hash, not a
// membership test: keys outside the built set still land on some slot and
// may collide with a member. Callers needing membership must compare the
// stored key at the slot. Never allocates, never blocks.
func (t *Table) Query(key uint64) uint32 {
	var si uint32
	if key&t.masks[0] != 0 {
		si = 1
	}
	if key&t.masks[1] != 0 {
		si |= 2
	}
	return si<<6 | t.rows[si].Code(key)
}

// Len returns the lookup table size of the last successful Build (64, 128,
// or 256), or 0 if the table has never been built or the last Build
// failed.
func (t *Table) Len() int {
	return int(t.size)
}

// Built reports whether the table currently holds a successfully built
// structure.
func (t *Table) Built() bool {
	return t.built
}

// Package linmap searches for linear key-to-code maps over GF(2).
//
// A bucket of up to 64 keys is compressed to 6-bit codes by six 64-bit row
// masks: code(key) has bit i set when parity(row[i] & key) is odd. Each
// row is a linear functional over GF(2)^64 and the six rows jointly form a
// linear map into GF(2)^6. The solver's job is to find rows whose map is
// injective over one bucket's keys, which holds exactly when no pair of
// distinct keys has its XOR in the kernel of all six rows.
//
// The search is greedy and incremental: keys start as one colliding group,
// and each committed row splits every group by parity, separating groups
// that shrink to a single key for good (their code prefix is already
// unique). Candidate rows are not drawn blindly: for each candidate the
// solver picks balanced random parity targets within every group and
// solves the resulting linear system by Gaussian elimination, so the mask
// realizes the targets exactly wherever the keys are linearly independent.
// Keys that are GF(2) combinations of earlier keys get forced parities;
// the candidate score (colliding pairs left) absorbs the imbalance, and
// failed trajectories are retried with fresh targets up to a hard attempt
// cap.
package linmap

import (
	"fmt"
	"math/bits"
	"math/rand/v2"

	staterrors "github.com/avestra/staticmph/errors"
	intbits "github.com/avestra/staticmph/internal/bits"
)

const (
	// Rows is the number of row masks per matrix; fixed by the 6-bit code
	// width and the 64-slot bucket capacity.
	Rows = 6

	// MaxBucketKeys is the most keys one matrix can separate: 2^Rows.
	MaxBucketKeys = 1 << Rows

	// DefaultAttempts bounds how many full search trajectories are tried
	// before a bucket is declared unsolvable. Hard cap, never unbounded.
	DefaultAttempts = 64

	// DefaultRowCandidates is how many solved masks are scored per row
	// within one trajectory. Linearly independent buckets accept the
	// first candidate; the rest of the budget exists for rank-deficient
	// key sets whose forced parities skew the splits.
	DefaultRowCandidates = 32
)

// Matrix holds the six row masks of one bucket's key-to-code map.
type Matrix [Rows]uint64

// Code maps key to its 6-bit code, always in [0, 64). Branch-free: six
// parities and a shift per row.
func (m *Matrix) Code(key uint64) uint32 {
	var code uint32
	for i, row := range m {
		code |= uint32(intbits.Parity64(row&key)) << i
	}
	return code
}

// injectiveOver reports whether all keys receive distinct codes, using a
// 64-bit occupancy mask.
func (m *Matrix) injectiveOver(keys []uint64) bool {
	var occupied uint64
	for _, key := range keys {
		slot := uint64(1) << m.Code(key)
		if occupied&slot != 0 {
			return false
		}
		occupied |= slot
	}
	return true
}

// Solver runs the bounded randomized row search. It is not safe for
// concurrent use; parallel builds create one Solver per bucket. Buffers
// are retained across Solve calls so solving allocates nothing.
type Solver struct {
	rng        *rand.Rand
	attempts   int
	candidates int

	// Group refinement scratch. Groups are contiguous runs of the key
	// slice; starts/ends track the runs that still collide. refine writes
	// the next generation into the *2 arrays before swapping them in, so
	// reads of the current generation are never clobbered mid-pass.
	starts, ends   [MaxBucketKeys]int
	starts2, ends2 [MaxBucketKeys]int
	odd            [MaxBucketKeys]uint64 // parity-1 keys during a split
	nGroups        int

	// Gaussian elimination scratch, indexed by pivot bit position.
	// basis[p] is the echelon vector with leading bit p, or 0 when the
	// position is unused; bit p of targets is the parity the final mask
	// must give that vector.
	basis   [64]uint64
	pivots  uint64
	targets uint64
}

// NewSolver returns a Solver seeded deterministically from seed. The same
// seed, attempts, candidates, and key order reproduce the same matrix,
// which is what test suites rely on; production builds pass a fresh seed
// per build. Non-positive attempts or candidates select the defaults.
func NewSolver(seed uint64, attempts, candidates int) *Solver {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if candidates <= 0 {
		candidates = DefaultRowCandidates
	}
	return &Solver{
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		attempts:   attempts,
		candidates: candidates,
	}
}

// Solve finds a Matrix whose Code is injective over keys.
//
// keys is consumed as scratch: group refinement reorders the slice in
// place, and it must be treated as corrupted after Solve returns,
// regardless of outcome. Callers that still need the original order must
// pass a copy.
//
// Duplicate keys can never receive distinct codes; they are detected up
// front and reported as ErrDuplicateKey instead of burning the retry
// budget. Buckets larger than 64 keys and exhausted searches return
// ErrMatrixSearchFailed.
func (s *Solver) Solve(keys []uint64) (Matrix, error) {
	n := len(keys)
	if n > MaxBucketKeys {
		return Matrix{}, fmt.Errorf("%w: bucket holds %d keys, max %d",
			staterrors.ErrMatrixSearchFailed, n, MaxBucketKeys)
	}

	if n <= 1 {
		// Any rows are injective over zero or one key. Random rows (rather
		// than zero) spread non-member keys across the code space.
		var m Matrix
		for i := range m {
			m[i] = s.rng.Uint64()
		}
		return m, nil
	}

	if hasDuplicate(keys) {
		return Matrix{}, fmt.Errorf("%w: bucket of %d keys", staterrors.ErrDuplicateKey, n)
	}

	for attempt := 0; attempt < s.attempts; attempt++ {
		m, separated := s.search(keys)
		// Construction guarantees injectivity when every group went
		// singleton, but the whole point of the matrix is this property,
		// so verify it end to end before handing it out.
		if separated && m.injectiveOver(keys) {
			return m, nil
		}
	}
	return Matrix{}, fmt.Errorf("%w: %d keys after %d attempts",
		staterrors.ErrMatrixSearchFailed, n, s.attempts)
}

// search runs one greedy trajectory: score s.candidates solved masks per
// row, commit the best, refine groups, repeat for all six rows. Reports
// whether every group ended up a singleton.
func (s *Solver) search(keys []uint64) (Matrix, bool) {
	s.nGroups = 1
	s.starts[0] = 0
	s.ends[0] = len(keys)

	var m Matrix
	for row := 0; row < Rows; row++ {
		if s.nGroups == 0 {
			// Fully separated early; remaining rows only shape where
			// non-member keys land.
			m[row] = s.rng.Uint64()
			continue
		}
		// A subgroup wider than the code space left after this row can
		// never be separated, so such splits are rejected outright.
		sizeCap := 1 << (Rows - 1 - row)
		mask := s.bestMask(keys, sizeCap)
		m[row] = mask
		s.refine(keys, mask)
	}
	return m, s.nGroups == 0
}

// bestMask solves and scores s.candidates masks and returns the one
// leaving the fewest colliding pairs across all current groups. A mask
// splitting every group into singletons scores zero and short-circuits.
// If every candidate violates sizeCap the zero mask comes back; the
// trajectory then fails refinement and the attempt is retried.
func (s *Solver) bestMask(keys []uint64, sizeCap int) uint64 {
	var best uint64
	bestScore := rejected
	for c := 0; c < s.candidates && bestScore > 0; c++ {
		mask := s.solveCandidate(keys)
		if sc := s.score(keys, mask, bestScore, sizeCap); sc < bestScore {
			best, bestScore = mask, sc
		}
	}
	return best
}

// rejected is the score of an unusable mask; any usable split scores
// strictly lower (a full bucket has at most 64*63/2 = 2016 pairs).
const rejected = 1 << 20

// score returns the number of key pairs still colliding after splitting
// every group by parity under mask, or rejected when a subgroup would
// exceed sizeCap. Stops early once the running total reaches limit, since
// the caller only cares about strictly better masks.
func (s *Solver) score(keys []uint64, mask uint64, limit, sizeCap int) int {
	total := 0
	for g := 0; g < s.nGroups; g++ {
		odd := 0
		for _, key := range keys[s.starts[g]:s.ends[g]] {
			odd += int(intbits.Parity64(mask & key))
		}
		even := s.ends[g] - s.starts[g] - odd
		if odd > sizeCap || even > sizeCap {
			return rejected
		}
		total += pairs(even) + pairs(odd)
		if total >= limit {
			return total
		}
	}
	return total
}

func pairs(n int) int { return n * (n - 1) / 2 }

// solveCandidate draws balanced random parity targets for every group and
// returns a mask realizing them exactly, modulo linear dependencies
// between keys (a dependent key's parity is forced by the keys before it,
// and the solved mask honors the forced value instead of the drawn one).
//
// The system is solved by Gaussian elimination over GF(2): keys are
// reduced into an echelon basis indexed by leading bit, each basis vector
// carrying the parity the mask must produce for it; back-substitution
// over the pivot positions then yields a mask supported on those
// positions only.
func (s *Solver) solveCandidate(keys []uint64) uint64 {
	// Balanced random targets: exactly half of each group (odd sizes
	// rounding either way at random) drawn without replacement.
	var desired uint64
	for g := 0; g < s.nGroups; g++ {
		size := s.ends[g] - s.starts[g]
		ones := size / 2
		if size%2 == 1 && s.rng.Uint64()&1 == 1 {
			ones++
		}
		remaining := size
		for i := s.starts[g]; i < s.ends[g]; i++ {
			if s.rng.IntN(remaining) < ones {
				desired |= 1 << uint(i)
				ones--
			}
			remaining--
		}
	}

	// Eliminate. Only keys in colliding groups constrain the mask;
	// already-separated keys may land anywhere.
	s.pivots = 0
	s.targets = 0
	for g := 0; g < s.nGroups; g++ {
		for i := s.starts[g]; i < s.ends[g]; i++ {
			v := keys[i]
			acc := uint64(0)
			for v != 0 {
				p := uint(bits.Len64(v)) - 1
				if s.basis[p] == 0 {
					s.basis[p] = v
					s.pivots |= 1 << p
					if (desired>>uint(i))&1 != acc {
						s.targets |= 1 << p
					}
					break
				}
				v ^= s.basis[p]
				acc ^= (s.targets >> p) & 1
			}
			// v == 0 without insertion: key is dependent, parity forced
			// to acc. Nothing to record; the mask will produce acc.
		}
	}

	// Back-substitute, ascending over pivot positions. basis[p] has its
	// leading bit at p and may touch lower pivots only, so each step
	// closes over bits already resolved.
	var mask uint64
	for rem := s.pivots; rem != 0; rem &= rem - 1 {
		p := uint(bits.TrailingZeros64(rem))
		if (s.targets>>p)&1 != intbits.Parity64(s.basis[p]&mask) {
			mask |= 1 << p
		}
	}

	// Clear only the touched basis slots for the next candidate.
	for rem := s.pivots; rem != 0; rem &= rem - 1 {
		s.basis[bits.TrailingZeros64(rem)] = 0
	}
	return mask
}

// refine splits every group in place by parity under mask: even-parity
// keys keep the front of the run, odd-parity keys move to the back via the
// odd scratch buffer. Subgroups of two or more keys stay in the working
// set; singletons are separated for good and drop out.
func (s *Solver) refine(keys []uint64, mask uint64) {
	next := 0
	for g := 0; g < s.nGroups; g++ {
		start, end := s.starts[g], s.ends[g]
		w := start
		nOdd := 0
		for _, key := range keys[start:end] {
			if intbits.Parity64(mask&key) == 1 {
				s.odd[nOdd] = key
				nOdd++
			} else {
				keys[w] = key
				w++
			}
		}
		copy(keys[w:end], s.odd[:nOdd])

		if w-start >= 2 {
			s.starts2[next], s.ends2[next] = start, w
			next++
		}
		if end-w >= 2 {
			s.starts2[next], s.ends2[next] = w, end
			next++
		}
	}
	s.starts, s.starts2 = s.starts2, s.starts
	s.ends, s.ends2 = s.ends2, s.ends
	s.nGroups = next
}

// hasDuplicate reports whether keys contains a repeated value. Buckets are
// at most 64 keys, so the pairwise scan is cheaper than hashing.
func hasDuplicate(keys []uint64) bool {
	for i := 1; i < len(keys); i++ {
		for j := 0; j < i; j++ {
			if keys[i] == keys[j] {
				return true
			}
		}
	}
	return false
}

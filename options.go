package staticmph

import "github.com/avestra/staticmph/internal/linmap"

// Option is a functional option for configuring a Table.
type Option func(*config)

type config struct {
	seed          uint64
	seeded        bool // true once WithSeed pins the seed
	attempts      int
	rowCandidates int
	parallel      bool
}

func defaultConfig() config {
	return config{
		attempts:      linmap.DefaultAttempts,
		rowCandidates: linmap.DefaultRowCandidates,
	}
}

// WithSeed pins the seed of the randomized row-mask search, making Build
// fully deterministic for a given key set. Without it every Build draws a
// fresh seed, so a failed build can simply be retried.
func WithSeed(seed uint64) Option {
	return func(c *config) {
		c.seed = seed
		c.seeded = true
	}
}

// WithAttempts sets how many search trajectories are tried per bucket
// before Build gives up on it. Non-positive values select the default.
// Raising this trades build time for a higher success rate on key sets
// near the capacity ceiling.
func WithAttempts(n int) Option {
	return func(c *config) {
		c.attempts = n
	}
}

// WithRowCandidates sets how many random masks are scored per matrix row
// within one trajectory. Non-positive values select the default.
func WithRowCandidates(n int) Option {
	return func(c *config) {
		c.rowCandidates = n
	}
}

// WithParallelBuild solves the buckets' matrices concurrently, one
// goroutine per bucket. Build stays synchronous and produces the same
// table as a sequential build with the same seed; with at most four
// buckets this only pays off when attempts are raised well above the
// default. Queries are unaffected.
func WithParallelBuild() Option {
	return func(c *config) {
		c.parallel = true
	}
}

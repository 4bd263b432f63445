// Package staticmph builds near-minimal perfect hash functions for small,
// statically known sets of 64-bit keys, giving branch-light, fixed-latency
// lookups into a densely packed table of at most 256 slots.
//
// The construction partitions the key set into up to four buckets of at
// most 64 keys using one or two heuristically chosen bit tests, then finds
// for each bucket six 64-bit row masks whose bit-parity map compresses the
// bucket's keys injectively into 6-bit codes. Both steps are bounded
// search problems: they can fail, and failure is an ordinary recoverable
// error, expected to be rare below ~200 well-distributed keys and certain
// above 256.
//
// # Basic Usage
//
//	table := staticmph.New()
//	size, err := table.Build(keys) // keys: []uint64, up to 256 entries
//	if err != nil {
//	    // retry with a fresh seed, shrink the key set, or fall back
//	}
//	slots := make([]Payload, size)
//	for _, k := range keys {
//	    slots[table.Query(k)] = payloadFor(k)
//	}
//
// Query is total over all uint64 inputs and collision-free only among the
// built keys; it is a hash function, not a membership test. Store the key
// next to its payload and compare when membership matters.
//
// Keys that are not already uniformly distributed should be run through
// PreHash first; see prehash.go.
//
// # Package Structure
//
//   - Public API: table.go (New, Build, Query, Len), options.go (Option,
//     With* functions), prehash.go (PreHash and friends)
//   - Errors: errors/ (exported sentinels, one source of truth)
//   - Partitioning: internal/partition (bit-test routing scheme search)
//   - Matrix search: internal/linmap (GF(2) row-mask solver)
//   - Primitives: internal/bits (parity)
package staticmph

package staticmph

import (
	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

// PreHash applies xxHash3-64 to a key, returning a well-distributed uint64.
//
// Build assumes its keys are "well hashed", with every bit plane carrying
// information. Skewed keys (sequential integers, pointers, enum values,
// short strings) only degrade the build success rate, never correctness,
// but near the capacity ceiling the degradation is real. Pre-hashing fixes
// that:
//
//	keys := make([]uint64, len(names))
//	for i, name := range names {
//	    keys[i] = staticmph.PreHash([]byte(name))
//	}
//	size, err := table.Build(keys)
//
// Querying must then use the same transformation:
//
//	slot := table.Query(staticmph.PreHash([]byte(name)))
//
// Skip it only when keys are already uniform 64-bit values (crypto hashes,
// random IDs).
func PreHash(key []byte) uint64 {
	return xxh3.Hash(key)
}

// PreHashSeed is PreHash with an explicit seed, for callers that want
// different key sets to disagree on their distribution of hash values.
func PreHashSeed(key []byte, seed uint64) uint64 {
	return xxh3.HashSeed(key, seed)
}

// Hash64Func maps an arbitrary byte key to a 64-bit value. PreHashKeys
// accepts any of the bundled functions or a caller-supplied one; all three
// bundled hashers distribute well enough for Build.
type Hash64Func func(key []byte) uint64

var (
	// XXH3 is the default prehash, the fastest of the three on large keys.
	XXH3 Hash64Func = xxh3.Hash

	// XXHash64 is the classic xxHash variant, for callers that already
	// standardized on it elsewhere.
	XXHash64 Hash64Func = xxhash.Sum64

	// Murmur3 is MurmurHash3's 64-bit finalizer output, kept for parity
	// with systems that route keys by murmur3.
	Murmur3 Hash64Func = murmur3.Sum64
)

// PreHashKeys hashes every key with fn (PreHash's xxh3 when fn is nil)
// into a fresh slice, in input order.
func PreHashKeys(keys [][]byte, fn Hash64Func) []uint64 {
	if fn == nil {
		fn = XXH3
	}
	out := make([]uint64, len(keys))
	for i, key := range keys {
		out[i] = fn(key)
	}
	return out
}

package staticmph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreHashDeterministic(t *testing.T) {
	key := []byte("example-key")
	require.Equal(t, PreHash(key), PreHash(key))
	require.Equal(t, PreHashSeed(key, 42), PreHashSeed(key, 42))
	require.NotEqual(t, PreHashSeed(key, 1), PreHashSeed(key, 2))
}

func TestPreHashKeysOrder(t *testing.T) {
	keys := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	got := PreHashKeys(keys, nil)
	require.Len(t, got, 3)
	for i, k := range keys {
		require.Equal(t, PreHash(k), got[i])
	}
}

// TestHash64FuncsDisagree: the three bundled hashers are genuinely
// different functions, not re-exports of one another.
func TestHash64FuncsDisagree(t *testing.T) {
	key := []byte("disagreement-probe")
	a, b, c := XXH3(key), XXHash64(key), Murmur3(key)
	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
	require.NotEqual(t, b, c)
}

// TestPreHashFeedsBuild: string keys round-tripped through PreHash build
// and query like native uint64 keys.
func TestPreHashFeedsBuild(t *testing.T) {
	for _, fn := range []Hash64Func{XXH3, XXHash64, Murmur3} {
		names := make([][]byte, 150)
		for i := range names {
			names[i] = []byte(fmt.Sprintf("service/%04d/endpoint", i))
		}
		keys := PreHashKeys(names, fn)

		table := New(WithSeed(9))
		size, err := table.Build(keys)
		require.NoError(t, err)
		requirePerfect(t, table, keys, size)

		// Query side uses the same transformation.
		for i, name := range names {
			require.Equal(t, table.Query(keys[i]), table.Query(fn(name)))
		}
	}
}

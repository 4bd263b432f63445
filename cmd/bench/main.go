// Bench is a benchmarking and verification tool for staticmph build
// performance, query throughput, and success rates near the capacity
// ceiling.
//
// Usage:
//
//	go run ./cmd/bench -keys 200 -trials 1000
//	go run ./cmd/bench -file keys.bin -parallel
//	go run ./cmd/bench -sweep
//
// Flags:
//
//	-keys     Number of keys per trial (default: 200)
//	-trials   Number of build trials (default: 1000)
//	-seed     Key generation seed (default: 1)
//	-file     Binary file of little-endian uint64 keys, memory-mapped;
//	          overrides -keys/-seed
//	-parallel Solve buckets concurrently within each build
//	-workers  Number of trial worker goroutines (default: GOMAXPROCS)
//	-sweep    Measure build success rate for key counts 230..256
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	"github.com/avestra/staticmph"
)

func main() {
	keysFlag := flag.Int("keys", 200, "number of keys per trial")
	trialsFlag := flag.Int("trials", 1000, "number of build trials")
	seedFlag := flag.Uint64("seed", 1, "key generation seed")
	fileFlag := flag.String("file", "", "binary file of little-endian uint64 keys")
	parallelFlag := flag.Bool("parallel", false, "solve buckets concurrently within each build")
	workersFlag := flag.Int("workers", runtime.GOMAXPROCS(0), "number of trial worker goroutines")
	sweepFlag := flag.Bool("sweep", false, "measure success rate for key counts 230..256")
	flag.Parse()

	if *sweepFlag {
		runSweep(*trialsFlag, *seedFlag)
		return
	}

	var keys []uint64
	if *fileFlag != "" {
		var err error
		keys, err = loadKeys(*fileFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load keys: %v\n", err)
			os.Exit(1)
		}
	} else {
		keys = generateKeys(*keysFlag, *seedFlag)
	}
	if len(keys) > staticmph.MaxKeys {
		fmt.Fprintf(os.Stderr, "too many keys: %d (max %d)\n", len(keys), staticmph.MaxKeys)
		os.Exit(1)
	}

	fmt.Printf("keys=%d trials=%d parallel=%v workers=%d\n",
		len(keys), *trialsFlag, *parallelFlag, *workersFlag)

	runTrials(keys, *trialsFlag, *workersFlag, *parallelFlag)
	runQueryBench(keys, *parallelFlag)
}

// generateKeys produces n well-distributed keys by hashing a counter with
// murmur3. Deterministic for a given seed.
func generateKeys(n int, seed uint64) []uint64 {
	keys := make([]uint64, n)
	var buf [8]byte
	for i := range keys {
		binary.LittleEndian.PutUint64(buf[:], seed+uint64(i))
		keys[i] = murmur3.Sum64(buf[:])
	}
	return keys
}

// loadKeys memory-maps a binary file of little-endian uint64 values.
// The mapping stays live for the life of the process; bench exits right
// after, so it is never unmapped explicitly.
func loadKeys(path string) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size()%8 != 0 {
		return nil, fmt.Errorf("%s: size %d is not a multiple of 8", path, fi.Size())
	}

	fadviseSequential(int(f.Fd()), 0, fi.Size())
	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}

	keys := make([]uint64, fi.Size()/8)
	for i := range keys {
		keys[i] = binary.LittleEndian.Uint64(mm[i*8:])
	}
	return keys, nil
}

// runTrials builds the table repeatedly across worker goroutines and
// reports the success rate and build latency distribution.
func runTrials(keys []uint64, trials, workers int, parallel bool) {
	var successes, failures atomic.Int64
	durations := make([]time.Duration, trials)

	var g errgroup.Group
	g.SetLimit(workers)
	for trial := 0; trial < trials; trial++ {
		g.Go(func() error {
			opts := []staticmph.Option{staticmph.WithSeed(uint64(trial))}
			if parallel {
				opts = append(opts, staticmph.WithParallelBuild())
			}
			table := staticmph.New(opts...)

			start := time.Now()
			_, err := table.Build(keys)
			durations[trial] = time.Since(start)

			if err != nil {
				failures.Add(1)
				return nil // Build failure is a measured outcome, not a bench error
			}
			successes.Add(1)
			return verify(table, keys)
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "verification failed: %v\n", err)
		os.Exit(1)
	}

	slices.Sort(durations)
	fmt.Printf("build: ok=%d fail=%d p50=%v p90=%v p99=%v max=%v\n",
		successes.Load(), failures.Load(),
		durations[trials/2], durations[trials*9/10], durations[trials*99/100],
		durations[trials-1])
}

// verify checks the perfect-hash property: pairwise-distinct in-range
// indices for every built key.
func verify(table *staticmph.Table, keys []uint64) error {
	size := table.Len()
	seen := make([]bool, size)
	for _, k := range keys {
		idx := table.Query(k)
		if int(idx) >= size {
			return fmt.Errorf("key %#x: index %d out of range [0, %d)", k, idx, size)
		}
		if seen[idx] {
			return fmt.Errorf("key %#x: index %d collides", k, idx)
		}
		seen[idx] = true
	}
	return nil
}

// runQueryBench measures single-threaded query throughput on one built
// table.
func runQueryBench(keys []uint64, parallel bool) {
	opts := []staticmph.Option{staticmph.WithSeed(1)}
	if parallel {
		opts = append(opts, staticmph.WithParallelBuild())
	}
	table := staticmph.New(opts...)
	if _, err := table.Build(keys); err != nil {
		fmt.Printf("query bench skipped: %v\n", err)
		return
	}

	const rounds = 1 << 22
	var sink uint32
	start := time.Now()
	for i := 0; i < rounds; i++ {
		sink ^= table.Query(keys[i%len(keys)])
	}
	elapsed := time.Since(start)
	nsPerOp := float64(elapsed.Nanoseconds()) / float64(rounds)
	fmt.Printf("query: %.1f ns/op (%.1f M ops/s) [sink=%d]\n",
		nsPerOp, 1e3/nsPerOp, sink)
}

// runSweep measures how build success degrades as the key count climbs
// toward the 256-key ceiling.
func runSweep(trials int, seed uint64) {
	fmt.Println("keys  success-rate")
	for n := 230; n <= 256; n += 2 {
		ok := 0
		for trial := 0; trial < trials; trial++ {
			keys := generateKeys(n, seed+uint64(trial)*1_000_003)
			table := staticmph.New(staticmph.WithSeed(uint64(trial)))
			if _, err := table.Build(keys); err == nil {
				ok++
			}
		}
		fmt.Printf("%4d  %6.2f%%\n", n, 100*float64(ok)/float64(trials))
	}
}

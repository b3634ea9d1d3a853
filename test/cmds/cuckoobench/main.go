// Command cuckoobench drives a random mix of insert/lookup/remove
// operations against either a cuckoo.Map or a plain Go map, for
// comparing the two under a configurable working-set/miss-rate
// workload. It is a benchmarking tool, not a test: correctness is
// exercised in the cuckoo package's own tests.
package main

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/alexflint/go-arg"

	"github.com/danielhlarkin/CuckooMap/cuckoo"
)

type benchArgs struct {
	UseCuckoo     bool    `arg:"--use-cuckoo" default:"true" help:"true: cuckoo.Map, false: builtin map[uint64]uint64"`
	OpCount       int     `arg:"--op-count" default:"1000000"`
	InitialSize   int     `arg:"--initial-size" default:"1024"`
	MaxSize       int     `arg:"--max-size" default:"1000000"`
	WorkingSize   int     `arg:"--working-size" default:"10000"`
	PInsert       float64 `arg:"--p-insert" default:"0.34"`
	PLookup       float64 `arg:"--p-lookup" default:"0.5"`
	PRemove       float64 `arg:"--p-remove" default:"0.16"`
	PWorking      float64 `arg:"--p-working" default:"0.9" help:"probability a lookup/remove targets the hot working set"`
	PMiss         float64 `arg:"--p-miss" default:"0.05" help:"probability a lookup targets a key known not to exist"`
	Seed          int     `arg:"--seed" default:"1"`
	BatchSize     int     `arg:"--batch-size" default:"256" help:"keys generated per refill of the insert key buffer"`
}

// randomNumber is the same linear congruential generator the original
// C++ harness used (https://en.wikipedia.org/wiki/Linear_congruential_generator).
type randomNumber struct {
	current uint32
}

func newRandomNumber(seed uint32) *randomNumber {
	return &randomNumber{current: seed}
}

func (r *randomNumber) next() uint32 {
	r.current = uint32((48271 * uint64(r.current)) % 2147483647)
	return r.current
}

func (r *randomNumber) nextInRange(n int) uint32 {
	if n == 0 {
		return 0
	}
	r.next()
	return r.next() % uint32(n)
}

// weightedSelector picks an index in [0, len(weights)) with the given
// relative weights, using cumulative cutoffs over randomNumber's range.
type weightedSelector struct {
	r       *randomNumber
	cutoffs []uint32
}

func newWeightedSelector(seed uint32, weights []float64) *weightedSelector {
	w := &weightedSelector{r: newRandomNumber(seed)}
	var total float64
	for _, weight := range weights {
		total += weight
		w.cutoffs = append(w.cutoffs, uint32(math.Ceil(total*2147483647.0)))
	}
	return w
}

func (w *weightedSelector) next() int {
	sample := w.r.next()
	i := 0
	for ; i < len(w.cutoffs); i++ {
		if sample < w.cutoffs[i] {
			break
		}
	}
	return i
}

// benchMap is the common surface cuckoo.Map and a builtin map both
// satisfy, so the workload loop below doesn't need to know which one
// it is driving.
type benchMap interface {
	Insert(k uint64) bool
	Lookup(k uint64) bool
	Remove(k uint64) bool
}

type cuckooBenchMap struct {
	m *cuckoo.Map[uint64, uint64]
}

func newCuckooBenchMap(initialSize int) *cuckooBenchMap {
	h1, h2 := cuckooHashers()
	m := cuckoo.New[uint64, uint64](initialSize, h1, h2,
		func(a, b uint64) bool { return a == b },
		func(k uint64) bool { return k == 0 },
		cuckoo.WithName[uint64, uint64]("cuckoobench"),
	)
	return &cuckooBenchMap{m: m}
}

func cuckooHashers() (cuckoo.HashFunc[uint64], cuckoo.HashFunc[uint64]) {
	return func(k uint64) uint64 { return mix64(k ^ 0xdeadbeefdeadbeef) },
		func(k uint64) uint64 { return mix64(k ^ 0xabcdefabcdef1234) }
}

// mix64 is splitmix64's finalizer, used to spread a seeded xor into a
// well-distributed 64-bit hash without pulling in a third hash library
// just for two uint64 hashes.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

func (c *cuckooBenchMap) Insert(k uint64) bool {
	ok, err := c.m.Insert(k, k)
	if err != nil {
		log.Fatalf("cuckoobench: insert %d: %v", k, err)
	}
	return ok
}

func (c *cuckooBenchMap) Lookup(k uint64) bool {
	f := c.m.Lookup(k)
	defer f.Close()
	return f.Found()
}

func (c *cuckooBenchMap) Remove(k uint64) bool {
	return c.m.Remove(k)
}

type nativeBenchMap struct {
	m map[uint64]uint64
}

func newNativeBenchMap(initialSize int) *nativeBenchMap {
	return &nativeBenchMap{m: make(map[uint64]uint64, initialSize)}
}

func (n *nativeBenchMap) Insert(k uint64) bool {
	if _, ok := n.m[k]; ok {
		return false
	}
	n.m[k] = k
	return true
}

func (n *nativeBenchMap) Lookup(k uint64) bool {
	_, ok := n.m[k]
	return ok
}

func (n *nativeBenchMap) Remove(k uint64) bool {
	if _, ok := n.m[k]; !ok {
		return false
	}
	delete(n.m, k)
	return true
}

// keyBatcher hands out batches of sequential uint64s for the insert
// path. Its backing array is allocated once and overwritten in place on
// every refill, so a million-operation run doesn't churn a million tiny
// heap allocations just to hand a single key to Insert.
type keyBatcher struct {
	buf  []uint64
	next int
}

func newKeyBatcher(size int) *keyBatcher {
	return &keyBatcher{buf: make([]uint64, size)}
}

func (kb *keyBatcher) fill(start uint64) {
	for i := range kb.buf {
		kb.buf[i] = start + uint64(i)
	}
	kb.next = 0
}

func main() {
	var flags benchArgs
	arg.MustParse(&flags)
	log.Printf("cuckoobench starting: %+v", flags)

	var m benchMap
	if flags.UseCuckoo {
		m = newCuckooBenchMap(flags.InitialSize)
	} else {
		m = newNativeBenchMap(flags.InitialSize)
	}

	r := newRandomNumber(uint32(flags.Seed))
	operations := newWeightedSelector(uint32(flags.Seed), []float64{flags.PInsert, flags.PLookup, flags.PRemove})
	working := newWeightedSelector(uint32(flags.Seed), []float64{1.0 - flags.PWorking, flags.PWorking})
	miss := newWeightedSelector(uint32(flags.Seed), []float64{1.0 - flags.PMiss, flags.PMiss})

	batcher := newKeyBatcher(flags.BatchSize)
	var minElement, maxElement uint64

	var inserts, lookups, removes int
	start := time.Now()

	for i := 0; i < flags.OpCount; i++ {
		switch operations.next() {
		case 0: // insert
			if maxElement-minElement >= uint64(flags.MaxSize) {
				continue
			}
			if batcher.next >= len(batcher.buf) || batcher.buf[batcher.next] != maxElement {
				batcher.fill(maxElement)
			}
			k := batcher.buf[batcher.next]
			batcher.next++
			maxElement++
			if !m.Insert(k) {
				log.Fatalf("cuckoobench: failed to insert %d", k)
			}
			inserts++

		case 1: // lookup
			barrier := minElement + uint64(flags.WorkingSize)
			if barrier > maxElement {
				barrier = maxElement
			}
			nHot := barrier - minElement
			nCold := maxElement - barrier

			var k uint64
			if miss.next() == 1 {
				k = maxElement + uint64(r.next())
			} else if working.next() == 1 {
				k = minElement + uint64(r.nextInRange(int(nHot)))
			} else if nCold > 0 {
				k = barrier + uint64(r.nextInRange(int(nCold)))
			} else {
				k = minElement + uint64(r.nextInRange(int(nHot)))
			}
			m.Lookup(k)
			lookups++

		case 2: // remove
			if minElement >= maxElement {
				continue
			}
			var k uint64
			if working.next() == 1 {
				k = minElement
				minElement++
			} else {
				maxElement--
				k = maxElement
			}
			if !m.Remove(k) {
				log.Fatalf("cuckoobench: failed to remove %d", k)
			}
			removes++
		}
	}

	elapsed := time.Since(start)
	fmt.Printf("ops=%d inserts=%d lookups=%d removes=%d elapsed=%s ops/sec=%.0f\n",
		flags.OpCount, inserts, lookups, removes, elapsed, float64(flags.OpCount)/elapsed.Seconds())
}

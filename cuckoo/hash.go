package cuckoo

import (
	"encoding/binary"

	onexxhash "github.com/OneOfOne/xxhash"
	"github.com/cespare/xxhash/v2"
)

// Seeds for the two candidate-bucket hashes. Any two well-mixed,
// distinct constants work; these come straight from the CuckooMap
// reference (HashWithSeed<Key, 0xdeadbeefdeadbeefULL / 0xabcdefabcdef1234ULL>).
const (
	seed1 uint64 = 0xdeadbeefdeadbeef
	seed2 uint64 = 0xabcdefabcdef1234
)

const (
	fingerprintBits = 8
	maxFingerprint  = (1 << fingerprintBits) - 1
)

// fingerprint is the small nonzero tag stored alongside each occupied
// slot. Zero is reserved to mean "slot empty".
type fingerprint uint8

// Hashable is implemented by key types that can hand back their byte
// image for hashing. DefaultHashers builds H1/H2 on top of it.
type Hashable interface {
	Bytes() []byte
}

// HashFunc computes one of a key's two candidate-bucket hashes. Callers
// are expected to supply two independent, distinctly-seeded hash
// functions; DefaultHashers does this for any Hashable key.
type HashFunc[K any] func(k K) uint64

// EqualFunc is the caller-supplied equality relation used to
// disambiguate fingerprint collisions and detect duplicates.
type EqualFunc[K any] func(a, b K) bool

// EmptyFunc reports whether a key is in its canonical empty state.
// Passing an empty key to Insert is undefined behavior; callers must
// check this themselves before calling.
type EmptyFunc[K any] func(k K) bool

// DefaultHashers returns two independent, seeded hash functions for any
// key type that exposes its byte image via Hashable. They are built on
// github.com/OneOfOne/xxhash's seeded checksum, which is the keyed-hash
// primitive this module borrows from the wider example corpus for
// exactly this purpose.
func DefaultHashers[K Hashable]() (HashFunc[K], HashFunc[K]) {
	h1 := func(k K) uint64 { return onexxhash.Checksum64S(k.Bytes(), seed1) }
	h2 := func(k K) uint64 { return onexxhash.Checksum64S(k.Bytes(), seed2) }
	return h1, h2
}

// fingerprintOf derives a slot's fingerprint from a key's H1 value. It
// deliberately rehashes H1 through a third, unseeded hash
// (cespare/xxhash) rather than folding H1's bits directly, so that a
// fingerprint collision is not correlated with a candidate-bucket
// collision.
func fingerprintOf(h1 uint64) fingerprint {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h1)
	return foldFingerprint(xxhash.Sum64(buf[:]))
}

// foldFingerprint takes the high fingerprintBits of h and folds them
// into the nonzero range [1, maxFingerprint], guaranteeing the "zero
// means empty" sentinel is never produced for an occupied slot.
func foldFingerprint(h uint64) fingerprint {
	fp := fingerprint(h >> (64 - fingerprintBits))
	return fp%maxFingerprint + 1
}

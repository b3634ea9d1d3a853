package cuckoo

import (
	"github.com/detailyang/fastrand-go"

	"github.com/danielhlarkin/CuckooMap/lib/utils/xmath"
)

// defaultKickBudget is the maximum number of evictions a single insert
// may perform in one subtable before signalling overflow (the spec's M).
const defaultKickBudget = 512

type insertStatus int8

const (
	statusDuplicate insertStatus = -1
	statusInserted  insertStatus = 0
	statusOverflow  insertStatus = 1
)

// subtable is one flat, fixed-size layer of the cascade. It holds no
// locks of its own — all synchronization happens one level up, in Map.
type subtable[K any, V any] struct {
	buckets []bucket[K, V]
	mask    uint64 // len(buckets)-1; buckets is always a power-of-two length
	kicks   int    // kick budget M

	hash1, hash2 HashFunc[K]
	equal        EqualFunc[K]
}

func newSubtable[K any, V any](numBuckets int, kicks int, h1, h2 HashFunc[K], equal EqualFunc[K]) *subtable[K, V] {
	n := xmath.NextPowerOf2(uint64(numBuckets))
	if n == 0 {
		n = 1
	}
	return &subtable[K, V]{
		buckets: make([]bucket[K, V], n),
		mask:    n - 1,
		kicks:   kicks,
		hash1:   h1,
		hash2:   h2,
		equal:   equal,
	}
}

func (s *subtable[K, V]) capacity() int { return len(s.buckets) * bucketSize }

func (s *subtable[K, V]) indices(k K) (i1, i2 uint64, fp fingerprint) {
	h1 := s.hash1(k)
	i1 = h1 & s.mask
	i2 = s.hash2(k) & s.mask
	fp = fingerprintOf(h1)
	return
}

// lookup scans both of k's candidate buckets and returns a pointer to
// the matching slot, or (nil, false) if k is not present in this layer.
func (s *subtable[K, V]) lookup(k K) (*slot[K, V], bool) {
	i1, i2, fp := s.indices(k)
	if m, _ := s.buckets[i1].find(fp, k, s.equal); m != nil {
		return m, true
	}
	if m, _ := s.buckets[i2].find(fp, k, s.equal); m != nil {
		return m, true
	}
	return nil, false
}

// insert places (k, v) into this subtable.
//
//   - statusDuplicate: an equal key is already present; table unchanged.
//   - statusInserted: placed within the kick budget; resting points at
//     the live slot holding (k, v).
//   - statusOverflow: the kick budget was exhausted; (carryKey,
//     carryValue) is whatever pair is in hand and must be placed by the
//     caller in the next cascade layer. resting points at the slot
//     holding the *original* (k, v) pair if it is still in this
//     subtable, and is nil if the original is itself the carried pair.
func (s *subtable[K, V]) insert(k K, v V) (status insertStatus, resting *slot[K, V], carryKey K, carryValue V, kicksUsed int) {
	i1, i2, fp := s.indices(k)

	m1, empty1 := s.buckets[i1].find(fp, k, s.equal)
	m2, empty2 := s.buckets[i2].find(fp, k, s.equal)
	if m1 != nil || m2 != nil {
		return statusDuplicate, nil, carryKey, carryValue, 0
	}
	if empty1 >= 0 {
		slt := &s.buckets[i1][empty1]
		*slt = slot[K, V]{fp: fp, key: k, value: v}
		return statusInserted, slt, carryKey, carryValue, 0
	}
	if empty2 >= 0 {
		slt := &s.buckets[i2][empty2]
		*slt = slot[K, V]{fp: fp, key: k, value: v}
		return statusInserted, slt, carryKey, carryValue, 0
	}

	// Both candidate buckets are full: start the bounded random walk.
	//
	// cur holds the bucket we are about to write (curFP, curKey,
	// curValue) into. resting follows the caller's original (k, v): it
	// is set when the original is written into a slot, and cleared
	// (origInHand) when a later kick lands on that same slot again — the
	// walk can return to the original's bucket — so the original is back
	// in hand until it is written somewhere else.
	cur := pickBucket(i1, i2)
	curFP, curKey, curValue := fp, k, v
	origInHand := true

	for kick := 0; kick < s.kicks; kick++ {
		j := int(fastrand.FastRand() % bucketSize)
		slt := &s.buckets[cur][j]
		evicted := *slt
		*slt = slot[K, V]{fp: curFP, key: curKey, value: curValue}
		if origInHand {
			resting, origInHand = slt, false
		} else if slt == resting {
			resting, origInHand = nil, true
		}

		// evicted is guaranteed non-empty (both candidate buckets were
		// full when we started, and only full slots get kicked).
		eh1 := s.hash1(evicted.key) & s.mask
		eh2 := s.hash2(evicted.key) & s.mask
		other := eh2
		if cur == eh2 {
			other = eh1
		}

		if empty := s.buckets[other].firstEmptyOnly(); empty >= 0 {
			s.buckets[other][empty] = evicted
			if origInHand {
				resting = &s.buckets[other][empty]
			}
			return statusInserted, resting, carryKey, carryValue, kick + 1
		}

		cur = other
		curFP, curKey, curValue = evicted.fp, evicted.key, evicted.value
	}

	return statusOverflow, resting, curKey, curValue, s.kicks
}

// remove zeros the slot's fingerprint. slt must have come from a prior
// lookup/insert on this same subtable, called while the map's lock is
// still held.
func (s *subtable[K, V]) remove(slt *slot[K, V]) {
	slt.fp = 0
}

func pickBucket(i1, i2 uint64) uint64 {
	if fastrand.FastRand()&1 == 0 {
		return i1
	}
	return i2
}

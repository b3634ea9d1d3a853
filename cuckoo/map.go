// Package cuckoo implements a concurrent, in-memory associative
// container mapping fixed-layout keys to fixed-layout values with
// cuckoo hashing and a geometrically-growing cascade of overflow
// subtables. See SPEC_FULL.md at the module root for the full design.
package cuckoo

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// Map owns an append-only ordered cascade of subtables, one mutex, and
// a used-entry counter. Layer 0 has the constructor-specified bucket
// count; layer i+1, created lazily on overflow, is sized at 4x layer
// i's capacity. A subtable is never resized or removed for the life of
// the Map.
//
// Every public method acquires mu; Lookup additionally hands the lock
// off to the Finding it returns, which holds it until Close().
type Map[K any, V any] struct {
	mu sync.Mutex

	tables []*subtable[K, V]
	used   uint64

	hash1, hash2 HashFunc[K]
	equal        EqualFunc[K]
	empty        EmptyFunc[K]

	kickBudget int
	maxLayers  int
	name       string
	log        *zap.Logger

	// valueSize/valueAlign record V's layout at construction time, for
	// API parity with the reference implementation's explicit
	// value-layout parameters; the core never packs bytes by hand, so
	// these are reported (see New) but otherwise unused.
	valueSize  uintptr
	valueAlign uintptr
}

// New constructs a Map whose layer 0 holds at least initialBuckets
// buckets. h1 and h2 must be independent, distinctly-seeded hashes of
// the same key (DefaultHashers provides a ready-made pair for any
// Hashable key type); equal disambiguates fingerprint collisions and
// detects duplicates; empty reports whether a key is in its canonical
// empty state (Insert with an empty key is undefined behavior — callers
// must check this themselves).
func New[K any, V any](initialBuckets int, h1, h2 HashFunc[K], equal EqualFunc[K], empty EmptyFunc[K], opts ...Option[K, V]) *Map[K, V] {
	var zero V
	m := &Map[K, V]{
		hash1:      h1,
		hash2:      h2,
		equal:      equal,
		empty:      empty,
		kickBudget: defaultKickBudget,
		maxLayers:  32,
		name:       "default",
		log:        zap.NewNop(),
		valueSize:  unsafe.Sizeof(zero),
		valueAlign: unsafe.Alignof(zero),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.tables = []*subtable[K, V]{newSubtable[K, V](initialBuckets, m.kickBudget, h1, h2, equal)}
	m.log.Debug("cuckoo: map constructed",
		zap.String("name", m.name),
		zap.Int("initialBuckets", initialBuckets),
		zap.Uintptr("valueSize", m.valueSize),
		zap.Uintptr("valueAlign", m.valueAlign),
	)
	m.reportUsedLocked()
	m.reportLayersLocked()
	return m
}

// Lookup looks up k and returns a Finding describing the outcome. The
// returned Finding holds the map's lock until Close() is called on it,
// even if the key was not found — this lets a caller chain further
// operations (e.g. an Insert after a failed Lookup) without releasing
// and reacquiring the lock.
//
// If k was found in a layer other than 0, Lookup promotes it: the pair
// is copied out, removed from its old layer, and reinserted starting at
// layer 0, so a subsequent Lookup of the same key is expected to find
// it in layer 0 (spec testable property 5 / scenario S6).
func (m *Map[K, V]) Lookup(k K) *Finding[K, V] {
	m.mu.Lock()
	f := &Finding[K, V]{m: m, layer: -1}
	m.innerLookup(k, f)
	return f
}

// LookupInto is Lookup's closure-free out-parameter form: it reuses an
// existing Finding, rebinding it to this map (releasing whatever lock
// it previously held) if necessary. It returns whether k was found.
func (m *Map[K, V]) LookupInto(k K, f *Finding[K, V]) bool {
	f.rebind(m)
	m.innerLookup(k, f)
	return f.Found()
}

// Insert inserts (k, v). It returns false, leaving the map unchanged,
// if an equal key is already present. If the cascade's layer cap
// (WithMaxLayers) is hit while absorbing overflow, it returns
// ErrLayerGrowth; the map's invariants are preserved (see errors.go).
func (m *Map[K, V]) Insert(k K, v V) (bool, error) {
	g := acquire(&m.mu)
	defer g.release()
	return m.innerInsert(k, v, nil)
}

// InsertInto is Insert's Finding-threading form. On success, if f still
// refers to the original key's own resting slot (i.e. the pair never
// got kicked to a different identity along the way), f points at it;
// otherwise f.Found() is false, matching the reference implementation's
// own documented inconsistency here: inserting via a Finding does not
// promise to report the inserted slot's location once the carried pair
// stops being the one the caller asked for (see DESIGN.md).
func (m *Map[K, V]) InsertInto(k K, v V, f *Finding[K, V]) (bool, error) {
	f.rebind(m)
	return m.innerInsert(k, v, f)
}

// Remove removes k if present. It returns true iff a pair was removed.
// Like the reference implementation, this is built on Lookup, so
// removing a key that currently lives in a layer above 0 promotes it
// to layer 0 first and then removes it from there.
func (m *Map[K, V]) Remove(k K) bool {
	f := m.Lookup(k)
	defer f.Close()
	if !f.Found() {
		return false
	}
	m.innerRemove(f)
	return true
}

// RemoveFinding removes the pair f currently refers to. If f belongs to
// a different map, ownership switches to m first (releasing the old
// map's lock) and f is left holding nothing, since a slot from another
// map's tables means nothing here. Unlike LookupInto/InsertInto, this
// does NOT re-run a lookup: it trusts whatever f already points at, so
// it returns false without modifying the map if f does not currently
// refer to a pair in m.
func (m *Map[K, V]) RemoveFinding(f *Finding[K, V]) bool {
	if f.m != m {
		f.Close()
		m.mu.Lock()
		f.m = m
		f.slot, f.layer = nil, -1
	}
	if f.slot == nil {
		return false
	}
	m.innerRemove(f)
	return true
}

// NrUsed returns the number of distinct keys currently stored.
func (m *Map[K, V]) NrUsed() uint64 {
	g := acquire(&m.mu)
	defer g.release()
	return m.used
}

// View is the closure-scoped alternative to Lookup/Close the design
// notes call for: it acquires a Finding, invokes fn, and guarantees
// Close() on every exit path, including a panic inside fn.
func (m *Map[K, V]) View(k K, fn func(f *Finding[K, V])) {
	f := m.Lookup(k)
	defer f.Close()
	fn(f)
}

// Update is View's insert-oriented counterpart.
func (m *Map[K, V]) Update(k K, v V, fn func(inserted bool, err error, f *Finding[K, V])) {
	f := &Finding[K, V]{}
	f.rebind(m)
	defer f.Close()
	ok, err := m.innerInsert(k, v, f)
	fn(ok, err, f)
}

func (m *Map[K, V]) innerLookup(k K, f *Finding[K, V]) {
	f.slot, f.layer = nil, -1
	for layer, sub := range m.tables {
		slt, ok := sub.lookup(k)
		if !ok {
			continue
		}
		if layer == 0 {
			f.slot, f.layer = slt, 0
			return
		}

		// Promote: copy the pair out, remove it from this layer, and
		// reinsert it starting at layer 0, then point f at wherever the
		// pair resettled.
		kCopy, vCopy := slt.key, slt.value
		sub.remove(slt)
		m.used--
		promotionsCounter.WithLabelValues(m.name).Inc()
		_, _ = m.innerInsert(kCopy, vCopy, nil)
		for l, s := range m.tables {
			if rs, ok := s.lookup(kCopy); ok {
				f.slot, f.layer = rs, int32(l)
				break
			}
		}
		return
	}
}

// innerInsert runs the cascade: up to three attempts per existing
// layer, then a freshly appended 4x-capacity layer, repeated until a
// pair settles or the layer cap is hit. An equal key already present in
// any layer makes it return false before anything is placed.
//
// f, if non-nil, is threaded through only while the pair currently
// being placed is still (by key equality) the original (k, v) the
// caller asked for. The very first subtable.insert call below always
// satisfies this; once a kick budget is exhausted and a *different*
// pair is carried forward, carrying goes false for good and f stops
// being updated — matching the reference implementation's
// _compKey(originalKey, kCopy) guard.
func (m *Map[K, V]) innerInsert(origKey K, origValue V, f *Finding[K, V]) (bool, error) {
	for _, sub := range m.tables {
		if _, ok := sub.lookup(origKey); ok {
			return false, nil
		}
	}

	curKey, curValue := origKey, origValue
	carrying := true

	for layer := 0; layer < len(m.tables); layer++ {
		sub := m.tables[layer]
		for attempt := 0; attempt < 3; attempt++ {
			status, resting, carryKey, carryValue, kicksUsed := sub.insert(curKey, curValue)
			switch status {
			case statusDuplicate:
				return false, nil
			case statusInserted:
				m.used++
				m.reportUsedLocked()
				kicksHist.WithLabelValues(m.name).Observe(float64(kicksUsed))
				if f != nil && carrying {
					f.slot, f.layer = resting, int32(layer)
				}
				return true, nil
			case statusOverflow:
				curKey, curValue = carryKey, carryValue
				carrying = carrying && m.equal(origKey, curKey)
			}
		}
	}

	for len(m.tables) < m.maxLayers {
		last := m.tables[len(m.tables)-1]
		next := newSubtable[K, V](len(last.buckets)*4, m.kickBudget, m.hash1, m.hash2, m.equal)
		m.tables = append(m.tables, next)
		layer := len(m.tables) - 1
		m.reportLayersLocked()
		m.log.Info("cuckoo: grew cascade", zap.String("name", m.name), zap.Int("layer", layer), zap.Int("capacity", next.capacity()))

		for {
			status, resting, carryKey, carryValue, kicksUsed := next.insert(curKey, curValue)
			switch status {
			case statusDuplicate:
				// Structurally unreachable for a freshly allocated,
				// empty layer, but honored for safety.
				return false, nil
			case statusInserted:
				m.used++
				m.reportUsedLocked()
				kicksHist.WithLabelValues(m.name).Observe(float64(kicksUsed))
				if f != nil && carrying {
					f.slot, f.layer = resting, int32(layer)
				}
				return true, nil
			case statusOverflow:
				curKey, curValue = carryKey, carryValue
				carrying = carrying && m.equal(origKey, curKey)
			}
		}
	}

	m.log.Error("cuckoo: layer growth cap reached", zap.String("name", m.name), zap.Int("maxLayers", m.maxLayers))
	return false, ErrLayerGrowth
}

func (m *Map[K, V]) innerRemove(f *Finding[K, V]) {
	m.tables[f.layer].remove(f.slot)
	f.slot, f.layer = nil, -1
	m.used--
	m.reportUsedLocked()
}

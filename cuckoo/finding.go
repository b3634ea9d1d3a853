package cuckoo

// Finding is a scoped handle returned by Lookup/Insert. It reports
// whether a key/value pair was located, exposes mutable pointers into
// the live slot under the held lock, and — because Go has no
// destructors — must be released with Close() when the caller is done
// with it, conventionally via `defer f.Close()`:
//
//	f := m.Lookup(k)
//	defer f.Close()
//	if f.Found() {
//		*f.Value() = newValue
//	}
//
// Holding a Finding and calling back into the same Map from the same
// goroutine deadlocks: the map has exactly one coarse mutex and no
// reentrancy support. This is a property of the locking design, not a
// bug; it is not guarded against at runtime.
//
// A Finding may be reused across maps: passing it to a different map's
// LookupInto/InsertInto releases the old map's lock and acquires the
// new one.
type Finding[K any, V any] struct {
	slot  *slot[K, V]
	m     *Map[K, V]
	layer int32
}

// Found reports whether a key/value pair was located. If false, Key()
// and Value() are meaningless.
func (f *Finding[K, V]) Found() bool {
	return f.m != nil && f.slot != nil
}

// Key returns a pointer into the live slot's key storage. Mutating *Key()
// is permitted only if the mutation does not change the key's hash,
// fingerprint, or equality class — the map has no way to detect such a
// change and will misbehave if one occurs.
func (f *Finding[K, V]) Key() *K {
	if f.slot == nil {
		return nil
	}
	return &f.slot.key
}

// Value returns a pointer into the live slot's value storage. It may be
// mutated freely.
func (f *Finding[K, V]) Value() *V {
	if f.slot == nil {
		return nil
	}
	return &f.slot.value
}

// Next and Get exist only for API parity with a multi-valued sibling
// container (CuckooMultiMap in the original design) that this package
// does not implement; they always report nothing found.
func (f *Finding[K, V]) Next() bool     { return false }
func (f *Finding[K, V]) Get(i int) bool { return false }

// Close releases the mutex this Finding holds, if any. It is safe to
// call more than once.
func (f *Finding[K, V]) Close() {
	if f.m == nil {
		return
	}
	m := f.m
	f.m = nil
	f.slot = nil
	f.layer = -1
	m.mu.Unlock()
}

// rebind transfers lock ownership from whatever map f currently
// belongs to (if any) over to m. It is the shared plumbing behind
// LookupInto and InsertInto's "a Finding may be reused across maps"
// contract: if f already belongs to m, the lock stays held (it is not
// released and reacquired on every reuse).
func (f *Finding[K, V]) rebind(m *Map[K, V]) {
	if f.m != m {
		f.Close()
		m.mu.Lock()
		f.m = m
	}
	f.slot = nil
	f.layer = -1
}

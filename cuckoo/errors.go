package cuckoo

import "errors"

// ErrLayerGrowth is returned when the cascade cannot allocate a new
// overflow layer. The map's invariants are preserved: the partial
// subtable is discarded, the table list is left unmutated, the used
// counter is unchanged, and whatever pair was in hand at the time is
// lost to the caller — the insert simply did not happen.
//
// This is the only fault this package raises as a Go error rather than
// a boolean; duplicate-on-insert and not-found-on-lookup/remove are
// ordinary false/unfound results, never errors (spec section 7).
var ErrLayerGrowth = errors.New("cuckoo: failed to allocate overflow layer")

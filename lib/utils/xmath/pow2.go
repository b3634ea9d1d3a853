// Package xmath holds small numeric helpers shared across the module. It is
// named xmath (rather than math) so callers can still import the standard
// library's math package alongside it without a rename.
package xmath

// NextPowerOf2 rounds n up to the nearest power of two. NextPowerOf2(0) is 1.
//
// Subtables round their bucket count up with this so that bucket indexing
// can use a mask (h & (n-1)) instead of a modulo.
func NextPowerOf2(n uint64) uint64 {
	if n > 0 && (n&(n-1)) == 0 {
		return n
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

package xmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextPowerOf2(t *testing.T) {
	cases := []struct {
		n uint64
		p uint64
	}{
		{0, 1}, {3, 4}, {7, 8}, {121, 128}, {(1 << 33) - 4, 1 << 33},
	}
	for _, c := range cases {
		assert.Equal(t, c.p, NextPowerOf2(c.n))
	}
	for i := 0; i < 63; i++ {
		assert.Equal(t, uint64(1<<i), NextPowerOf2(1<<i))
	}
}

package cuckoo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketFindDuplicateAndFirstEmpty(t *testing.T) {
	var b bucket[uint64, string]
	b[0] = slot[uint64, string]{fp: 7, key: 1, value: "one"}
	b[1] = slot[uint64, string]{fp: 9, key: 2, value: "two"}

	match, firstEmpty := b.find(7, 1, u64Equal)
	assert.Same(t, &b[0], match)
	assert.Equal(t, 2, firstEmpty)

	match, firstEmpty = b.find(3, 99, u64Equal)
	assert.Nil(t, match)
	assert.Equal(t, 2, firstEmpty)
}

func TestBucketFirstEmptyOnlyFullBucket(t *testing.T) {
	var b bucket[uint64, string]
	for i := range b {
		b[i] = slot[uint64, string]{fp: fingerprint(i + 1), key: uint64(i), value: "x"}
	}
	assert.Equal(t, -1, b.firstEmptyOnly())
}

func TestSlotEmpty(t *testing.T) {
	var s slot[uint64, string]
	assert.True(t, s.empty())
	s.fp = 1
	assert.False(t, s.empty())
}

package syncstatus

import (
	"testing"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashFor(n uint64) crypto.Hash {
	var h crypto.Hash
	h[0] = byte(n)
	h[1] = byte(n >> 8)
	return h
}

func TestStoreBlockHashMonotonic(t *testing.T) {
	s := New(0, 0)
	for i := uint64(1); i <= 250; i++ {
		s.StoreBlockHash(i, hashFor(i))
	}
	assert.Equal(t, uint64(250), s.LastKnownBlockHeight())

	got, ok := s.HaveBlockAtHeight(250)
	require.True(t, ok)
	assert.Equal(t, hashFor(250), got)
}

func TestRecentWindowBounded(t *testing.T) {
	s := New(0, 0)
	for i := uint64(1); i <= 250; i++ {
		s.StoreBlockHash(i, hashFor(i))
	}
	assert.LessOrEqual(t, len(s.recent), recentWindowSize)
	// the oldest entries should have fallen out of the dense window but
	// remain reachable via the sparse checkpoint deque for a fork deep
	// enough to need them.
	cps := s.GetBlockHashCheckpoints()
	assert.NotEmpty(t, cps)
}

func TestRewindTo(t *testing.T) {
	s := New(0, 0)
	for i := uint64(1); i <= 50; i++ {
		s.StoreBlockHash(i, hashFor(i))
	}
	s.RewindTo(30)
	assert.Equal(t, uint64(29), s.LastKnownBlockHeight())
	_, ok := s.HaveBlockAtHeight(30)
	assert.False(t, ok)
	_, ok = s.HaveBlockAtHeight(29)
	assert.True(t, ok)
}

func TestCheckpointStrideProgression(t *testing.T) {
	// 1, 1, 1, 2, 4, 8, ...
	expect := []int{1, 1, 1, 2, 4, 8, 16}
	for n, want := range expect {
		assert.Equal(t, want, checkpointStride(n))
	}
}

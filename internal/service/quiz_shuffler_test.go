package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSizeAndDistinct(t *testing.T) {
	s := NewShuffler(1)
	pool := []int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}

	for n := -1; n <= len(pool)+3; n++ {
		got := s.Sample(pool, n)

		want := n
		if want < 0 {
			want = 0
		}
		if want > len(pool) {
			want = len(pool)
		}
		require.Len(t, got, want, "n=%d", n)

		seen := make(map[int]bool)
		for _, v := range got {
			assert.Contains(t, pool, v)
			assert.False(t, seen[v], "duplicate %d for n=%d", v, n)
			seen[v] = true
		}
	}
	assert.Equal(t, []int{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}, pool, "pool must not be modified")
}

func TestSampleEmptyPool(t *testing.T) {
	s := NewShuffler(1)
	assert.Empty(t, s.Sample(nil, 5))
	assert.NotNil(t, s.Sample(nil, 5))
}

func TestSampleDeterministicForSeed(t *testing.T) {
	pool := []int{0, 1, 2, 3, 4, 5, 6, 7}
	assert.Equal(t, NewShuffler(99).Sample(pool, 4), NewShuffler(99).Sample(pool, 4))
}

func TestPermIsBijection(t *testing.T) {
	s := NewShuffler(7)
	for k := 0; k <= 6; k++ {
		perm := s.Perm(k)
		require.Len(t, perm, k)

		seen := make([]bool, k)
		for _, v := range perm {
			require.True(t, v >= 0 && v < k)
			assert.False(t, seen[v])
			seen[v] = true
		}
	}
}

// Every index should land in every slot about equally often.
func TestPermUniformity(t *testing.T) {
	const (
		k      = 4
		trials = 40000
	)
	s := NewShuffler(2024)
	var counts [k][k]int
	for i := 0; i < trials; i++ {
		for slot, idx := range s.Perm(k) {
			counts[slot][idx]++
		}
	}

	expected := float64(trials) / k
	chi := 0.0
	for slot := 0; slot < k; slot++ {
		for idx := 0; idx < k; idx++ {
			d := float64(counts[slot][idx]) - expected
			chi += d * d / expected
		}
	}
	// 9 degrees of freedom; 27.88 is the p=0.001 critical value.
	assert.Less(t, chi, 27.88)
}

func TestSampleUniformity(t *testing.T) {
	const (
		size   = 10
		n      = 3
		trials = 30000
	)
	s := NewShuffler(5)
	pool := make([]int, size)
	for i := range pool {
		pool[i] = i
	}
	counts := make([]int, size)
	for i := 0; i < trials; i++ {
		for _, v := range s.Sample(pool, n) {
			counts[v]++
		}
	}

	expected := float64(trials*n) / size
	chi := 0.0
	for _, c := range counts {
		d := float64(c) - expected
		chi += d * d / expected
	}
	// 9 degrees of freedom at p=0.001.
	assert.Less(t, chi, 27.88)
}

func TestNewSeededShuffler(t *testing.T) {
	s, err := NewSeededShuffler()
	require.NoError(t, err)
	assert.Len(t, s.Perm(5), 5)
}

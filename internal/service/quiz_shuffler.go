package service

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Shuffler draws uniform samples and permutations. It is safe for concurrent use.
type Shuffler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewShuffler returns a deterministic shuffler for the given seed.
func NewShuffler(seed uint64) *Shuffler {
	return &Shuffler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewSeededShuffler seeds a shuffler from crypto/rand.
func NewSeededShuffler() (*Shuffler, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	return NewShuffler(binary.LittleEndian.Uint64(b[:])), nil
}

// Sample returns min(n, len(pool)) distinct elements of pool in random order.
// pool itself is left untouched.
func (s *Shuffler) Sample(pool []int, n int) []int {
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return []int{}
	}
	shuffled := make([]int, len(pool))
	copy(shuffled, pool)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Partial Fisher-Yates: only the first n positions need to be settled.
	for i := 0; i < n; i++ {
		j := i + s.rng.IntN(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:n]
}

// Perm returns a random permutation of 0..k-1, filling each slot with an index
// drawn uniformly from the ones not used yet.
func (s *Shuffler) Perm(k int) []int {
	if k <= 0 {
		return []int{}
	}
	remaining := make([]int, k)
	for i := range remaining {
		remaining[i] = i
	}
	out := make([]int, k)

	s.mu.Lock()
	defer s.mu.Unlock()
	for slot := 0; slot < k; slot++ {
		j := s.rng.IntN(len(remaining))
		out[slot] = remaining[j]
		last := len(remaining) - 1
		remaining[j] = remaining[last]
		remaining = remaining[:last]
	}
	return out
}

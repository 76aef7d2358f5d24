package types

import (
	"sync"
)

// SequenceMap holds a signer account's next nonce per chain so concurrent
// submissions from one key never reuse a nonce.
type SequenceMap struct {
	mu sync.Mutex
	// map chain name -> signer account nonce
	sequenceMap map[string]uint64
}

func NewSequenceMap() *SequenceMap {
	return &SequenceMap{
		sequenceMap: map[string]uint64{},
	}
}

// Put resets the next nonce for a chain, e.g. after a "nonce too low" rejection.
func (m *SequenceMap) Put(chain string, val uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequenceMap[chain] = val
}

// Next returns the nonce to use and reserves it.
func (m *SequenceMap) Next(chain string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.sequenceMap[chain]
	m.sequenceMap[chain]++
	return result
}

// Peek returns the next nonce without reserving it.
func (m *SequenceMap) Peek(chain string) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.sequenceMap[chain]
	return val, ok
}

package types

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequenceHandling(t *testing.T) {
	sequenceMap := NewSequenceMap()

	_, ok := sequenceMap.Peek("ethereum")
	require.False(t, ok)

	sequenceMap.Put("ethereum", 7)
	require.Equal(t, uint64(7), sequenceMap.Next("ethereum"))
	require.Equal(t, uint64(8), sequenceMap.Next("ethereum"))

	// chains are tracked independently
	require.Equal(t, uint64(0), sequenceMap.Next("base"))

	// a reset after "nonce too low" wins over reservations
	sequenceMap.Put("ethereum", 20)
	next, ok := sequenceMap.Peek("ethereum")
	require.True(t, ok)
	require.Equal(t, uint64(20), next)
}

func TestSequenceConcurrentNext(t *testing.T) {
	sequenceMap := NewSequenceMap()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[uint64]bool{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := sequenceMap.Next("arbitrum")
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, 50)
}

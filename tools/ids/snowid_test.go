package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDsAreUniqueAndIncreasing(t *testing.T) {
	g := New(7)
	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id := g.Next()
		require.Greater(t, id, prev)
		require.Equal(t, int64(7), Node(id))
		prev = id
	}
}

func TestConcurrentGenerate(t *testing.T) {
	const workers, each = 8, 2000
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*each)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				id := Generate()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*each)
}

func TestNodeIDOutOfRange(t *testing.T) {
	require.Equal(t, int64(1), Node(New(5000).Next()))
	require.NotEmpty(t, GenerateString())
}

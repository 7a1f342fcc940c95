package planner

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DrawsEveryIndexOncePerFill(t *testing.T) {
	pool := NewPool(10, rand.New(rand.NewPCG(1, 2)), true)

	for fill := 0; fill < 3; fill++ {
		seen := make(map[int]bool)
		for i := 0; i < 10; i++ {
			idx, err := pool.Draw()
			require.NoError(t, err)
			assert.False(t, seen[idx])
			seen[idx] = true
		}
		assert.Len(t, seen, 10)
		assert.Equal(t, 0, pool.Remaining())
	}

	assert.Equal(t, 2, pool.Refills())
}

func TestPool_NoRepeatAcrossRefillSeam(t *testing.T) {
	for _, size := range []int{2, 3, 5} {
		pool := NewPool(size, rand.New(rand.NewPCG(uint64(size), 9)), true)

		prev := -1
		for i := 0; i < size*200; i++ {
			idx, err := pool.Draw()
			require.NoError(t, err)
			assert.NotEqual(t, prev, idx, "size %d draw %d", size, i)
			prev = idx
		}
	}
}

func TestPool_SingleItemRepeats(t *testing.T) {
	pool := NewPool(1, rand.New(rand.NewPCG(1, 1)), true)
	for i := 0; i < 3; i++ {
		idx, err := pool.Draw()
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	}
	assert.Equal(t, 2, pool.Refills())
}

func TestPool_UnshuffledKeepsOrder(t *testing.T) {
	pool := NewPool(4, rand.New(rand.NewPCG(1, 1)), false)
	for want := 0; want < 4; want++ {
		idx, err := pool.Draw()
		require.NoError(t, err)
		assert.Equal(t, want, idx)
	}
}

func TestPool_Empty(t *testing.T) {
	pool := NewPool(0, rand.New(rand.NewPCG(1, 1)), true)
	_, err := pool.Draw()
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestPool_ConcurrentDrawsAreAtomic(t *testing.T) {
	const n = 200
	pool := NewPool(n, rand.New(rand.NewPCG(4, 4)), true)

	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx, err := pool.Draw()
			if err != nil {
				return
			}
			mu.Lock()
			seen[idx]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for idx, count := range seen {
		assert.Equal(t, 1, count, "index %d", idx)
	}
	assert.Equal(t, 0, pool.Refills())
}

package planner

import (
	"math/rand/v2"
	"sync"
)

// Pool hands out indices 0..n-1 without replacement. When it runs dry it is
// refilled with a fresh shuffle; the first index after a refill never repeats
// the last one drawn. Draw is safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	size    int
	shuffle bool
	rng     *rand.Rand
	items   []int
	last    int
	fills   int
}

func NewPool(size int, rng *rand.Rand, shuffle bool) *Pool {
	return &Pool{
		size:    size,
		shuffle: shuffle,
		rng:     rng,
		last:    -1,
	}
}

func (p *Pool) Draw() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.size == 0 {
		return 0, ErrEmptyPool
	}

	if len(p.items) == 0 {
		p.refill()
	}

	idx := p.items[0]
	p.items = p.items[1:]
	p.last = idx
	return idx, nil
}

// Refills counts how many times the pool was refilled after its first fill.
func (p *Pool) Refills() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return max(0, p.fills-1)
}

func (p *Pool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *Pool) refill() {
	items := make([]int, p.size)
	for i := range items {
		items[i] = i
	}
	if p.shuffle {
		p.rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
	}
	if p.size > 1 && items[0] == p.last {
		swap := 1 + p.rng.IntN(p.size-1)
		items[0], items[swap] = items[swap], items[0]
	}
	p.items = items
	p.fills++
}

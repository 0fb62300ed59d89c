package ledger

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// confirmCache remembers the engine result a transaction validated with,
// keyed by transaction hash. A validated transaction never changes, so
// entries are immutable and repeat confirmation sweeps can skip the
// endpoint entirely.
type confirmCache struct {
	mu      sync.Mutex
	results *lru.Cache[string, string]

	hits   uint64
	misses uint64
}

func newConfirmCache(size int) (*confirmCache, error) {
	results, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &confirmCache{results: results}, nil
}

func (c *confirmCache) get(txHash string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	engineResult, ok := c.results.Get(txHash)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return engineResult, ok
}

func (c *confirmCache) put(txHash, engineResult string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results.Add(txHash, engineResult)
}

func (c *confirmCache) stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

package embeddings

import lru "github.com/hashicorp/golang-lru/v2"

const defaultCacheSize = 10000

// Cache is an in-memory LRU of vectors keyed by chunk content hash.
// Chunks with identical text share one entry, so exact duplicates are
// embedded at most once per cache lifetime.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = defaultCacheSize
	}
	c, err := lru.New[string, []float32](maxLen)
	if err != nil {
		c, _ = lru.New[string, []float32](defaultCacheSize)
	}
	return &Cache{cache: c}
}

// Get returns a copy of the cached vector so callers cannot mutate the
// cached value.
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	return cp, true
}

func (c *Cache) Add(hash string, vec []float32) {
	cp := make([]float32, len(vec))
	copy(cp, vec)
	c.cache.Add(hash, cp)
}

func (c *Cache) Len() int { return c.cache.Len() }

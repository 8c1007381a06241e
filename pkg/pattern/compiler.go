package pattern

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 4096

type cacheKey struct {
	category Category
	scope    string
	text     string
}

// Compiler compiles patterns and memoizes the results. Compiled patterns are
// immutable, so a Compiler may be shared between goroutines.
type Compiler struct {
	cache *lru.Cache[cacheKey, *Pattern]
}

// NewCompiler returns a Compiler caching up to size patterns. A size <= 0 uses
// DefaultCacheSize.
func NewCompiler(size int) *Compiler {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, *Pattern](size)
	if err != nil {
		// lru.New only fails on a non-positive size
		panic(err)
	}
	return &Compiler{cache: cache}
}

func (c *Compiler) Compile(category Category, text, scope string) (*Pattern, error) {
	key := cacheKey{category: category, scope: scope, text: text}
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}
	p, err := Compile(category, text, scope)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, p)
	return p, nil
}

// Len returns the number of cached patterns.
func (c *Compiler) Len() int {
	return c.cache.Len()
}

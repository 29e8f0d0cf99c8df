package starmap

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultProgramCacheSize bounds how many compiled query programs are kept.
const DefaultProgramCacheSize = 128

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// lruProgramCache keeps the most recently used compiled programs.
type lruProgramCache struct {
	programs *lru.Cache[string, any]
}

// NewLRUProgramCache returns a ProgramCache holding at most size programs.
// Non-positive sizes use DefaultProgramCacheSize.
func NewLRUProgramCache(size int) ProgramCache {
	if size <= 0 {
		size = DefaultProgramCacheSize
	}
	programs, err := lru.New[string, any](size)
	if err != nil {
		// size is positive, so New cannot fail
		panic(err)
	}
	return &lruProgramCache{programs: programs}
}

func (c *lruProgramCache) Get(key string) (any, bool) {
	return c.programs.Get(key)
}

func (c *lruProgramCache) Set(key string, value any) {
	c.programs.Add(key, value)
}

// QueryWithProgramCache registers a compiled program cache for queries.
func QueryWithProgramCache(cache ProgramCache) QueryOption {
	return func(cfg *queryConfig) {
		cfg.programCache = cache
	}
}

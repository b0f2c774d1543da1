package compile

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"sqlkit/internal/query"
)

// Cache keeps compiled statements by caller chosen keys so that frequently
// issued statements are built and rendered once per dialect.
type Cache struct {
	compiler *Compiler
	entries  *lru.Cache[string, *Statement]
}

// NewCache creates a cache holding at most size statements.
func NewCache(c *Compiler, size int) (*Cache, error) {
	entries, err := lru.New[string, *Statement](size)
	if err != nil {
		return nil, fmt.Errorf("statement cache: %w", err)
	}
	return &Cache{compiler: c, entries: entries}, nil
}

// Get returns the statement for key, compiling the result of build on a
// miss. Failed compilations are not cached.
func (c *Cache) Get(key string, build func() query.Statement) (*Statement, error) {
	if stmt, ok := c.entries.Get(key); ok {
		return stmt, nil
	}
	stmt, err := c.compiler.Compile(build())
	if err != nil {
		return nil, fmt.Errorf("statement %q: %w", key, err)
	}
	c.entries.Add(key, stmt)
	return stmt, nil
}

// Len is the number of cached statements.
func (c *Cache) Len() int { return c.entries.Len() }

// Purge drops all cached statements.
func (c *Cache) Purge() { c.entries.Purge() }

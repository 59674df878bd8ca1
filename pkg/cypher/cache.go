// Package cypher - parse result caching.
//
// Parsing the same query text twice is wasted work: repeated queries are
// the common case for embedded callers that template their Cypher. The
// cached parser memoizes ParsedQuery values by exact query text in a
// bounded LRU. Cache hits return the same immutable ParsedQuery handle.
//
// The cache is the only mutable shared state in a Runner, so it carries its
// own synchronization and is safe under concurrent Parse calls.
package cypher

import (
	"container/list"
	"sync"
)

// DefaultParseCacheSize bounds the parse cache when no configuration
// overrides it.
const DefaultParseCacheSize = 256

// CachedParser memoizes Parser results in an LRU keyed by exact query
// text.
//
// The cache uses a hash map for O(1) lookups and a doubly-linked list for
// LRU ordering, with hit/miss counters for monitoring.
//
// Example:
//
//	parser := NewCachedParser(256)
//	parsed, err := parser.Parse("MATCH (n) RETURN n") // miss, parses
//	again, err := parser.Parse("MATCH (n) RETURN n")  // hit, same handle
type CachedParser struct {
	parser *Parser

	mu      sync.Mutex
	maxSize int
	order   *list.List // front = most recently used
	entries map[string]*list.Element

	hits   uint64
	misses uint64
}

type parseCacheEntry struct {
	key    string
	parsed *ParsedQuery
}

// NewCachedParser creates a cached parser bounded to maxSize entries.
// Sizes below 1 fall back to DefaultParseCacheSize.
func NewCachedParser(maxSize int) *CachedParser {
	if maxSize < 1 {
		maxSize = DefaultParseCacheSize
	}
	return &CachedParser{
		parser:  NewParser(),
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Parse returns the memoized parse of the query text, parsing on first
// sight. Parse failures are not cached; the next call re-parses.
func (c *CachedParser) Parse(text string) (*ParsedQuery, error) {
	c.mu.Lock()
	if elem, ok := c.entries[text]; ok {
		c.order.MoveToFront(elem)
		c.hits++
		parsed := elem.Value.(*parseCacheEntry).parsed
		c.mu.Unlock()
		return parsed, nil
	}
	c.misses++
	c.mu.Unlock()

	// Parse outside the lock; concurrent first sightings of one query may
	// both parse, and the entry stored first is kept while the later parse
	// is discarded.
	parsed, err := c.parser.Parse(text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[text]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*parseCacheEntry).parsed, nil
	}
	elem := c.order.PushFront(&parseCacheEntry{key: text, parsed: parsed})
	c.entries[text] = elem
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*parseCacheEntry).key)
	}
	return parsed, nil
}

// Stats returns cumulative hit and miss counts.
func (c *CachedParser) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached entries.
func (c *CachedParser) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

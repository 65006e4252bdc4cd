// Package cache provides a thread-safe LRU cache for compiled expression
// programs, keyed by expression source text.
//
// The template compiler consults it so that identical expression text
// appearing in many template nodes compiles once; engines built with a shared
// cache also share compiled programs across templates.
package cache

import (
	"container/list"
	"sync"

	"github.com/FirebrandTech/jexlate/pkg/expression"
)

type entry struct {
	source  string
	program *expression.Program
}

// Cache is an LRU cache of compiled programs. Once capacity is reached the
// least recently used entry is evicted. Safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	cap   int
	order *list.List
	byKey map[string]*list.Element
}

// DefaultCapacity is used when New is given a capacity <= 0.
const DefaultCapacity = 256

// New creates an LRU cache holding up to capacity compiled programs.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		cap:   capacity,
		order: list.New(),
		byKey: make(map[string]*list.Element, capacity),
	}
}

// Get returns the program compiled from source, promoting it to most recently
// used, or (nil, false) when absent.
func (c *Cache) Get(source string) (*expression.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.byKey[source]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).program, true
}

// Set stores a program under its source text, evicting the least recently used
// entry if the cache is full.
func (c *Cache) Set(source string, p *expression.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byKey[source]; ok {
		el.Value.(*entry).program = p
		c.order.MoveToFront(el)
		return
	}
	if c.order.Len() >= c.cap {
		if el := c.order.Back(); el != nil {
			c.order.Remove(el)
			delete(c.byKey, el.Value.(*entry).source)
		}
	}
	c.byKey[source] = c.order.PushFront(&entry{source: source, program: p})
}

// GetOrCompile returns the cached program for source, or calls compile, stores
// the result and returns it. Errors are not cached.
func (c *Cache) GetOrCompile(source string, compile func() (*expression.Program, error)) (*expression.Program, error) {
	if p, ok := c.Get(source); ok {
		return p, nil
	}
	p, err := compile()
	if err != nil {
		return nil, err
	}
	c.Set(source, p)
	return p, nil
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

// Capacity returns the maximum number of programs the cache can hold.
func (c *Cache) Capacity() int {
	return c.cap
}

// Clear drops every cached program.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.byKey = make(map[string]*list.Element, c.cap)
}

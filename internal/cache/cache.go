// Package cache maps detector tracking ids to the embedding last computed
// for them, so a face the detector keeps tracking is only embedded once.
package cache

import (
	"container/list"
	"sync"

	"github.com/ayusman/drishti/internal/embedder"
)

// Defaults used when Config leaves a field at zero.
const (
	DefaultCapacity   = 64
	DefaultResetAfter = 30
)

// Config bounds the cache.
type Config struct {
	// Capacity is the maximum number of tracking ids kept. The least
	// recently seen id is evicted first.
	Capacity int
	// ResetAfter clears the cache after this many consecutive ticks with
	// no detected faces. Negative disables the reset.
	ResetAfter int
}

type entry struct {
	id        int
	embedding embedder.Embedding
}

// Cache is a bounded least-recently-seen map from tracking id to embedding.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	capacity   int
	resetAfter int
	order      *list.List
	items      map[int]*list.Element
	emptyTicks int
}

// New creates an empty cache.
func New(config Config) *Cache {
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	if config.ResetAfter == 0 {
		config.ResetAfter = DefaultResetAfter
	}
	return &Cache{
		capacity:   config.Capacity,
		resetAfter: config.ResetAfter,
		order:      list.New(),
		items:      make(map[int]*list.Element),
	}
}

// Get returns a copy of the embedding stored for id and marks it as seen.
func (c *Cache) Get(id int) (embedder.Embedding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).embedding.Clone(), true
}

// Put stores a copy of emb for id, replacing any previous value.
func (c *Cache) Put(id int, emb embedder.Embedding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		el.Value.(*entry).embedding = emb.Clone()
		c.order.MoveToFront(el)
		return
	}

	c.items[id] = c.order.PushFront(&entry{id: id, embedding: emb.Clone()})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).id)
	}
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Cache) reset() {
	c.order.Init()
	c.items = make(map[int]*list.Element)
	c.emptyTicks = 0
}

// Len returns the number of cached ids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// ObserveTick records how many faces a processed tick detected. It returns
// true when the run of empty ticks reached ResetAfter and the cache was
// cleared.
func (c *Cache) ObserveTick(faceCount int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if faceCount > 0 {
		c.emptyTicks = 0
		return false
	}
	if c.resetAfter < 0 {
		return false
	}

	c.emptyTicks++
	if c.emptyTicks < c.resetAfter {
		return false
	}
	c.reset()
	return true
}

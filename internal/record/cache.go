package record

import (
	"container/list"
	"sync"

	"github.com/haneul-ai/recall/internal/model"
)

// lruCache is a bounded in-process read cache sitting in front of the
// Badger-backed store, adapted from the teacher's L1Cache.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	id    string
	value model.Memory
}

func newLRUCache(capacity int) *lruCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &lruCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *lruCache) Get(id string) (model.Memory, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		c.misses++
		return model.Memory{}, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value.Clone(), true
}

func (c *lruCache) Put(m model.Memory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[m.ID]; ok {
		el.Value.(*cacheEntry).value = m.Clone()
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{id: m.ID, value: m.Clone()})
	c.items[m.ID] = el

	for c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *lruCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		c.order.Remove(el)
		delete(c.items, id)
	}
}

func (c *lruCache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.items, el.Value.(*cacheEntry).id)
}

func (c *lruCache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

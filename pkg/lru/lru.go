// Package lru implements a fixed-capacity least-recently-used key set.
//
// Entries live in a contiguous arena and are linked by integer handle rather
// than pointer, with reclaimed slots reused via a free list.
package lru

// nilHandle marks the absence of a neighbour.
const nilHandle = -1

type entry[K comparable] struct {
	key  K
	prev int
	next int
}

// Cache is a set of keys ordered by recency of use.
//
// Cache is not safe for concurrent use.
type Cache[K comparable] struct {
	capacity int

	entries []entry[K]
	index   map[K]int
	free    []int

	// head is the most recently used entry and tail the least recently used.
	head int
	tail int
}

// New returns a cache holding at most capacity keys. A capacity of zero or
// less never evicts.
func New[K comparable](capacity int) *Cache[K] {
	return &Cache[K]{
		capacity: capacity,
		index:    make(map[K]int),
		head:     nilHandle,
		tail:     nilHandle,
	}
}

// Touch moves key to the most recently used position, inserting it if
// absent. Returns true if the key was already present.
//
// Inserting into a full cache evicts the least recently used key.
func (c *Cache[K]) Touch(key K) bool {
	if h, ok := c.index[key]; ok {
		c.detach(h)
		c.pushFront(h)
		return true
	}

	if c.capacity > 0 && len(c.index) >= c.capacity {
		c.evict()
	}

	h := c.alloc(key)
	c.index[key] = h
	c.pushFront(h)
	return false
}

// Len returns the number of keys in the cache.
func (c *Cache[K]) Len() int {
	return len(c.index)
}

func (c *Cache[K]) evict() {
	if c.tail == nilHandle {
		return
	}
	c.release(c.tail)
}

func (c *Cache[K]) release(h int) {
	c.detach(h)
	delete(c.index, c.entries[h].key)

	var zero K
	c.entries[h].key = zero
	c.free = append(c.free, h)
}

func (c *Cache[K]) alloc(key K) int {
	if n := len(c.free); n > 0 {
		h := c.free[n-1]
		c.free = c.free[:n-1]
		c.entries[h] = entry[K]{key: key, prev: nilHandle, next: nilHandle}
		return h
	}

	c.entries = append(c.entries, entry[K]{
		key:  key,
		prev: nilHandle,
		next: nilHandle,
	})
	return len(c.entries) - 1
}

func (c *Cache[K]) detach(h int) {
	e := &c.entries[h]

	if e.prev != nilHandle {
		c.entries[e.prev].next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nilHandle {
		c.entries[e.next].prev = e.prev
	} else {
		c.tail = e.prev
	}

	e.prev = nilHandle
	e.next = nilHandle
}

func (c *Cache[K]) pushFront(h int) {
	e := &c.entries[h]
	e.prev = nilHandle
	e.next = c.head

	if c.head != nilHandle {
		c.entries[c.head].prev = h
	}
	c.head = h

	if c.tail == nilHandle {
		c.tail = h
	}
}

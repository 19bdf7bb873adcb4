package vsfs

// Cache is a fixed-capacity LRU of decoded inodes. Writes go through to the
// volume before the cache is updated, so evicted entries are simply dropped.
// A zero-capacity cache stores nothing.
type Cache struct {
	head      *entry
	tail      *entry
	byIno     map[Ino]*entry
	allocator allocator
}

func NewCache(capacity int) Cache {
	return Cache{
		byIno:     make(map[Ino]*entry, capacity),
		allocator: newAllocator(capacity),
	}
}

func (c *Cache) Len() int { return len(c.byIno) }

func (c *Cache) Push(ino Ino, inode Inode) {
	current, exists := c.byIno[ino]
	if exists {
		c.unlink(current)
	} else {
		current = c.allocator.alloc()
		if current == nil {
			// at capacity: recycle the least recently used entry
			if c.tail == nil {
				return
			}
			current = c.tail
			c.unlink(current)
			delete(c.byIno, current.ino)
		}
		c.byIno[ino] = current
	}
	current.ino = ino
	current.value = inode
	c.pushFront(current)
}

func (c *Cache) Get(ino Ino) (Inode, bool) {
	e := c.byIno[ino]
	if e == nil {
		return Inode{}, false
	}
	c.unlink(e)
	c.pushFront(e)
	return e.value, true
}

func (c *Cache) Remove(ino Ino) (Inode, bool) {
	e := c.byIno[ino]
	if e == nil {
		return Inode{}, false
	}
	value := e.value
	c.unlink(e)
	delete(c.byIno, ino)
	c.allocator.release(e)
	return value, true
}

func (c *Cache) pushFront(e *entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.next = nil
	e.prev = nil
}

type allocator struct {
	length int
	pool   []entry
	free   []*entry
}

func newAllocator(capacity int) allocator {
	return allocator{pool: make([]entry, capacity)}
}

func (a *allocator) alloc() *entry {
	if n := len(a.free); n > 0 {
		e := a.free[n-1]
		a.free = a.free[:n-1]
		return e
	}
	if a.length >= len(a.pool) {
		return nil
	}
	ret := &a.pool[a.length]
	a.length++
	return ret
}

func (a *allocator) release(e *entry) {
	*e = entry{}
	a.free = append(a.free, e)
}

type entry struct {
	next  *entry
	prev  *entry
	ino   Ino
	value Inode
}

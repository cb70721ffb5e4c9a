package locate

import (
	"container/list"
	"sync"
	"time"
)

// lru is a small TTL cache keyed by geohash cell.
type lru struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
	now  func() time.Time
}

type entry struct {
	k   string
	v   Result
	exp time.Time
}

func newLRU(capacity int, ttl time.Duration) *lru {
	if capacity < 1 {
		capacity = 1
	}
	return &lru{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[string]*list.Element), now: time.Now}
}

func (c *lru) get(k string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[k]
	if !ok {
		return Result{}, false
	}
	it := e.Value.(entry)
	if c.now().After(it.exp) {
		c.lst.Remove(e)
		delete(c.dict, k)
		return Result{}, false
	}
	c.lst.MoveToFront(e)
	return it.v, true
}

func (c *lru) set(k string, v Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := entry{k: k, v: v, exp: c.now().Add(c.ttl)}
	if e, ok := c.dict[k]; ok {
		e.Value = it
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(it)
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(entry).k)
		c.lst.Remove(back)
	}
}

func (c *lru) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

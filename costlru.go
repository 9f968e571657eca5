package assetcache

import (
	"iter"
	"sync"
)

// noIndex is the sentinel used in place of Option<usize> throughout this
// file: "no slot", "no previous/next", "nothing on the free list".
const noIndex = -1

// slot is one entry in the CostBasedLru's backing array. A slot is either
// occupied (part of the MRU doubly-linked list, indexed by key) or empty
// (part of the singly-linked free list threaded through nextEmpty). The
// two states share one struct rather than a tagged union so that slots
// can be reused in place without reallocating.
type slot[K comparable, V any] struct {
	occupied bool

	key    K
	handle *Shared[V]
	cost   uint64
	prev   int
	next   int

	nextEmpty int
}

// CostBasedLru is a mapping from K to a Shared[V] handle, each with an
// associated cost, that evicts least-recently-used entries until the sum
// of occupied costs no longer exceeds maxCost. With a uniform cost of 1
// per entry it behaves exactly like a classical count-bounded LRU.
//
// The MRU list and free list both live in slot indices rather than
// pointers: get/insert/remove/eviction are all index arithmetic, the list
// needs no per-entry node allocation beyond the slice growth itself (each
// entry's Shared handle is still allocated on Insert), and the hash index
// can point at a stable integer instead of a node pointer.
type CostBasedLru[K comparable, V any] struct {
	mu sync.Mutex

	slots []slot[K, V]
	index map[K]int

	maxCost     uint64
	currentCost uint64

	head      int
	tail      int
	emptyHead int
}

// NewCostBasedLru constructs an empty cache bounded at maxCost.
func NewCostBasedLru[K comparable, V any](maxCost uint64) *CostBasedLru[K, V] {
	return &CostBasedLru[K, V]{
		index:     make(map[K]int),
		maxCost:   maxCost,
		head:      noIndex,
		tail:      noIndex,
		emptyHead: noIndex,
	}
}

// Get looks up key, promoting it to most-recently-used on a hit. The
// returned handle is an independent clone the caller must Close.
func (c *CostBasedLru[K, V]) Get(key K) (*Shared[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.makeMostRecent(i)
	return c.slots[i].handle.Clone(), true
}

// Insert adds or replaces key with value at the given cost, then runs
// eviction until current cost is at or below maxCost. If key was already
// present, its prior handle is returned with ownership transferred to the
// caller (the LRU no longer holds a reference to it); hadPrior reports
// whether such an entry existed.
func (c *CostBasedLru[K, V]) Insert(key K, value V, cost uint64) (prior *Shared[V], hadPrior bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prior, hadPrior = c.removeLocked(key)

	i := c.findEmpty()
	c.slots[i] = slot[K, V]{
		occupied: true,
		key:      key,
		handle:   newShared(value),
		cost:     cost,
		prev:     noIndex,
		next:     noIndex,
	}
	c.index[key] = i
	c.linkAtHead(i)
	c.currentCost += cost

	c.evict()
	return prior, hadPrior
}

// Remove deletes key, returning its handle with ownership transferred to
// the caller. The caller is responsible for Close-ing it (or keeping it
// alive) once it no longer needs it here.
func (c *CostBasedLru[K, V]) Remove(key K) (*Shared[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(key)
}

// Len reports the number of occupied slots.
func (c *CostBasedLru[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// CurrentCost reports the sum of costs over occupied slots.
func (c *CostBasedLru[K, V]) CurrentCost() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentCost
}

// MaxCost reports the configured capacity.
func (c *CostBasedLru[K, V]) MaxCost() uint64 {
	return c.maxCost
}

// Iter yields (key, handle) pairs in MRU-to-LRU order without promoting
// any of them. Each yielded handle is an independent clone the consumer
// must Close.
func (c *CostBasedLru[K, V]) Iter() iter.Seq2[K, *Shared[V]] {
	return func(yield func(K, *Shared[V]) bool) {
		c.mu.Lock()
		defer c.mu.Unlock()

		for i := c.head; i != noIndex; {
			s := c.slots[i]
			if !yield(s.key, s.handle.Clone()) {
				return
			}
			i = s.next
		}
	}
}

// removeLocked is the shared implementation behind Remove and Insert's
// replace-on-existing-key path. Callers must hold c.mu.
func (c *CostBasedLru[K, V]) removeLocked(key K) (*Shared[V], bool) {
	i, ok := c.index[key]
	if !ok {
		return nil, false
	}
	delete(c.index, key)
	s := c.slots[i]
	c.unlinkIndex(i)

	invariant(c.currentCost >= s.cost, "cost underflow removing key")
	c.currentCost -= s.cost

	c.slots[i] = slot[K, V]{nextEmpty: c.emptyHead}
	c.emptyHead = i

	return s.handle, true
}

// evict removes tail entries, one at a time, until current cost is at or
// below maxCost or the cache is empty. An entry whose own cost exceeds
// maxCost is itself subject to eviction by this loop.
func (c *CostBasedLru[K, V]) evict() {
	for c.currentCost > c.maxCost && c.tail != noIndex {
		c.evictTail()
	}
}

func (c *CostBasedLru[K, V]) evictTail() {
	i := c.tail
	invariant(i != noIndex, "evictTail called on an empty cache")
	s := c.slots[i]

	delete(c.index, s.key)
	c.unlinkIndex(i)

	invariant(c.currentCost >= s.cost, "cost underflow during eviction")
	c.currentCost -= s.cost

	c.slots[i] = slot[K, V]{nextEmpty: c.emptyHead}
	c.emptyHead = i

	// This slot's own reference is released here; the value survives
	// only if some other Shared clone (held externally, or by a decode
	// that is still handing its result to its callers) keeps it alive.
	s.handle.Close()
}

// findEmpty returns an index ready to be overwritten with a fresh
// occupied slot, taking from the free list before growing the backing
// slice.
func (c *CostBasedLru[K, V]) findEmpty() int {
	if c.emptyHead != noIndex {
		i := c.emptyHead
		c.emptyHead = c.slots[i].nextEmpty
		return i
	}
	c.slots = append(c.slots, slot[K, V]{})
	return len(c.slots) - 1
}

// unlinkIndex removes an occupied slot from the MRU list without
// touching the index or the free list. It is the shared precursor to
// both removal and promotion-to-head.
func (c *CostBasedLru[K, V]) unlinkIndex(i int) {
	s := c.slots[i]
	if s.prev != noIndex {
		c.slots[s.prev].next = s.next
	} else {
		invariant(c.head == i, "unlinking non-head slot with no prev")
		c.head = s.next
	}
	if s.next != noIndex {
		c.slots[s.next].prev = s.prev
	} else {
		invariant(c.tail == i, "unlinking non-tail slot with no next")
		c.tail = s.prev
	}
}

// linkAtHead threads a freshly-populated occupied slot in as the new MRU
// head.
func (c *CostBasedLru[K, V]) linkAtHead(i int) {
	c.slots[i].prev = noIndex
	c.slots[i].next = c.head
	if c.head != noIndex {
		c.slots[c.head].prev = i
	}
	c.head = i
	if c.tail == noIndex {
		c.tail = i
	}
}

// makeMostRecent unlinks an occupied slot and relinks it at the head,
// unconditionally, even if it is already the head.
func (c *CostBasedLru[K, V]) makeMostRecent(i int) {
	c.unlinkIndex(i)
	c.linkAtHead(i)
}

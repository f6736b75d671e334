package formula

// CacheState is the lifecycle state of a cached cell
type CacheState uint8

const (
	// Uncomputed cells have never been evaluated (or were deleted)
	Uncomputed CacheState = iota
	// Cached cells hold a value that is returned without re-evaluation
	Cached
	// Invalidated cells keep their last value but are recomputed on the
	// next read
	Invalidated
)

func (s CacheState) String() string {
	switch s {
	case Uncomputed:
		return "uncomputed"
	case Cached:
		return "cached"
	case Invalidated:
		return "invalidated"
	}
	return "unknown"
}

type cacheEntry struct {
	value Value
	state CacheState
}

// EvaluationCache memoizes evaluated cell values. entries are created
// lazily on first evaluation and only change state through explicit
// calls; reading never invalidates anything.
type EvaluationCache struct {
	entries map[CellAddress]*cacheEntry
	hits    int
	misses  int
}

// NewEvaluationCache creates an empty cache
func NewEvaluationCache() *EvaluationCache {
	return &EvaluationCache{entries: make(map[CellAddress]*cacheEntry)}
}

// Get returns the cached value of addr when the entry is valid
func (c *EvaluationCache) Get(addr CellAddress) (Value, bool) {
	entry, exists := c.entries[addr]
	if !exists || entry.state != Cached {
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.value, true
}

// Set stores a freshly computed value
func (c *EvaluationCache) Set(addr CellAddress, v Value) {
	entry, exists := c.entries[addr]
	if !exists {
		entry = &cacheEntry{}
		c.entries[addr] = entry
	}
	entry.value = v
	entry.state = Cached
}

// Invalidate marks the entry of addr stale. returns false when there was
// nothing cached.
func (c *EvaluationCache) Invalidate(addr CellAddress) bool {
	entry, exists := c.entries[addr]
	if !exists || entry.state != Cached {
		return false
	}
	entry.state = Invalidated
	return true
}

// InvalidateAll marks every entry stale
func (c *EvaluationCache) InvalidateAll() int {
	count := 0
	for _, entry := range c.entries {
		if entry.state == Cached {
			entry.state = Invalidated
			count++
		}
	}
	return count
}

// Remove drops the entry of addr, returning it to Uncomputed
func (c *EvaluationCache) Remove(addr CellAddress) {
	delete(c.entries, addr)
}

// State returns the lifecycle state of addr
func (c *EvaluationCache) State(addr CellAddress) CacheState {
	entry, exists := c.entries[addr]
	if !exists {
		return Uncomputed
	}
	return entry.state
}

// Len returns the number of entries, valid or not
func (c *EvaluationCache) Len() int {
	return len(c.entries)
}

// Stats returns the hit and miss counters
func (c *EvaluationCache) Stats() (hits, misses int) {
	return c.hits, c.misses
}

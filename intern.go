package formula

// InternTable assigns stable IDs to keys with reference counting. IDs
// start at 1; 0 is reserved for "none".
type InternTable[K comparable] struct {
	ids       map[K]uint32
	keys      map[uint32]K
	refCounts map[uint32]int // reference count for each ID
	nextID    uint32
}

// NewInternTable creates an empty table
func NewInternTable[K comparable]() *InternTable[K] {
	return &InternTable[K]{
		ids:       make(map[K]uint32),
		keys:      make(map[uint32]K),
		refCounts: make(map[uint32]int),
		nextID:    1,
	}
}

// Intern adds key to the table or increments its reference count if it
// already exists. returns the ID of the key.
func (t *InternTable[K]) Intern(key K) uint32 {
	if id, exists := t.ids[key]; exists {
		t.refCounts[id]++
		return id
	}

	id := t.nextID
	t.ids[key] = id
	t.keys[id] = key
	t.refCounts[id] = 1
	t.nextID++
	return id
}

// Lookup returns the ID of key without touching its reference count
func (t *InternTable[K]) Lookup(key K) (uint32, bool) {
	id, exists := t.ids[key]
	return id, exists
}

// Key returns the key for id
func (t *InternTable[K]) Key(id uint32) (K, bool) {
	key, exists := t.keys[id]
	return key, exists
}

// AddReference increments the reference count for id
func (t *InternTable[K]) AddReference(id uint32) bool {
	if _, exists := t.keys[id]; !exists {
		return false
	}
	t.refCounts[id]++
	return true
}

// Release decrements the reference count for id. when the count reaches
// 0 the key is removed; returns true in that case.
func (t *InternTable[K]) Release(id uint32) bool {
	key, exists := t.keys[id]
	if !exists {
		return false
	}

	t.refCounts[id]--
	if t.refCounts[id] <= 0 {
		delete(t.ids, key)
		delete(t.keys, id)
		delete(t.refCounts, id)
		return true
	}
	return false
}

// Rekey moves id to a new key, keeping the ID and its reference count.
// fails when newKey is already taken.
func (t *InternTable[K]) Rekey(id uint32, newKey K) bool {
	oldKey, exists := t.keys[id]
	if !exists {
		return false
	}
	if _, taken := t.ids[newKey]; taken {
		return false
	}
	delete(t.ids, oldKey)
	t.ids[newKey] = id
	t.keys[id] = newKey
	return true
}

// ReferenceCount returns the reference count for id
func (t *InternTable[K]) ReferenceCount(id uint32) int {
	return t.refCounts[id]
}

// Count returns the number of keys in the table
func (t *InternTable[K]) Count() int {
	return len(t.ids)
}

// TotalReferences returns the sum of all reference counts
func (t *InternTable[K]) TotalReferences() int {
	total := 0
	for _, count := range t.refCounts {
		total += count
	}
	return total
}

// Clear removes everything from the table
func (t *InternTable[K]) Clear() {
	t.ids = make(map[K]uint32)
	t.keys = make(map[uint32]K)
	t.refCounts = make(map[uint32]int)
	t.nextID = 1
}

package core

import "container/list"

// IdempotencyChecker deduplicates transaction submissions in front of the
// core. It is transport-level protection only; the authoritative anti-replay
// mechanism is the order fulfillment ledger inside the carried state.
// Not thread-safe — only accessed from the single-threaded batch executor.
type IdempotencyChecker struct {
	capacity  int
	cache     map[string]*list.Element
	lruList   *list.List
	evictions int64
}

type lruEntry struct {
	key string
}

func NewIdempotencyChecker(capacity int) *IdempotencyChecker {
	return &IdempotencyChecker{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// IsDuplicate checks whether key was already processed, promoting it.
func (ic *IdempotencyChecker) IsDuplicate(key string) bool {
	elem, exists := ic.cache[key]
	if exists {
		ic.lruList.MoveToFront(elem)
		return true
	}
	return false
}

// MarkProcessed records key after successful processing.
func (ic *IdempotencyChecker) MarkProcessed(key string) {
	if elem, exists := ic.cache[key]; exists {
		ic.lruList.MoveToFront(elem)
		return
	}
	elem := ic.lruList.PushFront(&lruEntry{key: key})
	ic.cache[key] = elem
	if ic.lruList.Len() > ic.capacity {
		ic.evictOldest()
	}
}

// Warm loads keys recovered from a snapshot into the cache.
func (ic *IdempotencyChecker) Warm(keys []string) {
	for _, key := range keys {
		ic.MarkProcessed(key)
	}
}

// Keys returns every tracked key, most recent first. Captured into
// snapshots so a warm restart can re-warm the cache.
func (ic *IdempotencyChecker) Keys() []string {
	keys := make([]string, 0, ic.lruList.Len())
	for elem := ic.lruList.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*lruEntry).key)
	}
	return keys
}

// Size returns the current number of tracked keys.
func (ic *IdempotencyChecker) Size() int {
	return ic.lruList.Len()
}

// Evictions returns the total evictions, for metrics.
func (ic *IdempotencyChecker) Evictions() int64 {
	return ic.evictions
}

func (ic *IdempotencyChecker) evictOldest() {
	elem := ic.lruList.Back()
	if elem == nil {
		return
	}
	ic.lruList.Remove(elem)
	delete(ic.cache, elem.Value.(*lruEntry).key)
	ic.evictions++
}

package ecs

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// QueryDescriptor is the normalized, order-independent key identifying a
// query's shape: the required (With) and excluded (Without) component sets.
// Descriptors built from the same sets in any order compare equal and hash
// identically, so they can be used as map keys directly.
type QueryDescriptor struct {
	with    componentMask
	without componentMask
}

// NewQueryDescriptor builds a descriptor from required and excluded component
// types. Unknown types are registered on the fly so a query can exist before
// the first entity of its shape does.
func NewQueryDescriptor(r *ComponentRegistry, with []reflect.Type, without []reflect.Type) QueryDescriptor {
	var d QueryDescriptor
	for _, t := range with {
		d.with = d.with.with(r.GetOrRegister(t, false).ID)
	}
	for _, t := range without {
		d.without = d.without.with(r.GetOrRegister(t, false).ID)
	}
	return d
}

// QueryDescription is the richer read/write/with/without form used by system
// declarations; read, write and with all contribute required components.
type QueryDescription struct {
	Read    []reflect.Type
	Write   []reflect.Type
	With    []reflect.Type
	Without []reflect.Type
}

// FromDescription derives the cache-key descriptor from a description,
// merging Read, Write and With into the required set.
func FromDescription(r *ComponentRegistry, desc QueryDescription) QueryDescriptor {
	with := make([]reflect.Type, 0, len(desc.Read)+len(desc.Write)+len(desc.With))
	with = append(with, desc.Read...)
	with = append(with, desc.Write...)
	with = append(with, desc.With...)
	return NewQueryDescriptor(r, with, desc.Without)
}

// Matches reports whether the archetype's component set is a superset of
// With and disjoint from Without.
func (d QueryDescriptor) Matches(a *Archetype) bool {
	return d.matchesMask(a.mask)
}

func (d QueryDescriptor) matchesMask(mask componentMask) bool {
	return mask.contains(d.with) && mask.disjoint(d.without)
}

// QueryManager caches, per descriptor, the list of matching archetypes.
// Entries are built once on first request and then maintained incrementally:
// each newly created archetype is appended to every cached entry it matches,
// so cached lists are never stale and never require a full rescan.
//
// GetMatchingArchetypes is safe to call from many goroutines while archetype
// creation proceeds concurrently. Returned slices are append-only snapshots:
// iterating a previously returned list is stable even as new archetypes
// arrive afterwards.
type QueryManager struct {
	mu         sync.RWMutex
	archetypes []*Archetype // every archetype ever created, creation order
	cache      map[QueryDescriptor][]*Archetype
	hits       atomic.Int64
	misses     atomic.Int64
}

func newQueryManager() *QueryManager {
	return &QueryManager{
		cache: make(map[QueryDescriptor][]*Archetype),
	}
}

// GetMatchingArchetypes returns every archetype matching the descriptor. On a
// cache miss all known archetypes are scanned once and the result is cached;
// subsequent calls return the cached list and count as hits.
func (q *QueryManager) GetMatchingArchetypes(d QueryDescriptor) []*Archetype {
	q.mu.RLock()
	matches, ok := q.cache[d]
	q.mu.RUnlock()
	if ok {
		q.hits.Add(1)
		return matches
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	// Another goroutine may have populated the entry between the two locks.
	if matches, ok := q.cache[d]; ok {
		q.hits.Add(1)
		return matches
	}
	matches = make([]*Archetype, 0, 8)
	for _, arch := range q.archetypes {
		if d.matchesMask(arch.mask) {
			matches = append(matches, arch)
		}
	}
	q.cache[d] = matches
	q.misses.Add(1)
	return matches
}

// onArchetypeCreated records the archetype and pushes it into every cached
// entry it matches. Called exactly once per archetype, under the archetype
// manager's creation lock, which makes creation linearizable with respect to
// query reads. Hit/miss statistics are not affected.
func (q *QueryManager) onArchetypeCreated(a *Archetype) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.archetypes = append(q.archetypes, a)
	for d, matches := range q.cache {
		if d.matchesMask(a.mask) {
			q.cache[d] = append(matches, a)
		}
	}
}

// reset drops both the cached entries and the archetype feed. Used when the
// archetype manager clears all archetypes; statistics persist.
func (q *QueryManager) reset() {
	q.mu.Lock()
	q.archetypes = nil
	q.cache = make(map[QueryDescriptor][]*Archetype)
	q.mu.Unlock()
}

// InvalidateCache drops every cached descriptor entry. Hit/miss counters are
// unaffected; use ResetStatistics for those.
func (q *QueryManager) InvalidateCache() {
	q.mu.Lock()
	q.cache = make(map[QueryDescriptor][]*Archetype)
	q.mu.Unlock()
}

// ResetStatistics zeroes the hit/miss counters without touching cached
// entries.
func (q *QueryManager) ResetStatistics() {
	q.hits.Store(0)
	q.misses.Store(0)
}

// CacheHits reports how many queries were answered from the cache.
func (q *QueryManager) CacheHits() int64 { return q.hits.Load() }

// CacheMisses reports how many queries required a scan.
func (q *QueryManager) CacheMisses() int64 { return q.misses.Load() }

// CachedQueryCount reports the number of live cache entries.
func (q *QueryManager) CachedQueryCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.cache)
}

// HitRate returns the cache hit percentage, 0 when no queries were issued.
func (q *QueryManager) HitRate() float64 {
	hits := q.hits.Load()
	total := hits + q.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

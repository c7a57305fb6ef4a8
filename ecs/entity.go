package ecs

// Entity is a generational handle. The ID is recycled after a despawn; the
// version stored for that ID is incremented, so stale handles compare unequal
// and are treated as dead.
type Entity struct {
	ID      uint32
	Version uint32
}

// NilEntity is the zero handle; it is never alive.
var NilEntity = Entity{}

// entityAllocator is the world's entity lifetime authority: a dense version
// table plus a free-list of recycled IDs.
type entityAllocator struct {
	versions []uint32
	alive    []bool
	freeIDs  []uint32
	count    int
}

func newEntityAllocator(capacity int) *entityAllocator {
	if capacity < 0 {
		capacity = 0
	}
	return &entityAllocator{
		versions: make([]uint32, 0, capacity),
		alive:    make([]bool, 0, capacity),
	}
}

// Alloc hands out a live handle, reusing a recycled ID when one is available.
func (a *entityAllocator) Alloc() Entity {
	var id uint32
	if n := len(a.freeIDs); n > 0 {
		id = a.freeIDs[n-1]
		a.freeIDs = a.freeIDs[:n-1]
	} else {
		id = uint32(len(a.versions))
		a.versions = append(a.versions, 1)
		a.alive = append(a.alive, false)
	}
	a.alive[id] = true
	a.count++
	return Entity{ID: id, Version: a.versions[id]}
}

// Free kills the handle and recycles its ID. Returns false for handles that
// are already dead or stale.
func (a *entityAllocator) Free(e Entity) bool {
	if !a.IsAlive(e) {
		return false
	}
	a.versions[e.ID]++
	a.alive[e.ID] = false
	a.freeIDs = append(a.freeIDs, e.ID)
	a.count--
	return true
}

// IsAlive reports whether the handle still refers to a live entity.
func (a *entityAllocator) IsAlive(e Entity) bool {
	return int(e.ID) < len(a.versions) && a.alive[e.ID] && a.versions[e.ID] == e.Version
}

// Count reports the number of live entities.
func (a *entityAllocator) Count() int {
	return a.count
}

package ecs

import (
	"reflect"
	"unsafe"
)

// Archetype stores every entity sharing one exact component-type set, as
// parallel columns across fixed-capacity chunks. Tag components are part of
// the membership mask but have no column.
//
// Entities occupy dense slots; removal swaps the last entity into the freed
// slot, so slot order is not stable across removals.
type Archetype struct {
	id    uint32
	mask  componentMask
	infos []*ComponentInfo // all members, ascending ComponentID
	store []*ComponentInfo // non-tag members, column layout
	types []reflect.Type

	// columnOf maps ComponentID to a column index, -1 when the component is
	// absent or a tag.
	columnOf [maxComponentTypes]int16

	chunks []*chunk
	pool   *chunkPool
	size   int
}

func newArchetype(id uint32, infos []*ComponentInfo, pool *chunkPool) *Archetype {
	a := &Archetype{
		id:    id,
		infos: infos,
		types: make([]reflect.Type, len(infos)),
		pool:  pool,
	}
	for i := range a.columnOf {
		a.columnOf[i] = -1
	}
	for i, info := range infos {
		a.mask = a.mask.with(info.ID)
		a.types[i] = info.Type
		if !info.IsTag {
			a.columnOf[info.ID] = int16(len(a.store))
			a.store = append(a.store, info)
		}
	}
	return a
}

// ID returns the archetype's creation-ordered identifier.
func (a *Archetype) ID() uint32 { return a.id }

// Count reports the number of entities stored.
func (a *Archetype) Count() int { return a.size }

// Has reports membership of a component by ID, tags included.
func (a *Archetype) Has(id ComponentID) bool { return a.mask.has(id) }

// HasType reports membership of a component by Go type.
func (a *Archetype) HasType(t reflect.Type) bool {
	for _, typ := range a.types {
		if typ == t {
			return true
		}
	}
	return false
}

// ComponentTypes returns the member types in ComponentID order. The slice is
// shared; callers must not modify it.
func (a *Archetype) ComponentTypes() []reflect.Type { return a.types }

// componentInfos returns all member infos in ComponentID order.
func (a *Archetype) componentInfos() []*ComponentInfo { return a.infos }

func (a *Archetype) locate(slot int) (*chunk, int) {
	capacity := a.pool.capacity
	return a.chunks[slot/capacity], slot % capacity
}

// EntityAt returns the handle stored at the given slot.
func (a *Archetype) EntityAt(slot int) Entity {
	ch, row := a.locate(slot)
	return ch.entities[row]
}

// addEntity appends the entity to the dense storage, acquiring a chunk from
// the pool when the current one is full, and returns the new slot.
func (a *Archetype) addEntity(e Entity) int {
	if len(a.chunks) == 0 || a.chunks[len(a.chunks)-1].full() {
		a.chunks = append(a.chunks, a.pool.acquire(a.mask, a.store))
	}
	last := a.chunks[len(a.chunks)-1]
	row := last.push(e)
	a.size++
	return (len(a.chunks)-1)*a.pool.capacity + row
}

// removeEntity swap-removes the slot. When another entity was moved into the
// freed slot its handle is returned so the caller can fix its index entry in
// the same critical section.
func (a *Archetype) removeEntity(slot int) (moved Entity, swapped bool) {
	lastSlot := a.size - 1
	lastChunk, lastRow := a.locate(lastSlot)

	if slot != lastSlot {
		ch, row := a.locate(slot)
		ch.entities[row] = lastChunk.entities[lastRow]
		for i := range ch.columns {
			ch.columns[i].value(row).Set(lastChunk.columns[i].value(lastRow))
		}
		moved = ch.entities[row]
		swapped = true
	}

	lastChunk.zeroRow(lastRow)
	lastChunk.popLast()
	a.size--
	return moved, swapped
}

// componentPtr returns a pointer into column storage for the slot, or nil for
// absent components and tags.
func (a *Archetype) componentPtr(slot int, id ComponentID) unsafe.Pointer {
	col := a.columnOf[id]
	if col < 0 {
		return nil
	}
	ch, row := a.locate(slot)
	return ch.columns[col].ptr(row)
}

// setBoxed writes a type-erased component value into the slot. Values may be
// passed directly or behind a pointer. Tags are a no-op.
func (a *Archetype) setBoxed(slot int, id ComponentID, component any) {
	col := a.columnOf[id]
	if col < 0 {
		return
	}
	ch, row := a.locate(slot)
	v := reflect.ValueOf(component)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	ch.columns[col].value(row).Set(v)
}

// boxed returns a copy of the slot's component value, or nil for tags and
// absent components.
func (a *Archetype) boxed(slot int, id ComponentID) any {
	col := a.columnOf[id]
	if col < 0 {
		return nil
	}
	ch, row := a.locate(slot)
	return ch.columns[col].value(row).Interface()
}

// copyCommonTo copies every column value both archetypes store from srcSlot
// into dstSlot of dst. Used during entity migration.
func (a *Archetype) copyCommonTo(srcSlot int, dst *Archetype, dstSlot int) {
	srcChunk, srcRow := a.locate(srcSlot)
	dstChunk, dstRow := dst.locate(dstSlot)
	for i, info := range a.store {
		col := dst.columnOf[info.ID]
		if col < 0 {
			continue
		}
		dstChunk.columns[col].value(dstRow).Set(srcChunk.columns[i].value(srcRow))
	}
}

// clear releases every chunk back to the pool and empties the archetype. The
// archetype itself stays registered and usable.
func (a *Archetype) clear() {
	for _, ch := range a.chunks {
		a.pool.release(a.mask, ch)
	}
	a.chunks = nil
	a.size = 0
}

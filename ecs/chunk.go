package ecs

import (
	"reflect"
	"sync"
	"unsafe"
)

// defaultChunkCapacity is the number of entity rows per chunk. Archetypes
// grow by whole chunks; there is no per-chunk growth.
const defaultChunkCapacity = 256

// column is one component's contiguous storage within a chunk. The backing
// array is allocated through reflect so the GC scans component values, while
// row access stays pointer arithmetic.
type column struct {
	info *ComponentInfo
	base unsafe.Pointer
	ref  reflect.Value // *[capacity]T, keeps the array reachable
}

func newColumn(info *ComponentInfo, capacity int) column {
	arr := reflect.New(reflect.ArrayOf(capacity, info.Type))
	return column{
		info: info,
		base: arr.UnsafePointer(),
		ref:  arr,
	}
}

func (c *column) ptr(row int) unsafe.Pointer {
	return unsafe.Add(c.base, uintptr(row)*c.info.Size)
}

// value returns an addressable reflect.Value of the row, used on the boxed
// and migration paths only.
func (c *column) value(row int) reflect.Value {
	return reflect.NewAt(c.info.Type, c.ptr(row)).Elem()
}

func (c *column) zero(row int) {
	c.value(row).SetZero()
}

// chunk holds fixed-capacity parallel columns plus the entity handle column.
type chunk struct {
	entities []Entity
	columns  []column
	capacity int
}

func newChunk(infos []*ComponentInfo, capacity int) *chunk {
	ch := &chunk{
		entities: make([]Entity, 0, capacity),
		columns:  make([]column, len(infos)),
		capacity: capacity,
	}
	for i, info := range infos {
		ch.columns[i] = newColumn(info, capacity)
	}
	return ch
}

func (ch *chunk) len() int   { return len(ch.entities) }
func (ch *chunk) full() bool { return len(ch.entities) == ch.capacity }

// push appends an entity row (column values stay zero until set) and returns
// its row index within the chunk.
func (ch *chunk) push(e Entity) int {
	ch.entities = append(ch.entities, e)
	return len(ch.entities) - 1
}

// popLast drops the last row after its contents have been moved or zeroed.
func (ch *chunk) popLast() {
	ch.entities = ch.entities[:len(ch.entities)-1]
}

// zeroRow clears a row's component values so vacated slots do not pin heap
// objects.
func (ch *chunk) zeroRow(row int) {
	for i := range ch.columns {
		ch.columns[i].zero(row)
	}
}

// reset empties the chunk for pooling.
func (ch *chunk) reset() {
	for row := 0; row < len(ch.entities); row++ {
		ch.zeroRow(row)
	}
	ch.entities = ch.entities[:0]
}

// chunkPool reclaims chunks from cleared or disposed archetypes, keyed by the
// archetype's component mask, so recreating a shape does not reallocate its
// columns. Acquire never fails: an empty bucket just allocates.
type chunkPool struct {
	mu       sync.Mutex
	free     map[componentMask][]*chunk
	capacity int
}

func newChunkPool(capacity int) *chunkPool {
	if capacity <= 0 {
		capacity = defaultChunkCapacity
	}
	return &chunkPool{
		free:     make(map[componentMask][]*chunk),
		capacity: capacity,
	}
}

func (p *chunkPool) acquire(shape componentMask, infos []*ComponentInfo) *chunk {
	p.mu.Lock()
	bucket := p.free[shape]
	if n := len(bucket); n > 0 {
		ch := bucket[n-1]
		p.free[shape] = bucket[:n-1]
		p.mu.Unlock()
		return ch
	}
	p.mu.Unlock()
	return newChunk(infos, p.capacity)
}

func (p *chunkPool) release(shape componentMask, ch *chunk) {
	ch.reset()
	p.mu.Lock()
	p.free[shape] = append(p.free[shape], ch)
	p.mu.Unlock()
}

// pooledCount reports how many chunks are parked for the given shape.
func (p *chunkPool) pooledCount(shape componentMask) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free[shape])
}

// drain discards all pooled chunks.
func (p *chunkPool) drain() {
	p.mu.Lock()
	p.free = make(map[componentMask][]*chunk)
	p.mu.Unlock()
}

package ecs

import "math/bits"

const (
	maskWords   = 4
	bitsPerWord = 64
)

// componentMask is a fixed-width bitset over ComponentIDs. Archetypes,
// chunk-pool shapes and query descriptors are all keyed by it; being a
// comparable array it can serve as a map key directly.
type componentMask [maskWords]uint64

func (m componentMask) has(id ComponentID) bool {
	if id < 0 || int(id) >= maskWords*bitsPerWord {
		return false
	}
	return m[int(id)/bitsPerWord]&(1<<(uint(id)%bitsPerWord)) != 0
}

func (m componentMask) with(id ComponentID) componentMask {
	m[int(id)/bitsPerWord] |= 1 << (uint(id) % bitsPerWord)
	return m
}

func (m componentMask) without(id ComponentID) componentMask {
	m[int(id)/bitsPerWord] &^= 1 << (uint(id) % bitsPerWord)
	return m
}

// contains reports whether every bit of sub is set in m.
func (m componentMask) contains(sub componentMask) bool {
	return m[0]&sub[0] == sub[0] &&
		m[1]&sub[1] == sub[1] &&
		m[2]&sub[2] == sub[2] &&
		m[3]&sub[3] == sub[3]
}

// disjoint reports whether m and other share no bits.
func (m componentMask) disjoint(other componentMask) bool {
	return m[0]&other[0] == 0 &&
		m[1]&other[1] == 0 &&
		m[2]&other[2] == 0 &&
		m[3]&other[3] == 0
}

func (m componentMask) count() int {
	total := 0
	for _, w := range m {
		total += bits.OnesCount64(w)
	}
	return total
}

// ids appends the set ComponentIDs in ascending order.
func (m componentMask) ids(buf []ComponentID) []ComponentID {
	for w, word := range m {
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			buf = append(buf, ComponentID(w*bitsPerWord+bit))
			word &= word - 1
		}
	}
	return buf
}

func maskOf(ids ...ComponentID) componentMask {
	var m componentMask
	for _, id := range ids {
		m = m.with(id)
	}
	return m
}

package ogtree

import (
	"fmt"
)

// memo is the table of values stored by PUT-family opcodes.
//
// Slots hold values as is: for containers and placeholders this is a pointer,
// so later APPEND/SETITEM/BUILD on the stored value are seen by GET.
type memo struct {
	slots []Value // nil slot = never written
	max   int     // max len(slots); < 0 = unlimited
}

// put stores v at index i growing the table as needed.
func (m *memo) put(i uint64, v Value) error {
	if m.max >= 0 && i >= uint64(m.max) {
		return limitf("memo index %d ≥ %d", i, m.max)
	}
	if i >= uint64(len(m.slots)) {
		grow := make([]Value, i+1-uint64(len(m.slots)))
		m.slots = append(m.slots, grow...)
	}
	m.slots[i] = v
	return nil
}

// get returns value stored at index i.
func (m *memo) get(i uint64) (Value, error) {
	if i >= uint64(len(m.slots)) || m.slots[i] == nil {
		return nil, fmt.Errorf("%w %d", ErrMemoMiss, i)
	}
	return m.slots[i], nil
}

// len returns the number of written slots.
func (m *memo) len() int {
	n := 0
	for _, v := range m.slots {
		if v != nil {
			n++
		}
	}
	return n
}

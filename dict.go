package ogtree
// Insertion-ordered Mapping that handles keys by structural equality.

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/maphash"
	"iter"
	"math"

	"github.com/aristanetworks/gomap"
)

// errUnhashable is the reason for Mapping key rejection.
var errUnhashable = errors.New("unhashable key")

// maxHashDepth bounds how deep nested sequences are walked when hashing.
//
// A sequence that contains itself (possible via memo) would otherwise be
// walked forever; such keys are reported as unhashable.
const maxHashDepth = 512

// Mapping represents dict from Python.
//
// Keys are compared by structural equality (see Equal) and entries are kept
// in insertion order. Setting a key that is already present replaces its
// value but keeps its position.
//
// Keys may be None, Bool, Int, Float, Bytes, Global, PersistentID,
// sequences of hashable values and placeholders with hashable fields.
// A *Mapping is never a valid key.
//
// Mapping is a pointer type: the zero value is not usable, use NewMapping.
type Mapping struct {
	index *gomap.Map[Value, int] // key -> position in keys/vals
	keys  []Value
	vals  []Value
}

// NewMapping returns new empty mapping.
func NewMapping() *Mapping {
	return NewMappingWithSizeHint(0)
}

// NewMappingWithSizeHint returns new empty mapping with preallocated space for size items.
func NewMappingWithSizeHint(size int) *Mapping {
	return &Mapping{
		index: gomap.NewHint[Value, int](size, Equal, hash),
		keys:  make([]Value, 0, size),
		vals:  make([]Value, 0, size),
	}
}

// NewMappingWithData returns new mapping with preset data.
//
// kv should be key₁, value₁, key₂, value₂, ...
// It panics on odd number of arguments or on unhashable key.
func NewMappingWithData(kv ...Value) *Mapping {
	l := len(kv)
	if l%2 != 0 {
		panic("odd number of arguments")
	}
	m := NewMappingWithSizeHint(l / 2)
	for i := 0; i < l; i += 2 {
		if err := m.Set(kv[i], kv[i+1]); err != nil {
			panic(err)
		}
	}
	return m
}

// Get returns value associated with equal key, or nil if there is no such key.
func (m *Mapping) Get(key Value) Value {
	v, _ := m.Get_(key)
	return v
}

// Get_ is comma-ok version of Get.
func (m *Mapping) Get_(key Value) (value Value, ok bool) {
	if checkHashable(key, 0) != nil {
		return nil, false
	}
	i, ok := m.index.Get(key)
	if !ok {
		return nil, false
	}
	return m.vals[i], true
}

// Set associates key with value.
//
// It returns an error if key cannot be used as a mapping key.
func (m *Mapping) Set(key, value Value) error {
	if err := checkHashable(key, 0); err != nil {
		return err
	}
	if i, ok := m.index.Get(key); ok {
		m.vals[i] = value
		return nil
	}
	key = freezeKey(key)
	m.index.Set(key, len(m.keys))
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, value)
	return nil
}

// freezeKey returns key with tuples copied, so that later APPEND onto the
// same tuple through a memo alias cannot change the stored key.
// key must have passed checkHashable.
func freezeKey(key Value) Value {
	switch v := key.(type) {
	case *Sequence:
		items := make([]Value, len(v.Items))
		for i, item := range v.Items {
			items[i] = freezeKey(item)
		}
		return &Sequence{Items: items, Tuple: true}
	case PersistentID:
		return PersistentID{freezeKey(v.ID)}
	}
	return key
}

// Del removes key from the mapping. It is a no-op if there is no equal key.
func (m *Mapping) Del(key Value) {
	if checkHashable(key, 0) != nil {
		return
	}
	i, ok := m.index.Get(key)
	if !ok {
		return
	}
	m.index.Delete(key)
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.vals = append(m.vals[:i], m.vals[i+1:]...)
	for j := i; j < len(m.keys); j++ {
		m.index.Set(m.keys[j], j)
	}
}

// Len returns the number of items in the mapping.
func (m *Mapping) Len() int {
	return len(m.keys)
}

// Keys returns keys of the mapping in insertion order.
func (m *Mapping) Keys() []Value {
	return append([]Value(nil), m.keys...)
}

// Iter returns iterator over all entries in insertion order.
func (m *Mapping) Iter() iter.Seq2[Value, Value] {
	return func(yield func(Value, Value) bool) {
		for i := range m.keys {
			if !yield(m.keys[i], m.vals[i]) {
				return
			}
		}
	}
}

// String returns human-readable representation of the mapping.
func (m *Mapping) String() string {
	return Repr(m)
}


// ---- equal ----

// Equal reports whether a and b are structurally equal.
//
// Values are equal when they are of the same variant and have equal content.
// In particular Int(1), Float(1.0) and Bool(true) are all different, and
// Sequence.Tuple is not taken into account. Mappings are compared without
// regard to order. Self-referencing structures are handled.
func Equal(a, b Value) bool {
	return equal(a, b, nil)
}

// eqPair is a pair of containers being compared; used to stop on cycles.
type eqPair struct {
	a, b Value
}

func equal(xa, xb Value, seen map[eqPair]bool) bool {
	switch a := xa.(type) {
	case nil:
		return xb == nil

	case None:
		_, ok := xb.(None)
		return ok

	case Bool:
		b, ok := xb.(Bool)
		return ok && a == b

	case Int:
		b, ok := xb.(Int)
		return ok && a.Big().Cmp(b.Big()) == 0

	case Float:
		b, ok := xb.(Float)
		// NaN is equal to NaN here: decoded trees must be comparable to themselves
		return ok && (a == b || (a != a && b != b))

	case Bytes:
		b, ok := xb.(Bytes)
		return ok && a == b

	case Global:
		b, ok := xb.(Global)
		return ok && a == b

	case PersistentID:
		b, ok := xb.(PersistentID)
		return ok && equal(a.ID, b.ID, seen)
	}

	// containers and mutable placeholders
	if xa == xb {
		return true
	}
	if seen == nil {
		seen = make(map[eqPair]bool)
	}
	pair := eqPair{xa, xb}
	if seen[pair] {
		return true
	}
	seen[pair] = true

	switch a := xa.(type) {
	case *Sequence:
		b, ok := xb.(*Sequence)
		if !ok || len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !equal(a.Items[i], b.Items[i], seen) {
				return false
			}
		}
		return true

	case *Mapping:
		b, ok := xb.(*Mapping)
		if !ok || a.Len() != b.Len() {
			return false
		}
		for i, k := range a.keys {
			vb, ok := b.Get_(k)
			if !ok || !equal(a.vals[i], vb, seen) {
				return false
			}
		}
		return true

	case *Reduce:
		b, ok := xb.(*Reduce)
		return ok &&
			equal(a.Callable, b.Callable, seen) &&
			equal(a.Arg, b.Arg, seen) &&
			equal(a.State, b.State, seen)

	case *Construct:
		b, ok := xb.(*Construct)
		if !ok {
			return false
		}
		var aargs, bargs Value
		if a.Args != nil {
			aargs = a.Args
		}
		if b.Args != nil {
			bargs = b.Args
		}
		return equal(a.Class, b.Class, seen) &&
			equal(aargs, bargs, seen) &&
			equal(a.State, b.State, seen)
	}

	panic(fmt.Sprintf("ogtree: equal: unexpected value %T", xa))
}

// ---- hash ----

// checkHashable returns an error if x cannot be used as Mapping key.
//
// Only immutable values are hashable, as in Python. Lists and placeholders
// that BUILD can change in place are rejected.
func checkHashable(x Value, depth int) error {
	if depth > maxHashDepth {
		return fmt.Errorf("%w: nesting too deep or self-referencing", errUnhashable)
	}
	switch v := x.(type) {
	case nil:
		return fmt.Errorf("%w: nil", errUnhashable)
	case *Mapping:
		return fmt.Errorf("%w: mapping", errUnhashable)
	case *Reduce:
		return fmt.Errorf("%w: reduce", errUnhashable)
	case *Construct:
		return fmt.Errorf("%w: construct", errUnhashable)
	case *Sequence:
		if !v.Tuple {
			return fmt.Errorf("%w: list", errUnhashable)
		}
		for _, item := range v.Items {
			if err := checkHashable(item, depth+1); err != nil {
				return err
			}
		}
	case PersistentID:
		return checkHashable(v.ID, depth+1)
	}
	return nil
}

// hash returns hash of x consistent with Equal.
//
//	Equal(a,b)  ⇒  hash(a) = hash(b)
//
// x must have passed checkHashable.
func hash(seed maphash.Seed, x Value) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	writeHash(&h, x)
	return h.Sum64()
}

func writeHash(h *maphash.Hash, x Value) {
	hashUint := func(u uint64) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], u)
		h.Write(b[:])
	}

	switch v := x.(type) {
	case nil:
		h.WriteString("nil")

	case None:
		h.WriteString("none")

	case Bool:
		h.WriteString("bool")
		if v {
			h.WriteByte(1)
		} else {
			h.WriteByte(0)
		}

	case Int:
		h.WriteString("int")
		b := v.Big()
		h.WriteByte(byte(b.Sign() + 1))
		h.Write(b.Bytes())

	case Float:
		h.WriteString("float")
		f := float64(v)
		switch {
		case f == 0:
			f = 0 // -0 == +0
		case f != f:
			f = math.NaN()
		}
		hashUint(math.Float64bits(f))

	case Bytes:
		h.WriteString("bytes")
		hashUint(uint64(len(v)))
		h.WriteString(string(v))

	case Global:
		h.WriteString("global")
		hashUint(uint64(len(v.Module)))
		h.WriteString(string(v.Module))
		h.WriteString(string(v.Name))

	case PersistentID:
		h.WriteString("persid")
		writeHash(h, v.ID)

	case *Sequence:
		h.WriteString("seq")
		hashUint(uint64(len(v.Items)))
		for _, item := range v.Items {
			writeHash(h, item)
		}

	default:
		panic(fmt.Sprintf("unhashable type: %T", x))
	}
}

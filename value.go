package ogtree

import (
	"fmt"
	"math/big"
)

// Value is one node of a decoded pickle tree.
//
// The set of implementations is closed; it is one of:
//
//	None  Bool  Int  Float  Bytes
//	*Sequence  *Mapping
//	Global  PersistentID  *Reduce  *Construct
//
// Containers and placeholders that opcodes mutate after creation
// (APPEND, SETITEM, BUILD, ...) are pointers. Whoever holds such a value -
// the memo, the stack, or an enclosing container - shares one instance.
type Value interface {
	value()
}

// None is a representation of Python's None.
type None struct{}

// Bool is a representation of Python's bool.
type Bool bool

// Int is an arbitrary precision integer.
//
// Int values are immutable: the wrapped big.Int must not be modified after
// construction.
type Int struct {
	n *big.Int
}

// NewInt returns Int with value x.
func NewInt(x int64) Int {
	return Int{n: big.NewInt(x)}
}

// NewBigInt returns Int with value of x. x is copied.
func NewBigInt(x *big.Int) Int {
	return Int{n: new(big.Int).Set(x)}
}

// Big returns the integer as big.Int. The result must not be modified.
func (i Int) Big() *big.Int {
	if i.n == nil {
		return new(big.Int)
	}
	return i.n
}

// Int64 returns the integer as int64 and whether it fits.
func (i Int) Int64() (int64, bool) {
	b := i.Big()
	if !b.IsInt64() {
		return 0, false
	}
	return b.Int64(), true
}

func (i Int) String() string {
	return i.Big().String()
}

// Float is a representation of Python's float.
type Float float64

// Bytes is a raw byte string.
//
// No character set is associated with it: STRING, UNICODE, BINSTRING,
// SHORT_BINSTRING and BINUNICODE all produce Bytes verbatim.
type Bytes string

// Sequence is an ordered list of values.
//
// The pickle protocol builds lists and tuples with different opcodes, but
// the decoded tree does not give them different types. Tuple only records
// which kind of opcode produced the sequence; Equal and Mapping keys
// ignore it.
type Sequence struct {
	Items []Value
	Tuple bool
}

// NewList returns new list-like sequence with items.
func NewList(items ...Value) *Sequence {
	if items == nil {
		items = []Value{}
	}
	return &Sequence{Items: items}
}

// NewTuple returns new tuple-like sequence with items.
func NewTuple(items ...Value) *Sequence {
	if items == nil {
		items = []Value{}
	}
	return &Sequence{Items: items, Tuple: true}
}

// Len returns the number of items in the sequence.
func (s *Sequence) Len() int {
	return len(s.Items)
}

// Global is the placeholder for a module-level name, e.g. a class.
//
// It is never resolved to an actual type by the decoder.
type Global struct {
	Module, Name Bytes
}

func (g Global) String() string {
	return fmt.Sprintf("%s.%s", g.Module, g.Name)
}

// PersistentID is the placeholder for a persistent reference.
//
// Such references are used when one pickle references an object stored
// outside of it, e.g. in a database. ID is a Bytes for PERSID and an
// arbitrary value for BINPERSID.
type PersistentID struct {
	ID Value
}

// Reduce is the placeholder for a call of Callable with Arg.
//
// The call is never performed. State is set by a following BUILD and is nil
// otherwise.
type Reduce struct {
	Callable Value
	Arg      Value
	State    Value
}

// Construct is the placeholder for an instance creation by INST, OBJ or
// NEWOBJ.
//
// Class is a Global for INST and whatever value the stream provided for
// OBJ and NEWOBJ. State is set by a following BUILD and is nil otherwise.
type Construct struct {
	Class Value
	Args  *Sequence
	State Value
}

func (None) value()         {}
func (Bool) value()         {}
func (Int) value()          {}
func (Float) value()        {}
func (Bytes) value()        {}
func (*Sequence) value()    {}
func (*Mapping) value()     {}
func (Global) value()       {}
func (PersistentID) value() {}
func (*Reduce) value()      {}
func (*Construct) value()   {}

package ogtree
// conversion of decoded values to Go types.

import (
	"fmt"
	"math/big"
)

// AsInt64 tries to represent decoded value as int64.
//
// The pickle stream does not distinguish small and big integers the way Go
// does: INT, BININT*, LONG and LONG1/4 all produce Int. Go code should use
// AsInt64 to accept normal-range integers independently of the opcode that
// produced them.
func AsInt64(x Value) (int64, error) {
	i, ok := x.(Int)
	if !ok {
		return 0, fmt.Errorf("expect int; got %T", x)
	}
	n, ok := i.Int64()
	if !ok {
		return 0, fmt.Errorf("int outside of int64 range")
	}
	return n, nil
}

// AsFloat64 tries to represent decoded value as float64.
//
// It succeeds for Float and for Int; an Int is converted with rounding.
func AsFloat64(x Value) (float64, error) {
	switch x := x.(type) {
	case Float:
		return float64(x), nil
	case Int:
		if n, ok := x.Int64(); ok {
			return float64(n), nil
		}
		f, _ := new(big.Float).SetInt(x.Big()).Float64()
		return f, nil
	}
	return 0, fmt.Errorf("expect float|int; got %T", x)
}

// AsBytes tries to represent decoded value as Bytes.
//
// Every string opcode produces Bytes, so this is also the way to get at
// text: the caller decides which character set applies.
func AsBytes(x Value) (Bytes, error) {
	b, ok := x.(Bytes)
	if !ok {
		return "", fmt.Errorf("expect bytes; got %T", x)
	}
	return b, nil
}

// AsSequence tries to represent decoded value as *Sequence.
//
// Both lists and tuples are accepted.
func AsSequence(x Value) (*Sequence, error) {
	s, ok := x.(*Sequence)
	if !ok {
		return nil, fmt.Errorf("expect list|tuple; got %T", x)
	}
	return s, nil
}

// AsMapping tries to represent decoded value as *Mapping.
func AsMapping(x Value) (*Mapping, error) {
	m, ok := x.(*Mapping)
	if !ok {
		return nil, fmt.Errorf("expect dict; got %T", x)
	}
	return m, nil
}

package ogtree

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrCycle is returned by ToGo for trees that contain themselves.
var ErrCycle = errors.New("value contains itself")

// Resolver turns placeholders into application objects.
//
// The decoder never resolves anything; a Resolver is only used by ToGo when
// the caller asks for it. Arguments of ResolveReduce and ResolveConstruct are
// already converted by ToGo.
type Resolver interface {
	ResolveGlobal(g Global) (any, error)
	ResolvePersistent(id any) (any, error)
	ResolveReduce(callable, arg, state any) (any, error)
	ResolveConstruct(class any, args []any, state any) (any, error)
}

// KV is one Mapping entry converted by ToGo.
type KV struct {
	Key   any
	Value any
}

// ToGo converts v into plain Go values.
//
//	None          nil
//	Bool          bool
//	Int           int64, or *big.Int if it does not fit
//	Float         float64
//	Bytes         []byte
//	*Sequence     []any
//	*Mapping      []KV in insertion order
//
// Placeholders are given to r. If r is nil they are returned as they are,
// with their fields left unconverted.
//
// Go has no way to express a slice that contains itself, so a self-referencing
// tree fails with ErrCycle. Shared, non-cyclic subtrees are converted once per
// occurrence.
func ToGo(v Value, r Resolver) (any, error) {
	c := converter{r: r, active: make(map[Value]bool)}
	return c.convert(v)
}

type converter struct {
	r      Resolver
	active map[Value]bool
}

func (c *converter) enter(x Value) error {
	if c.active[x] {
		return fmt.Errorf("%w: %T", ErrCycle, x)
	}
	c.active[x] = true
	return nil
}

func (c *converter) convert(x Value) (any, error) {
	switch v := x.(type) {
	case nil, None:
		return nil, nil
	case Bool:
		return bool(v), nil
	case Int:
		if n, ok := v.Int64(); ok {
			return n, nil
		}
		return new(big.Int).Set(v.Big()), nil
	case Float:
		return float64(v), nil
	case Bytes:
		return []byte(v), nil

	case Global:
		if c.r == nil {
			return v, nil
		}
		return c.r.ResolveGlobal(v)

	case PersistentID:
		if c.r == nil {
			return v, nil
		}
		id, err := c.convert(v.ID)
		if err != nil {
			return nil, err
		}
		return c.r.ResolvePersistent(id)
	}

	// containers
	if err := c.enter(x); err != nil {
		return nil, err
	}
	defer delete(c.active, x)

	switch v := x.(type) {
	case *Sequence:
		return c.list(v.Items)

	case *Mapping:
		out := make([]KV, 0, v.Len())
		for k, val := range v.Iter() {
			gk, err := c.convert(k)
			if err != nil {
				return nil, err
			}
			gv, err := c.convert(val)
			if err != nil {
				return nil, err
			}
			out = append(out, KV{gk, gv})
		}
		return out, nil

	case *Reduce:
		if c.r == nil {
			return v, nil
		}
		callable, err := c.convert(v.Callable)
		if err != nil {
			return nil, err
		}
		arg, err := c.convert(v.Arg)
		if err != nil {
			return nil, err
		}
		state, err := c.convert(v.State)
		if err != nil {
			return nil, err
		}
		return c.r.ResolveReduce(callable, arg, state)

	case *Construct:
		if c.r == nil {
			return v, nil
		}
		class, err := c.convert(v.Class)
		if err != nil {
			return nil, err
		}
		var args []any
		if v.Args != nil {
			args, err = c.list(v.Args.Items)
			if err != nil {
				return nil, err
			}
		}
		state, err := c.convert(v.State)
		if err != nil {
			return nil, err
		}
		return c.r.ResolveConstruct(class, args, state)
	}

	panic(fmt.Sprintf("ogtree: ToGo: unexpected value %T", x))
}

func (c *converter) list(items []Value) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		g, err := c.convert(item)
		if err != nil {
			return nil, err
		}
		out[i] = g
	}
	return out, nil
}

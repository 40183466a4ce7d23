package render

import (
	"bytes"
	"encoding/binary"
	"math"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"github.com/kisielk/ogtree"
)

// CBOR tag numbers used for placeholders.
//
// Each tag content is an array:
//
//	TagGlobal        [module, name]
//	TagPersistentID  id
//	TagReduce        [callable, arg, state|null]
//	TagConstruct     [class, args|null, state|null]
const (
	TagGlobal       = 27001
	TagPersistentID = 27002
	TagReduce       = 27003
	TagConstruct    = 27004
)

// Canonical CBOR encoding mode: deterministic output for identical values.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("render: failed to create CBOR encoding mode: " + err.Error())
	}
}

// MarshalCBOR encodes v as canonical CBOR.
//
// Mappings are emitted with arbitrary keys, including arrays, in
// canonical key order.
func MarshalCBOR(v ogtree.Value) ([]byte, error) {
	w := &walker{}
	x, err := w.cbor(v)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(x)
}

// cborMap is a CBOR map whose keys need not be comparable in Go.
type cborMap []cborPair

type cborPair struct {
	key, value any
}

func (m cborMap) MarshalCBOR() ([]byte, error) {
	type encPair struct{ key, value []byte }
	pairs := make([]encPair, 0, len(m))
	for _, p := range m {
		k, err := cborEncMode.Marshal(p.key)
		if err != nil {
			return nil, err
		}
		v, err := cborEncMode.Marshal(p.value)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, encPair{k, v})
	}

	// length-first, then bytewise
	slices.SortFunc(pairs, func(a, b encPair) int {
		if len(a.key) != len(b.key) {
			return len(a.key) - len(b.key)
		}
		return bytes.Compare(a.key, b.key)
	})

	buf := appendHead(nil, 5, uint64(len(pairs)))
	for _, p := range pairs {
		buf = append(buf, p.key...)
		buf = append(buf, p.value...)
	}
	return buf, nil
}

// appendHead appends CBOR initial byte and argument for major type major.
func appendHead(b []byte, major byte, n uint64) []byte {
	m := major << 5
	switch {
	case n < 24:
		return append(b, m|byte(n))
	case n <= math.MaxUint8:
		return append(b, m|24, byte(n))
	case n <= math.MaxUint16:
		return binary.BigEndian.AppendUint16(append(b, m|25), uint16(n))
	case n <= math.MaxUint32:
		return binary.BigEndian.AppendUint32(append(b, m|26), uint32(n))
	}
	return binary.BigEndian.AppendUint64(append(b, m|27), n)
}

func (w *walker) cbor(x ogtree.Value) (any, error) {
	switch x := x.(type) {
	case nil, ogtree.None:
		return nil, nil

	case ogtree.Bool:
		return bool(x), nil

	case ogtree.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}
		return x.Big(), nil

	case ogtree.Float:
		return float64(x), nil

	case ogtree.Bytes:
		return []byte(x), nil

	case *ogtree.Sequence:
		if err := w.enter(x); err != nil {
			return nil, err
		}
		defer w.leave(x)
		return w.cborList(x.Items)

	case *ogtree.Mapping:
		if err := w.enter(x); err != nil {
			return nil, err
		}
		defer w.leave(x)
		m := make(cborMap, 0, x.Len())
		for k, v := range x.Iter() {
			kc, err := w.cbor(k)
			if err != nil {
				return nil, err
			}
			vc, err := w.cbor(v)
			if err != nil {
				return nil, err
			}
			m = append(m, cborPair{kc, vc})
		}
		return m, nil

	case ogtree.Global:
		return cbor.Tag{
			Number:  TagGlobal,
			Content: []any{[]byte(x.Module), []byte(x.Name)},
		}, nil

	case ogtree.PersistentID:
		id, err := w.cbor(x.ID)
		if err != nil {
			return nil, err
		}
		return cbor.Tag{Number: TagPersistentID, Content: id}, nil

	case *ogtree.Reduce:
		if err := w.enter(x); err != nil {
			return nil, err
		}
		defer w.leave(x)
		content, err := w.cborList([]ogtree.Value{x.Callable, x.Arg, x.State})
		if err != nil {
			return nil, err
		}
		return cbor.Tag{Number: TagReduce, Content: content}, nil

	case *ogtree.Construct:
		if err := w.enter(x); err != nil {
			return nil, err
		}
		defer w.leave(x)
		var args ogtree.Value
		if x.Args != nil {
			args = x.Args
		}
		content, err := w.cborList([]ogtree.Value{x.Class, args, x.State})
		if err != nil {
			return nil, err
		}
		return cbor.Tag{Number: TagConstruct, Content: content}, nil
	}
	panic("unreachable")
}

func (w *walker) cborList(items []ogtree.Value) ([]any, error) {
	l := make([]any, len(items))
	for i, item := range items {
		x, err := w.cbor(item)
		if err != nil {
			return nil, err
		}
		l[i] = x
	}
	return l, nil
}

//go:build gofuzz

package ogtree

import (
	"bytes"
)

func Fuzz(data []byte) int {
	d := NewDecoderWithConfig(bytes.NewReader(data), &DecoderConfig{DecodeEscapes: true})
	v, err := d.Decode()
	if err != nil {
		return 0
	}
	// decoded trees must be printable and comparable to themselves
	_ = Repr(v)
	if !Equal(v, v) {
		panic("decoded value is not equal to itself")
	}
	return 1
}

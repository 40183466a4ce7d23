package ogtree

import (
	"go.uber.org/zap"
)

// Extensions is the extension registry consulted by EXT1, EXT2 and EXT4.
//
// It maps extension codes to values, usually Global. The decoder only looks
// codes up; populating the registry is up to the caller.
type Extensions map[uint32]Value

// Limits bound the resources one Decode call may use.
//
// A zero field means the corresponding DefaultLimits value. A negative field
// means no limit.
type Limits struct {
	// MaxSteps is the maximum number of opcodes executed per Decode call.
	MaxSteps int

	// MaxStack is the maximum depth of the operand stack, markers included.
	MaxStack int

	// MaxMemo is the maximum memo index + 1 that PUT-family opcodes may write.
	//
	// Python numbers memo entries sequentially, one per memoized object, so
	// the default of 1<<20 rejects pickles of object graphs with more than
	// about a million shared or container objects. Decoding such pickles
	// needs a larger or negative MaxMemo. The memo table grows up to the
	// highest written index, so the limit also bounds its memory.
	MaxMemo int

	// MaxLen is the maximum length, in bytes, of one opcode argument:
	// string payloads, LONG1/LONG4 payloads and newline-terminated lines.
	MaxLen int64
}

// DefaultLimits returns limits used for zero Limits fields.
func DefaultLimits() Limits {
	return Limits{
		MaxSteps: 1 << 26,
		MaxStack: 1 << 20,
		MaxMemo:  1 << 20,
		MaxLen:   1 << 28,
	}
}

// withDefaults returns l with zero fields replaced by defaults.
func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxSteps == 0 {
		l.MaxSteps = def.MaxSteps
	}
	if l.MaxStack == 0 {
		l.MaxStack = def.MaxStack
	}
	if l.MaxMemo == 0 {
		l.MaxMemo = def.MaxMemo
	}
	if l.MaxLen == 0 {
		l.MaxLen = def.MaxLen
	}
	return l
}

// DecoderConfig allows to tune Decoder.
type DecoderConfig struct {
	// Extensions, if !nil, is the registry for EXT1, EXT2 and EXT4.
	// Without it every EXT* opcode fails with ErrExtensionNotFound.
	Extensions Extensions

	// Limits bound resources spent on one Decode call.
	Limits Limits

	// DecodeEscapes turns on escape processing of protocol 0 text:
	// STRING argument has its quotes stripped and Python string escapes
	// decoded, and UNICODE argument has \uXXXX and \UXXXXXXXX decoded
	// into UTF-8.
	//
	// By default both are pushed as raw bytes, exactly as they appear in
	// the stream.
	DecodeEscapes bool

	// Logger, if !nil, receives a debug entry for every executed opcode.
	Logger *zap.Logger
}

package ogtree

import (
	"errors"
	"fmt"
	"io"
)

// Errors that Decode wraps into DecodeError. Use errors.Is to test for them.
var (
	ErrUnknownOpcode     = errors.New("unknown opcode")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrMarkNotFound      = errors.New("no marker in stack")
	ErrMemoMiss          = errors.New("memo: key error")
	ErrExtensionNotFound = errors.New("extension not registered")
	ErrBadOperand        = errors.New("bad operand")
	ErrLimitExceeded     = errors.New("limit exceeded")

	// ErrTruncatedInput is returned when the stream ends before STOP or in
	// the middle of an opcode argument.
	ErrTruncatedInput = io.ErrUnexpectedEOF
)

// ErrNoSeparator is returned by UnpickleSignedBase64 when the decoded input
// has no ':' separating prefix and payload.
var ErrNoSeparator = errors.New("signed pickle: no ':' separator")

// DecodeError is the error that Decode returns when decoding fails.
//
// It tells which opcode failed and where.
type DecodeError struct {
	Op   byte  // opcode being decoded; 0 if the stream was empty
	Pos  int64 // byte offset of the opcode in the stream
	Insn int   // 1-based instruction number of the opcode
	Err  error // underlying error; one of Err* or a wrap of it
}

func (e *DecodeError) Error() string {
	if e.Insn == 0 {
		return fmt.Sprintf("pickle: at position %d: %s", e.Pos, e.Err)
	}
	return fmt.Sprintf("pickle: opcode %s (%q) at position %d: %s", opName(e.Op), e.Op, e.Pos, e.Err)
}

// OpName returns the name of the failed opcode, e.g. "TUPLE".
// It is empty if no opcode was read.
func (e *DecodeError) OpName() string {
	if e.Insn == 0 {
		return ""
	}
	return opName(e.Op)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// badOperandf returns error wrapping ErrBadOperand.
func badOperandf(format string, argv ...any) error {
	return fmt.Errorf("%w: %s", ErrBadOperand, fmt.Sprintf(format, argv...))
}

// limitf returns error wrapping ErrLimitExceeded.
func limitf(format string, argv ...any) error {
	return fmt.Errorf("%w: %s", ErrLimitExceeded, fmt.Sprintf(format, argv...))
}

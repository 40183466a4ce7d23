package ogtree

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"

	"go.uber.org/zap"
)

// errStop is returned by the STOP handler to end the decode loop.
var errStop = errors.New("stop")

// slot is one operand stack entry: either a value or the MARK sentinel.
type slot struct {
	v    Value
	mark bool
}

// Decoder is a decoder for pickle streams.
//
// A Decoder never executes anything found in the stream: classes,
// callables and persistent references are returned as Global, Reduce,
// Construct and PersistentID placeholders.
//
// A Decoder is not safe for concurrent use. Separate Decoders share no
// mutable state and may be used in parallel.
type Decoder struct {
	r      *bufio.Reader
	pos    int64 // offset of next byte in r
	config *DecoderConfig
	limits Limits
	log    *zap.Logger

	stack []slot
	memo  memo

	// a reusable buffer that can be used by the various decoding functions
	// functions using this should call buf.Reset to clear the old contents
	buf bytes.Buffer

	// reusable buffer for readLine
	line []byte

	// protocol version seen in last PROTO opcode; 0 by default.
	protocol int
}

// NewDecoder constructs a new Decoder which will decode the pickle stream in r.
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderWithConfig(r, &DecoderConfig{})
}

// NewDecoderWithConfig is similar to NewDecoder, but allows specifying decoder configuration.
func NewDecoderWithConfig(r io.Reader, config *DecoderConfig) *Decoder {
	if config == nil {
		config = &DecoderConfig{}
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	limits := config.Limits.withDefaults()
	return &Decoder{
		r:      bufio.NewReader(r),
		config: config,
		limits: limits,
		log:    log,
		stack:  make([]slot, 0),
		memo:   memo{max: limits.MaxMemo},
	}
}

// Decode decodes one pickle from the stream and returns the result or an error.
//
// Decoding stops at STOP; data after it is left in the stream for the next
// Decode call. The memo is kept in between calls.
//
// If the stream is at its end before the first opcode, Decode returns io.EOF.
// Every other error is *DecodeError.
func (d *Decoder) Decode() (Value, error) {
	d.stack = d.stack[:0]

	insn := 0
	for {
		pos := d.pos
		op, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF && insn == 0 {
				return nil, io.EOF
			}
			return nil, &DecodeError{Pos: pos, Err: noEOF(err)}
		}
		d.pos++
		insn++

		fail := func(err error) (Value, error) {
			return nil, &DecodeError{Op: op, Pos: pos, Insn: insn, Err: err}
		}

		if lim := d.limits.MaxSteps; lim >= 0 && insn > lim {
			return fail(limitf("more than %d opcodes", lim))
		}

		h := registry[op]
		if h == nil {
			return fail(ErrUnknownOpcode)
		}

		if ce := d.log.Check(zap.DebugLevel, "opcode"); ce != nil {
			ce.Write(
				zap.String("op", opName(op)),
				zap.Int64("pos", pos),
				zap.Int("stack", len(d.stack)))
		}

		err = h(d)
		if err == errStop {
			v, err := d.pop()
			if err != nil {
				return fail(err)
			}
			return v, nil
		}
		if err != nil {
			return fail(noEOF(err))
		}

		if lim := d.limits.MaxStack; lim >= 0 && len(d.stack) > lim {
			return fail(limitf("stack deeper than %d", lim))
		}
	}
}

// Protocol returns pickle protocol version seen in last PROTO opcode, or 0.
func (d *Decoder) Protocol() int {
	return d.protocol
}

// MemoLen returns the number of memo entries stored so far.
func (d *Decoder) MemoLen() int {
	return d.memo.len()
}

// ---- operand stack ----

// Append a new value
func (d *Decoder) push(v Value) {
	d.stack = append(d.stack, slot{v: v})
}

// Push a marker
func (d *Decoder) pushMark() {
	d.stack = append(d.stack, slot{mark: true})
}

// Pop a value.
//
// A marker on top counts as empty stack: values below it belong to an
// enclosing MARK region.
func (d *Decoder) pop() (Value, error) {
	v, err := d.top()
	if err != nil {
		return nil, err
	}
	d.stack = d.stack[:len(d.stack)-1]
	return v, nil
}

// popN pops n values and returns them in the order they were pushed.
func (d *Decoder) popN(n int) ([]Value, error) {
	k := len(d.stack) - n
	if k < 0 {
		return nil, ErrStackUnderflow
	}
	v := make([]Value, n)
	for i, s := range d.stack[k:] {
		if s.mark {
			return nil, ErrStackUnderflow
		}
		v[i] = s.v
	}
	d.stack = d.stack[:k]
	return v, nil
}

// top returns stack top value without popping it.
func (d *Decoder) top() (Value, error) {
	l := len(d.stack)
	if l == 0 || d.stack[l-1].mark {
		return nil, ErrStackUnderflow
	}
	return d.stack[l-1].v, nil
}

// sliceToMark pops everything above the topmost marker, and the marker itself.
//
// The values are returned in the order they were pushed.
func (d *Decoder) sliceToMark() ([]Value, error) {
	for k := len(d.stack) - 1; k >= 0; k-- {
		if !d.stack[k].mark {
			continue
		}
		items := make([]Value, 0, len(d.stack)-k-1)
		for _, s := range d.stack[k+1:] {
			items = append(items, s.v)
		}
		d.stack = d.stack[:k]
		return items, nil
	}
	return nil, ErrMarkNotFound
}

// topSequence returns stack top that must be a sequence.
func (d *Decoder) topSequence(what string) (*Sequence, error) {
	t, err := d.top()
	if err != nil {
		return nil, err
	}
	seq, ok := t.(*Sequence)
	if !ok {
		return nil, badOperandf("%s: expected a sequence, got %T", what, t)
	}
	return seq, nil
}

// topMapping returns stack top that must be a mapping.
func (d *Decoder) topMapping(what string) (*Mapping, error) {
	t, err := d.top()
	if err != nil {
		return nil, err
	}
	m, ok := t.(*Mapping)
	if !ok {
		return nil, badOperandf("%s: expected a mapping, got %T", what, t)
	}
	return m, nil
}

// ---- stack and framing opcodes ----

func (d *Decoder) loadMark() error {
	d.pushMark()
	return nil
}

func (d *Decoder) stop() error {
	return errStop
}

// Discard the top stack entry
func (d *Decoder) loadPop() error {
	l := len(d.stack)
	if l == 0 {
		return ErrStackUnderflow
	}
	d.stack = d.stack[:l-1]
	return nil
}

// Discard the stack through to the topmost marker.
//
// It is not an error if there is no marker: the stack is just emptied.
func (d *Decoder) popMark() error {
	for len(d.stack) > 0 {
		s := d.stack[len(d.stack)-1]
		d.stack = d.stack[:len(d.stack)-1]
		if s.mark {
			break
		}
	}
	return nil
}

// Duplicate the top stack item
func (d *Decoder) dup() error {
	v, err := d.top()
	if err != nil {
		return err
	}
	d.push(v)
	return nil
}

// proto consumes protocol version. The version does not affect decoding.
func (d *Decoder) proto() error {
	v, err := d.readUint8()
	if err != nil {
		return err
	}
	d.protocol = int(v)
	return nil
}

// ---- numbers ----

// Push an int
func (d *Decoder) loadInt() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}
	v, err := parseDecimal(line)
	if err != nil {
		return err
	}
	d.push(v)
	return nil
}

// Push a long; the text is the same as for INT, usually with L suffix
func (d *Decoder) loadLong() error {
	return d.loadInt()
}

// Push a float
func (d *Decoder) loadFloat() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}

	v, err := parseDecimal(line)
	if err != nil {
		// Python writes repr(float), e.g. 1e-05, inf, nan
		f, err2 := strconv.ParseFloat(string(line), 64)
		if err2 != nil {
			return err
		}
		v = Float(f)
	}
	if i, ok := v.(Int); ok {
		f, _ := new(big.Float).SetInt(i.Big()).Float64()
		v = Float(f)
	}

	d.push(v)
	return nil
}

// Push a four-byte signed int
func (d *Decoder) loadBinInt() error {
	v, err := d.readUintLE(4)
	if err != nil {
		return err
	}
	d.push(NewInt(int64(int32(v)))) // NOTE signed: uint32 -> int32, and only then -> int64
	return nil
}

// Push a 1-byte unsigned int
func (d *Decoder) loadBinInt1() error {
	b, err := d.readUint8()
	if err != nil {
		return err
	}
	d.push(NewInt(int64(b)))
	return nil
}

// Push a 2-byte unsigned int
func (d *Decoder) loadBinInt2() error {
	v, err := d.readUintLE(2)
	if err != nil {
		return err
	}
	d.push(NewInt(int64(v)))
	return nil
}

// Push a long from 1-byte length + unsigned little-endian data
func (d *Decoder) loadLong1() error {
	n, err := d.readUint8()
	if err != nil {
		return err
	}
	return d.loadLongData(uint64(n))
}

// Push a long from 4-byte length + unsigned little-endian data
func (d *Decoder) loadLong4() error {
	n, err := d.readUintLE(4)
	if err != nil {
		return err
	}
	return d.loadLongData(n)
}

func (d *Decoder) loadLongData(n uint64) error {
	data, err := d.readBytes(n)
	if err != nil {
		return err
	}
	d.push(Int{n: decodeLong([]byte(data))})
	return nil
}

func (d *Decoder) binFloat() error {
	f, err := d.readFloat64BE()
	if err != nil {
		return err
	}
	d.push(Float(f))
	return nil
}

// Push None
func (d *Decoder) loadNone() error {
	d.push(None{})
	return nil
}

func (d *Decoder) loadTrue() error {
	d.push(Bool(true))
	return nil
}

func (d *Decoder) loadFalse() error {
	d.push(Bool(false))
	return nil
}

// ---- strings ----

// Push a string
func (d *Decoder) loadString() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}

	if !d.config.DecodeEscapes {
		d.push(Bytes(line))
		return nil
	}

	if len(line) < 2 {
		return badOperandf("STRING: %q: not quoted", line)
	}
	delim := line[0]
	if !(delim == '\'' || delim == '"') {
		return badOperandf("STRING: invalid string delimiter: %c", delim)
	}
	if line[len(line)-1] != delim {
		return badOperandf("STRING: %q: no closing quote", line)
	}

	s, err := pydecodeStringEscape(string(line[1 : len(line)-1]))
	if err != nil {
		return badOperandf("STRING: %s", err)
	}
	d.push(Bytes(s))
	return nil
}

func (d *Decoder) loadUnicode() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}

	if !d.config.DecodeEscapes {
		d.push(Bytes(line))
		return nil
	}

	text, err := pydecodeRawUnicodeEscape(string(line))
	if err != nil {
		return badOperandf("UNICODE: %s", err)
	}
	d.push(Bytes(text))
	return nil
}

// loadBinData4 pushes `len(LE32) [len]data`.
// it serves BINSTRING and BINUNICODE.
func (d *Decoder) loadBinData4() error {
	n, err := d.readUintLE(4)
	if err != nil {
		return err
	}
	data, err := d.readBytes(n)
	if err != nil {
		return err
	}
	d.push(data)
	return nil
}

func (d *Decoder) loadBinString() error {
	return d.loadBinData4()
}

// loadBinUnicode pushes UTF-8 payload as is; it is not validated.
func (d *Decoder) loadBinUnicode() error {
	return d.loadBinData4()
}

func (d *Decoder) loadShortBinString() error {
	n, err := d.readUint8()
	if err != nil {
		return err
	}
	data, err := d.readBytes(uint64(n))
	if err != nil {
		return err
	}
	d.push(data)
	return nil
}

// ---- containers ----

func (d *Decoder) loadEmptyList() error {
	d.push(NewList())
	return nil
}

func (d *Decoder) loadEmptyTuple() error {
	d.push(NewTuple())
	return nil
}

func (d *Decoder) loadEmptyDict() error {
	d.push(NewMapping())
	return nil
}

func (d *Decoder) loadList() error {
	items, err := d.sliceToMark()
	if err != nil {
		return err
	}
	d.push(NewList(items...))
	return nil
}

func (d *Decoder) loadTuple() error {
	items, err := d.sliceToMark()
	if err != nil {
		return err
	}
	d.push(NewTuple(items...))
	return nil
}

// tupleN creates tuple from top n stack objects.
// it serves TUPLE{1,2,3} opcode handlers.
func (d *Decoder) tupleN(n int) error {
	items, err := d.popN(n)
	if err != nil {
		return err
	}
	d.push(NewTuple(items...))
	return nil
}

func (d *Decoder) loadTuple1() error {
	return d.tupleN(1)
}

func (d *Decoder) loadTuple2() error {
	return d.tupleN(2)
}

func (d *Decoder) loadTuple3() error {
	return d.tupleN(3)
}

func (d *Decoder) loadAppend() error {
	v, err := d.pop()
	if err != nil {
		return err
	}
	seq, err := d.topSequence("APPEND")
	if err != nil {
		return err
	}
	seq.Items = append(seq.Items, v)
	return nil
}

func (d *Decoder) loadAppends() error {
	items, err := d.sliceToMark()
	if err != nil {
		return err
	}
	seq, err := d.topSequence("APPENDS")
	if err != nil {
		return err
	}
	seq.Items = append(seq.Items, items...)
	return nil
}

// setItems assigns items = [k0,v0,k1,v1,...] into m.
//
// Pairs are assigned from the last one to the first one. For duplicate keys
// the pair that comes first in the stream is thus assigned last and wins.
func setItems(what string, m *Mapping, items []Value) error {
	if len(items)%2 != 0 {
		return badOperandf("%s: odd # of elements", what)
	}
	for i := len(items) - 2; i >= 0; i -= 2 {
		if err := m.Set(items[i], items[i+1]); err != nil {
			return badOperandf("%s: %s", what, err)
		}
	}
	return nil
}

func (d *Decoder) loadDict() error {
	items, err := d.sliceToMark()
	if err != nil {
		return err
	}
	m := NewMappingWithSizeHint(len(items) / 2)
	if err := setItems("DICT", m, items); err != nil {
		return err
	}
	d.push(m)
	return nil
}

func (d *Decoder) loadSetItem() error {
	items, err := d.popN(2)
	if err != nil {
		return err
	}
	m, err := d.topMapping("SETITEM")
	if err != nil {
		return err
	}
	if err := m.Set(items[0], items[1]); err != nil {
		return badOperandf("SETITEM: %s", err)
	}
	return nil
}

func (d *Decoder) loadSetItems() error {
	items, err := d.sliceToMark()
	if err != nil {
		return err
	}
	m, err := d.topMapping("SETITEMS")
	if err != nil {
		return err
	}
	return setItems("SETITEMS", m, items)
}

// ---- references and object construction ----

// readGlobal reads `module\nname\n` argument of GLOBAL and INST.
func (d *Decoder) readGlobal() (Global, error) {
	module, err := d.readLine()
	if err != nil {
		return Global{}, err
	}
	smodule := Bytes(module)
	name, err := d.readLine()
	if err != nil {
		return Global{}, err
	}
	return Global{Module: smodule, Name: Bytes(name)}, nil
}

func (d *Decoder) global() error {
	g, err := d.readGlobal()
	if err != nil {
		return err
	}
	d.push(g)
	return nil
}

// reduce pushes the call placeholder; nothing is called.
func (d *Decoder) reduce() error {
	argv, err := d.popN(2)
	if err != nil {
		return err
	}
	d.push(&Reduce{Callable: argv[0], Arg: argv[1]})
	return nil
}

// build attaches state to the object placeholder on stack top.
func (d *Decoder) build() error {
	state, err := d.pop()
	if err != nil {
		return err
	}
	t, err := d.top()
	if err != nil {
		return err
	}
	switch obj := t.(type) {
	case *Construct:
		obj.State = state
	case *Reduce:
		obj.State = state
	default:
		return badOperandf("BUILD: expected an object, got %T", t)
	}
	return nil
}

func (d *Decoder) inst() error {
	class, err := d.readGlobal()
	if err != nil {
		return err
	}
	args, err := d.sliceToMark()
	if err != nil {
		return err
	}
	d.push(&Construct{Class: class, Args: NewTuple(args...)})
	return nil
}

func (d *Decoder) obj() error {
	items, err := d.sliceToMark()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return badOperandf("OBJ: no class")
	}
	d.push(&Construct{Class: items[0], Args: NewTuple(items[1:]...)})
	return nil
}

func (d *Decoder) newobj() error {
	argv, err := d.popN(2)
	if err != nil {
		return err
	}
	args, ok := argv[1].(*Sequence)
	if !ok {
		args = NewTuple(argv[1])
	}
	d.push(&Construct{Class: argv[0], Args: args})
	return nil
}

// Push a persistent object id
func (d *Decoder) loadPersid() error {
	pid, err := d.readLine()
	if err != nil {
		return err
	}
	d.push(PersistentID{ID: Bytes(pid)})
	return nil
}

// Push a persistent object id from items on the stack
func (d *Decoder) loadBinPersid() error {
	pid, err := d.pop()
	if err != nil {
		return err
	}
	d.push(PersistentID{ID: pid})
	return nil
}

// ---- memo ----

// memoTop puts top of the stack into memo[i]; the stack is not changed.
// it is the worker for handling PUT, BINPUT, ... opcodes
func (d *Decoder) memoTop(i uint64) error {
	v, err := d.top()
	if err != nil {
		return err
	}
	return d.memo.put(i, v)
}

// memoPush pushes memo[i].
// it is the worker for handling GET, BINGET, ... opcodes
func (d *Decoder) memoPush(i uint64) error {
	v, err := d.memo.get(i)
	if err != nil {
		return err
	}
	d.push(v)
	return nil
}

// readMemoIndex reads decimal memo index argument of PUT and GET.
func (d *Decoder) readMemoIndex() (uint64, error) {
	line, err := d.readLine()
	if err != nil {
		return 0, err
	}
	v, err := parseDecimal(line)
	if err != nil {
		return 0, err
	}
	i, ok := v.(Int)
	if !ok || i.Big().Sign() < 0 || !i.Big().IsUint64() {
		return 0, badOperandf("invalid memo index %q", line)
	}
	return i.Big().Uint64(), nil
}

func (d *Decoder) loadPut() error {
	i, err := d.readMemoIndex()
	if err != nil {
		return err
	}
	return d.memoTop(i)
}

func (d *Decoder) binPut() error {
	b, err := d.readUint8()
	if err != nil {
		return err
	}
	return d.memoTop(uint64(b))
}

func (d *Decoder) longBinPut() error {
	v, err := d.readUintLE(4)
	if err != nil {
		return err
	}
	return d.memoTop(v)
}

func (d *Decoder) get() error {
	i, err := d.readMemoIndex()
	if err != nil {
		return err
	}
	return d.memoPush(i)
}

func (d *Decoder) binGet() error {
	b, err := d.readUint8()
	if err != nil {
		return err
	}
	return d.memoPush(uint64(b))
}

func (d *Decoder) longBinGet() error {
	v, err := d.readUintLE(4)
	if err != nil {
		return err
	}
	return d.memoPush(v)
}

// ---- extension registry ----

// extPush pushes value registered under code.
// it serves EXT{1,2,4} opcode handlers.
func (d *Decoder) extPush(code uint64) error {
	v, ok := d.config.Extensions[uint32(code)]
	if !ok || v == nil {
		return fmt.Errorf("%w: code %d", ErrExtensionNotFound, code)
	}
	d.push(v)
	return nil
}

func (d *Decoder) ext1() error {
	code, err := d.readUint8()
	if err != nil {
		return err
	}
	return d.extPush(uint64(code))
}

func (d *Decoder) ext2() error {
	code, err := d.readUintLE(2)
	if err != nil {
		return err
	}
	return d.extPush(code)
}

func (d *Decoder) ext4() error {
	code, err := d.readUintLE(4)
	if err != nil {
		return err
	}
	return d.extPush(code)
}

package ogtree

import (
	"math"
	"testing"
)

// CodecTestCase represents 1 test case of a coder or decoder.
//
// Under the given transformation function in must be transformed to out.
type CodecTestCase struct {
	in, out string
}

// testCodec tests transform func applied to all test cases from testv.
func testCodec(t *testing.T, transform func(in string) (string, error), testv []CodecTestCase) {
	for _, tt := range testv {
		s, err := transform(tt.in)
		if err != nil {
			t.Errorf("%q -> error: %s", tt.in, err)
			continue
		}

		if s != tt.out {
			t.Errorf("%q -> unexpected:\nhave: %q\nwant: %q", tt.in, s, tt.out)
		}
	}
}

func TestPyDecodeStringEscape(t *testing.T) {
	testCodec(t, pydecodeStringEscape, []CodecTestCase{
		{`hello`, "hello"},
		{"hello\\\nworld", "helloworld"},
		{`\\`, `\`},
		{`\'\"`, `'"`},
		{`\b\f\t\n\r\v\a`, "\b\f\t\n\r\v\a"},
		{`\000\001\376\377`, "\000\001\376\377"},
		{`\x00\x01\x7f\x80\xfe\xff`, "\x00\x01\x7f\x80\xfe\xff"},
		// vvv stays as is
		{`\u1234\U00001234\c`, `\u1234\U00001234\c`},
	})
}

func TestPyDecodeRawUnicodeEscape(t *testing.T) {
	testCodec(t, pydecodeRawUnicodeEscape, []CodecTestCase{
		{`hello`, "hello"},
		{"\x00\x01\x80\xfe\xff", "\u0000\u0001\u0080\u00fe\u00ff"},
		{`\`, `\`},
		{`\\`, `\\`},
		{`\\\`, `\\\`},
		{`\\\\`, `\\\\`},
		{`\u1234\U00004321`, "\u1234\U00004321"},
		{`\\u1234\\U00004321`, `\\u1234\\U00004321`},
		{`\\\u1234\\\U00004321`, "\\\\\u1234\\\\\U00004321"},
		{`\\\\u1234\\\\U00004321`, `\\\\u1234\\\\U00004321`},
		{`\\\\\u1234\\\\\U00004321`, "\\\\\\\\\u1234\\\\\\\\\U00004321"},
		// vvv stays as is
		{"hello\\\nworld", "hello\\\nworld"},
		{`\'\"`, `\'\"`},
		{`\b\f\t\n\r\v\a`, `\b\f\t\n\r\v\a`},
		{`\000\001\376\377`, `\000\001\376\377`},
		{`\x00\x01\x7f\x80\xfe\xff`, `\x00\x01\x7f\x80\xfe\xff`},
	})
}

func TestPyQuote(t *testing.T) {
	testCodec(t, func(in string) (string, error) { return pyquote(in), nil }, []CodecTestCase{
		{"", `""`},
		{"hello", `"hello"`},
		{`a"b\c`, `"a\"b\\c"`},
		{"\n\t\x00", `"\n\t\x00"`},
		{"\xff\x80", `"\xff\x80"`},
		{"мир", `"мир"`},
	})
}

func TestRepr(t *testing.T) {
	loop := NewList(NewInt(1))
	loop.Items = append(loop.Items, loop)

	m := NewMapping()
	m.Set(Bytes("self"), m)

	testv := []struct {
		in   Value
		want string
	}{
		{nil, "<nil>"},
		{None{}, "None"},
		{Bool(true), "True"},
		{Bool(false), "False"},
		{NewInt(-5), "-5"},
		{NewBigInt(bigInt("123456789012345678901234567890")), "123456789012345678901234567890"},
		{Float(1), "1.0"},
		{Float(1.5), "1.5"},
		{Float(1e-05), "1e-05"},
		{Float(1e22), "1e+22"},
		{Float(math.Inf(-1)), "-inf"},
		{Float(math.NaN()), "nan"},
		{Bytes("a'b"), `"a'b"`},
		{NewList(), "[]"},
		{NewTuple(), "()"},
		{NewTuple(NewInt(1)), "(1,)"},
		{NewTuple(NewInt(1), NewInt(2)), "(1, 2)"},
		{NewList(None{}, Bytes("x")), `[None, "x"]`},
		{NewMappingWithData(Bytes("a"), NewInt(1), NewInt(2), NewList()), `{"a": 1, 2: []}`},
		{Global{"decimal", "Decimal"}, "decimal.Decimal"},
		{PersistentID{Bytes("42")}, `persid("42")`},
		{&Reduce{Callable: Global{"decimal", "Decimal"}, Arg: NewTuple(Bytes("3.14"))},
			`reduce(decimal.Decimal, ("3.14",))`},
		{&Reduce{Callable: Global{"m", "f"}, Arg: NewTuple(), State: NewInt(1)},
			`reduce(m.f, (), state=1)`},
		{&Construct{Class: Global{"m", "C"}}, `construct(m.C, ())`},
		{&Construct{Class: Global{"m", "C"}, Args: NewTuple(NewInt(1)), State: NewMapping()},
			`construct(m.C, (1,), state={})`},
		{loop, "[1, [...]]"},
		{m, `{"self": {...}}`},
	}

	for _, tt := range testv {
		if s := Repr(tt.in); s != tt.want {
			t.Errorf("repr:\nhave: %s\nwant: %s", s, tt.want)
		}
	}

	// shared, but not cyclic, value is shown at every place
	shared := NewList(NewInt(7))
	if s := Repr(NewTuple(shared, shared)); s != "([7], [7])" {
		t.Errorf("repr shared: %s", s)
	}
}

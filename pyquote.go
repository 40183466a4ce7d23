package ogtree

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// pyquote, similarly to strconv.Quote, quotes s with " but does not use "\u" and "\U" inside.
//
// We need to avoid \u and friends, since for byte strings Python translates
// \u to \\u, not an UTF-8 character. Repr output can thus be pasted into
// Python as a bytes literal.
func pyquote(s string) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 0, len(s))

	for {
		r, width := utf8.DecodeRuneInString(s)
		if width == 0 {
			break
		}

		emitRaw := false

		switch {
		// invalid & everything else goes in numeric byte escapes
		case r == utf8.RuneError:
			fallthrough
		default:
			emitRaw = true

		case r == '\\' || r == '"':
			out = append(out, '\\', byte(r))

		case strconv.IsPrint(r):
			out = append(out, s[:width]...)

		case r < ' ':
			rq := strconv.QuoteRune(r) // e.g. "'\n'"
			rq = rq[1:len(rq)-1]       // ->   `\n`
			out = append(out, rq...)
		}

		if emitRaw {
			for i := 0; i < width; i++ {
				out = append(out, '\\', 'x', hexdigits[s[i]>>4], hexdigits[s[i]&0xf])
			}
		}

		s = s[width:]
	}

	return "\"" + string(out) + "\""
}

// pydecodeStringEscape decodes input according to "string-escape" Python codec.
//
// The codec is essentially defined here:
// https://github.com/python/cpython/blob/v2.7.15-198-g69d0bc1430d/Objects/stringobject.c#L600
func pydecodeStringEscape(s string) (string, error) {
	out := make([]byte, 0, len(s))

loop:
	for {
		r, width := utf8.DecodeRuneInString(s)
		if width == 0 {
			break
		}

		// regular UTF-8 character
		if r != '\\' {
			out = append(out, s[:width]...)
			s = s[width:]
			continue
		}

		if len(s) < 2 {
			return "", strconv.ErrSyntax
		}

		switch c := s[1]; c {
		// \ LF -> just skip
		case '\n':
			s = s[2:]
			continue loop

		// \\ -> \
		case '\\':
			out = append(out, '\\')
			s = s[2:]
			continue loop

		// \' \"  (yes, both quotes are allowed to be escaped).
		//
		// also: both quotes are allowed to be _unescaped_ - e.g. Python
		// unpickles "S'hel'lo'\n." as "hel'lo".
		case '\'', '"':
			out = append(out, c)
			s = s[2:]
			continue loop

		// \c (any character without special meaning) -> \ and proceed with C
		default:
			out = append(out, '\\')
			s = s[1:] // not skipping c
			continue loop

		// escapes we handle (NOTE no \u \U for strings)
		case 'b', 'f', 't', 'n', 'r', 'v', 'a': // control characters
		case '0', '1', '2', '3', '4', '5', '6', '7': // octals
		case 'x': // hex
		}

		// s starts with a good/known string escape prefix -> reuse unquoteChar.
		r, _, tail, err := strconv.UnquoteChar(s, 0)
		if err != nil {
			return "", err
		}

		// all above escapes must produce single byte. This way we can
		// append it directly, not play rune -> string UTF-8 encoding
		// games (which break on e.g. "\x80" -> "\u0080" (= "\xc2x80").
		c := byte(r)
		if r != rune(c) {
			panic(fmt.Sprintf("pydecode: string-escape: non-byte escaped rune %q (% x  ; from %q)",
				r, r, s))
		}

		out = append(out, c)
		s = tail
	}

	return string(out), nil
}

// pydecodeRawUnicodeEscape decodes input according to "raw-unicode-escape" Python codec.
//
// Only \uXXXX and \UXXXXXXXX are escapes, and only when preceded by an odd
// number of backslashes. Every other input byte is a Latin-1 character. The
// result is UTF-8.
func pydecodeRawUnicodeEscape(s string) (string, error) {
	out := make([]byte, 0, len(s))

	for len(s) > 0 {
		c := s[0]
		if c != '\\' {
			out = utf8.AppendRune(out, rune(c))
			s = s[1:]
			continue
		}

		// run of backslashes: only the last one can start an escape
		n := 1
		for n < len(s) && s[n] == '\\' {
			n++
		}
		if n%2 == 0 || n == len(s) || !(s[n] == 'u' || s[n] == 'U') {
			out = append(out, s[:n]...)
			s = s[n:]
			continue
		}

		out = append(out, s[:n-1]...)
		s = s[n:] // at u|U

		width := 4
		if s[0] == 'U' {
			width = 8
		}
		if len(s) < 1+width {
			return "", strconv.ErrSyntax
		}
		r, err := strconv.ParseUint(s[1:1+width], 16, 32)
		if err != nil || r > utf8.MaxRune {
			return "", strconv.ErrSyntax
		}
		out = utf8.AppendRune(out, rune(r))
		s = s[1+width:]
	}

	return string(out), nil
}

// Repr returns Python-like representation of v.
//
// Byte strings are quoted with pyquote; placeholders are shown as calls, e.g.
// reduce(mod.f, (1,)). A container that contains itself is shown as [...],
// {...} or (...) at the point of recursion, the same way Python does.
func Repr(v Value) string {
	var b strings.Builder
	r := reprState{w: &b, active: make(map[Value]bool)}
	r.repr(v)
	return b.String()
}

type reprState struct {
	w      *strings.Builder
	active map[Value]bool // containers on the current path
}

func (r *reprState) repr(x Value) {
	w := r.w
	switch v := x.(type) {
	case nil:
		w.WriteString("<nil>")
	case None:
		w.WriteString("None")
	case Bool:
		if v {
			w.WriteString("True")
		} else {
			w.WriteString("False")
		}
	case Int:
		w.WriteString(v.String())
	case Float:
		w.WriteString(reprFloat(float64(v)))
	case Bytes:
		w.WriteString(pyquote(string(v)))
	case Global:
		w.WriteString(v.String())
	case PersistentID:
		w.WriteString("persid(")
		r.repr(v.ID)
		w.WriteString(")")

	case *Sequence:
		open, close := "[", "]"
		if v.Tuple {
			open, close = "(", ")"
		}
		if r.enter(v, open+"..."+close) {
			return
		}
		w.WriteString(open)
		for i, item := range v.Items {
			if i > 0 {
				w.WriteString(", ")
			}
			r.repr(item)
		}
		if v.Tuple && len(v.Items) == 1 {
			w.WriteString(",")
		}
		w.WriteString(close)
		delete(r.active, v)

	case *Mapping:
		if r.enter(v, "{...}") {
			return
		}
		w.WriteString("{")
		i := 0
		for k, val := range v.Iter() {
			if i > 0 {
				w.WriteString(", ")
			}
			r.repr(k)
			w.WriteString(": ")
			r.repr(val)
			i++
		}
		w.WriteString("}")
		delete(r.active, v)

	case *Reduce:
		if r.enter(v, "reduce(...)") {
			return
		}
		w.WriteString("reduce(")
		r.repr(v.Callable)
		w.WriteString(", ")
		r.repr(v.Arg)
		r.state(v.State)
		w.WriteString(")")
		delete(r.active, v)

	case *Construct:
		if r.enter(v, "construct(...)") {
			return
		}
		w.WriteString("construct(")
		r.repr(v.Class)
		w.WriteString(", ")
		if v.Args != nil {
			r.repr(v.Args)
		} else {
			w.WriteString("()")
		}
		r.state(v.State)
		w.WriteString(")")
		delete(r.active, v)

	default:
		fmt.Fprintf(w, "<%T>", x)
	}
}

// enter marks container x as being printed.
// If x is already being printed, elided is emitted instead and enter returns true.
func (r *reprState) enter(x Value, elided string) bool {
	if r.active[x] {
		r.w.WriteString(elided)
		return true
	}
	r.active[x] = true
	return false
}

func (r *reprState) state(state Value) {
	if state == nil {
		return
	}
	r.w.WriteString(", state=")
	r.repr(state)
}

// reprFloat formats f the way Python repr does: 1.0, 1e-05, inf, nan.
func reprFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, +1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

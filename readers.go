package ogtree

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"math/big"
)

// noEOF converts io.EOF into ErrTruncatedInput.
//
// Once an opcode was read, end of stream in its argument is always unexpected.
func noEOF(err error) error {
	if err == io.EOF {
		return ErrTruncatedInput
	}
	return err
}

// readUint8 reads 1-byte opcode argument.
func (d *Decoder) readUint8() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, noEOF(err)
	}
	d.pos++
	return b, nil
}

// readFull reads exactly len(b) bytes of opcode argument.
func (d *Decoder) readFull(b []byte) error {
	n, err := io.ReadFull(d.r, b)
	d.pos += int64(n)
	return noEOF(err)
}

// readUintLE reads n-byte little-endian unsigned integer; n ≤ 8.
//
// value = Σ byte[i]·256^i
func (d *Decoder) readUintLE(n int) (uint64, error) {
	var b [8]byte
	if err := d.readFull(b[:n]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// readFloat64BE reads 8-byte big-endian IEEE-754 float.
func (d *Decoder) readFloat64BE() (float64, error) {
	var b [8]byte
	if err := d.readFull(b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}

// readLine reads next line from pickle stream.
//
// returned line does not contain \n.
// returned line is valid only till next call to readLine.
func (d *Decoder) readLine() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	d.line = d.line[:0]
	for {
		data, err = d.r.ReadSlice('\n')
		d.pos += int64(len(data))
		d.line = append(d.line, data...)

		if lim := d.limits.MaxLen; lim >= 0 && int64(len(d.line)) > lim+1 {
			return nil, limitf("line longer than %d bytes", lim)
		}

		// either have read till \n or got another error
		if err != bufio.ErrBufferFull {
			break
		}
	}
	if err != nil {
		// a line is always terminated by \n; EOF before it is truncation
		return nil, noEOF(err)
	}

	// trim trailing \n
	return d.line[:len(d.line)-1], nil
}

// readBytes reads n bytes of opcode argument verbatim.
func (d *Decoder) readBytes(n uint64) (Bytes, error) {
	if lim := d.limits.MaxLen; lim >= 0 && n > uint64(lim) {
		return "", limitf("argument of %d bytes > %d", n, lim)
	}
	if n > math.MaxInt64 {
		return "", limitf("argument of %d bytes", n)
	}

	d.buf.Reset()
	// don't allow malicious `BINSTRING <bigsize> nodata` to make us out of memory
	prealloc := int(n)
	if maxgrow := 0x10000; n > uint64(maxgrow) {
		prealloc = maxgrow
	}
	d.buf.Grow(prealloc)
	copied, err := io.CopyN(&d.buf, d.r, int64(n))
	d.pos += copied
	if err != nil {
		return "", noEOF(err)
	}
	return Bytes(d.buf.String()), nil
}

// parseDecimal decodes text argument of INT, LONG and FLOAT.
//
// The accepted grammar is
//
//	-?[0-9]*\.?[0-9]*L?
//
// The digits are accumulated into one magnitude regardless of the decimal
// point. Without a decimal point the result is Int. With it, the magnitude
// is divided by 10^(number of digits after the point) and the result is
// Float. A trailing L (Python 2 long marker) is accepted and ignored.
func parseDecimal(text []byte) (Value, error) {
	var (
		mag    = new(big.Int)
		neg    bool
		point  bool
		suffix bool
		frac   int
		digits int64 // accumulated in small chunks to avoid big.Int ops per digit
		scale  int64 = 1
	)

	flush := func() {
		if scale == 1 {
			return
		}
		mag.Mul(mag, big.NewInt(scale))
		mag.Add(mag, big.NewInt(digits))
		digits, scale = 0, 1
	}

	for i, c := range text {
		switch {
		case suffix:
			return nil, badOperandf("decimal %q: data after L", text)
		case c == '-' && i == 0:
			neg = true
		case c == '.' && !point:
			point = true
		case c == 'L':
			suffix = true
		case '0' <= c && c <= '9':
			digits = digits*10 + int64(c-'0')
			scale *= 10
			if scale == 1e18 {
				flush()
			}
			if point {
				frac++
			}
		default:
			return nil, badOperandf("decimal %q: invalid character %q", text, c)
		}
	}
	flush()

	if !point {
		if neg {
			mag.Neg(mag)
		}
		return Int{n: mag}, nil
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(frac)), nil)
	f, _ := new(big.Rat).SetFrac(mag, divisor).Float64()
	if neg {
		f = -f
	}
	return Float(f), nil
}

// decodeLong decodes unsigned little-endian integer as used by LONG1 and
// LONG4. Empty data is 0.
func decodeLong(data []byte) *big.Int {
	be := make([]byte, len(data))
	for i, b := range data {
		be[len(data)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}

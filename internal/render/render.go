// Package render prints decoded pickle values as Python-like text, YAML or CBOR.
package render

import (
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/kisielk/ogtree"
)

// Format selects output representation.
type Format string

const (
	Repr Format = "repr" // Python-like literal, see ogtree.Repr
	YAML Format = "yaml"
	CBOR Format = "cbor"
)

// ParseFormat returns Format named by s. Empty s means Repr.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return Repr, nil
	case Repr, YAML, CBOR:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want repr, yaml or cbor)", s)
}

// ContentType returns MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case YAML:
		return "application/yaml"
	case CBOR:
		return "application/cbor"
	}
	return "text/plain; charset=utf-8"
}

// Binary reports whether f output is not text.
func (f Format) Binary() bool {
	return f == CBOR
}

// Render writes v to w in format f.
//
// Values that contain themselves can be rendered only as Repr; YAML and
// CBOR return an error wrapping ogtree.ErrCycle for them.
func Render(w io.Writer, v ogtree.Value, f Format) error {
	switch f {
	case Repr, "":
		_, err := io.WriteString(w, ogtree.Repr(v)+"\n")
		return err
	case YAML:
		return renderYAML(w, v)
	case CBOR:
		data, err := MarshalCBOR(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("unknown format %q", string(f))
}

// Digest returns hex-encoded BLAKE2b-256 of data.
//
// It is used to identify inputs in logs without printing them.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// walker tracks containers on the current path so that cycles are
// detected while shared subtrees are still rendered.
type walker struct {
	active map[ogtree.Value]bool
}

func (w *walker) enter(x ogtree.Value) error {
	if w.active == nil {
		w.active = make(map[ogtree.Value]bool)
	}
	if w.active[x] {
		return fmt.Errorf("%T: %w", x, ogtree.ErrCycle)
	}
	w.active[x] = true
	return nil
}

func (w *walker) leave(x ogtree.Value) {
	delete(w.active, x)
}

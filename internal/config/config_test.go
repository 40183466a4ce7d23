package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kisielk/ogtree"
	"github.com/kisielk/ogtree/internal/render"
)

const sample = `
[decoder]
max-steps = 1000
max-memo = -1
decode-escapes = true

[[extension]]
code = 1
module = "decimal"
name = "Decimal"

[[extension]]
code = 300
module = "collections"
name = "OrderedDict"

[output]
format = "yaml"

[server]
addr = ":9000"
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample), "sample.toml")
	require.NoError(t, err)

	assert.Equal(t, 1000, c.Decoder.MaxSteps)
	assert.Equal(t, -1, c.Decoder.MaxMemo)
	assert.True(t, c.Decoder.DecodeEscapes)
	assert.Len(t, c.Extensions, 2)
	assert.Equal(t, render.YAML, c.Format())
	assert.Equal(t, ":9000", c.Server.Addr)

	// not in the file: default
	assert.Equal(t, int64(16<<20), c.Server.MaxBody)

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	dc := c.DecoderConfig(logger)
	assert.Same(t, logger, dc.Logger)
	assert.True(t, dc.DecodeEscapes)
	assert.Equal(t, 1000, dc.Limits.MaxSteps)
	assert.Equal(t, 0, dc.Limits.MaxStack)
	assert.Equal(t, ogtree.Global{Module: "collections", Name: "OrderedDict"}, dc.Extensions[300])

	// the registry drives EXT2
	v, err := ogtree.Unpickle([]byte("\x83\x2c\x01)\x81."), dc)
	require.NoError(t, err)
	assert.Equal(t, "construct(collections.OrderedDict, ())", ogtree.Repr(v))
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, render.Repr, c.Format())

	dc := c.DecoderConfig(nil)
	assert.Nil(t, dc.Extensions)
	assert.Nil(t, dc.Logger)
	assert.Equal(t, ogtree.Limits{}, dc.Limits)
}

func TestParseError(t *testing.T) {
	for _, tt := range []struct {
		name, in string
	}{
		{"syntax", "[decoder\n"},
		{"type", "[decoder]\nmax-steps = \"many\"\n"},
		{"format", "[output]\nformat = \"json\"\n"},
		{"dup", "[[extension]]\ncode = 1\nmodule = \"a\"\nname = \"b\"\n" +
			"[[extension]]\ncode = 1\nmodule = \"c\"\nname = \"d\"\n"},
		{"zero code", "[[extension]]\nmodule = \"a\"\nname = \"b\"\n"},
		{"no name", "[[extension]]\ncode = 2\nmodule = \"a\"\n"},
		{"max-body", "[server]\nmax-body = -1\n"},
	} {
		_, err := Parse([]byte(tt.in), "x.toml")
		assert.Error(t, err, tt.name)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ogtree.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, render.YAML, c.Format())

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kisielk/ogtree"
)

func TestRun(t *testing.T) {
	logger := zap.NewNop()

	for _, tt := range []struct {
		name  string
		opts  options
		input string
		want  string
	}{
		{"raw", options{}, "(K\x01K\x02t.", "(1, 2)\n"},
		{"trailing", options{}, "N.N.", "None\n"},
		{"all", options{all: true}, "N.I7\n.", "None\n7\n"},
		{"base64", options{base64: true}, "STUKLg==\n", "5\n"},
		{"signed", options{signed: true}, "c2lnOkk1Ci4=", "5\n"},
		{"escapes", options{escapes: true}, "S'a\\nb'\n.", "\"a\\nb\"\n"},
		{"yaml", options{format: "yaml"}, "]K\x01a.", "- 1\n"},
	} {
		var out bytes.Buffer
		err := run(tt.opts, nil, strings.NewReader(tt.input), &out, logger)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, out.String(), tt.name)
	}
}

func TestRunAllMemo(t *testing.T) {
	// second pickle refers to memo entry from the first one
	var out bytes.Buffer
	err := run(options{all: true}, []string{"-"}, strings.NewReader("]q\x00.h\x00."), &out, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "[]\n[]\n", out.String())
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.pickle")
	require.NoError(t, os.WriteFile(input, []byte("cos\nsystem\n(S'ls'\ntR."), 0o644))

	conf := filepath.Join(dir, "ogtree.toml")
	require.NoError(t, os.WriteFile(conf, []byte("[output]\nformat = \"yaml\"\n"), 0o644))

	var out bytes.Buffer
	err := run(options{config: conf}, []string{input}, nil, &out, zap.NewNop())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "!reduce")
	assert.Contains(t, out.String(), "!global")
}

func TestRunError(t *testing.T) {
	for _, tt := range []struct {
		name  string
		opts  options
		args  []string
		input string
	}{
		{"empty", options{}, nil, ""},
		{"empty all", options{all: true}, nil, ""},
		{"broken", options{}, nil, "K\x01t."},
		{"broken second", options{all: true}, nil, "N.t."},
		{"both encodings", options{base64: true, signed: true}, nil, "STUKLg=="},
		{"all base64", options{all: true, base64: true}, nil, "STUKLg=="},
		{"format", options{format: "xml"}, nil, "N."},
		{"args", options{}, []string{"a", "b"}, "N."},
		{"missing file", options{}, []string{filepath.Join(t.TempDir(), "none")}, ""},
		{"missing config", options{config: filepath.Join(t.TempDir(), "none.toml")}, nil, "N."},
	} {
		err := run(tt.opts, tt.args, strings.NewReader(tt.input), &bytes.Buffer{}, zap.NewNop())
		assert.Error(t, err, tt.name)
	}

	err := run(options{}, nil, strings.NewReader(""), &bytes.Buffer{}, zap.NewNop())
	assert.ErrorIs(t, err, ogtree.ErrTruncatedInput)
}

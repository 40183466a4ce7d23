// Package config handles ogtree.toml configuration of the ogtree tool.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/kisielk/ogtree"
	"github.com/kisielk/ogtree/internal/render"
)

// Config represents an ogtree.toml configuration.
type Config struct {
	Decoder    Decoder     `toml:"decoder"`
	Extensions []Extension `toml:"extension"`
	Output     Output      `toml:"output"`
	Server     Server      `toml:"server"`
}

// Decoder configures decoding limits and string handling.
//
// Zero limits mean ogtree defaults; negative limits mean no limit.
type Decoder struct {
	MaxSteps      int   `toml:"max-steps"`
	MaxStack      int   `toml:"max-stack"`
	MaxMemo       int   `toml:"max-memo"`
	MaxLen        int64 `toml:"max-len"`
	DecodeEscapes bool  `toml:"decode-escapes"`
}

// Extension is one entry of the extension registry, as registered in
// Python with copyreg.add_extension(module, name, code).
type Extension struct {
	Code   uint32 `toml:"code"`
	Module string `toml:"module"`
	Name   string `toml:"name"`
}

// Output configures how decoded values are printed.
type Output struct {
	Format string `toml:"format"`
}

// Server configures the HTTP inspection service.
type Server struct {
	Addr    string `toml:"addr"`
	MaxBody int64  `toml:"max-body"`
}

// Default returns configuration used when no file is given.
func Default() *Config {
	return &Config{
		Output: Output{Format: string(render.Repr)},
		Server: Server{Addr: "127.0.0.1:8080", MaxBody: 16 << 20},
	}
}

// Load parses configuration file at path.
//
// Settings absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses configuration from data. name is used in errors.
func Parse(data []byte, name string) (*Config, error) {
	c := Default()
	if _, err := toml.Decode(string(data), c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", name, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}

// Validate checks c for consistency.
func (c *Config) Validate() error {
	if _, err := render.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	seen := make(map[uint32]bool, len(c.Extensions))
	for i, ext := range c.Extensions {
		if ext.Code == 0 {
			return fmt.Errorf("extension #%d: code must be > 0", i)
		}
		if ext.Module == "" || ext.Name == "" {
			return fmt.Errorf("extension %d: module and name must be set", ext.Code)
		}
		if seen[ext.Code] {
			return fmt.Errorf("extension %d: duplicate code", ext.Code)
		}
		seen[ext.Code] = true
	}

	if c.Server.MaxBody < 0 {
		return fmt.Errorf("server: max-body must be ≥ 0")
	}
	return nil
}

// DecoderConfig returns decoder configuration corresponding to c.
//
// logger, if !nil, is used for opcode tracing.
func (c *Config) DecoderConfig(logger *zap.Logger) *ogtree.DecoderConfig {
	var exts ogtree.Extensions
	if len(c.Extensions) > 0 {
		exts = make(ogtree.Extensions, len(c.Extensions))
		for _, ext := range c.Extensions {
			exts[ext.Code] = ogtree.Global{
				Module: ogtree.Bytes(ext.Module),
				Name:   ogtree.Bytes(ext.Name),
			}
		}
	}

	return &ogtree.DecoderConfig{
		Extensions: exts,
		Limits: ogtree.Limits{
			MaxSteps: c.Decoder.MaxSteps,
			MaxStack: c.Decoder.MaxStack,
			MaxMemo:  c.Decoder.MaxMemo,
			MaxLen:   c.Decoder.MaxLen,
		},
		DecodeEscapes: c.Decoder.DecodeEscapes,
		Logger:        logger,
	}
}

// Format returns the configured output format.
func (c *Config) Format() render.Format {
	f, err := render.ParseFormat(c.Output.Format)
	if err != nil {
		return render.Repr
	}
	return f
}

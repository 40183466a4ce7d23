// Command ogtree decodes Python pickles without executing them and prints
// the resulting value tree.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/kisielk/ogtree"
	"github.com/kisielk/ogtree/internal/config"
	"github.com/kisielk/ogtree/internal/render"
	"github.com/kisielk/ogtree/internal/server"
)

type options struct {
	config  string
	base64  bool
	signed  bool
	format  string
	escapes bool
	verbose bool
	all     bool
	serve   bool
	addr    string
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "Configuration file (TOML)")
	flag.BoolVar(&opts.base64, "base64", false, "Input is base64 text")
	flag.BoolVar(&opts.signed, "signed", false, "Input is base64 of prefix:pickle; the prefix is not verified")
	flag.StringVar(&opts.format, "format", "", "Output format: repr, yaml or cbor")
	flag.BoolVar(&opts.escapes, "escapes", false, "Decode escapes in STRING and UNICODE arguments")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose output with opcode trace")
	flag.BoolVar(&opts.all, "all", false, "Decode all pickles in the input, not only the first")
	flag.BoolVar(&opts.serve, "serve", false, "Start HTTP decoding service")
	flag.StringVar(&opts.addr, "addr", "", "Address for -serve (default from config)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ogtree [options] [file|-]\n")
		fmt.Fprintf(os.Stderr, "       ogtree -serve [-addr host:port]\n\n")
		fmt.Fprintf(os.Stderr, "Decodes a pickle and prints it. Nothing in the pickle is executed.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, err := newLogger(opts.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if opts.serve {
		err = serve(opts, logger)
	} else {
		err = run(opts, flag.Args(), os.Stdin, os.Stdout, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig(opts options) (*config.Config, error) {
	if opts.config == "" {
		return config.Default(), nil
	}
	return config.Load(opts.config)
}

// run decodes input named by args and writes rendered values to stdout.
func run(opts options, args []string, stdin io.Reader, stdout io.Writer, logger *zap.Logger) error {
	if opts.base64 && opts.signed {
		return errors.New("-base64 and -signed are mutually exclusive")
	}
	if opts.all && (opts.base64 || opts.signed) {
		return errors.New("-all works only with raw input")
	}
	if len(args) > 1 {
		return errors.New("too many arguments")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	format := cfg.Format()
	if opts.format != "" {
		format, err = render.ParseFormat(opts.format)
		if err != nil {
			return err
		}
	}
	if format.Binary() && isTerminal(stdout) {
		return fmt.Errorf("refusing to write %s to terminal", format)
	}

	decConfig := cfg.DecoderConfig(logger)
	if opts.escapes {
		decConfig.DecodeEscapes = true
	}

	in := stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	logger.Debug("input",
		zap.String("digest", render.Digest(data)),
		zap.Int("size", len(data)))

	switch {
	case opts.base64:
		v, err := ogtree.UnpickleBase64(string(data), decConfig)
		if err != nil {
			return err
		}
		return render.Render(stdout, v, format)

	case opts.signed:
		v, err := ogtree.UnpickleSignedBase64(string(data), decConfig)
		if err != nil {
			return err
		}
		return render.Render(stdout, v, format)

	case !opts.all:
		v, err := ogtree.Unpickle(data, decConfig)
		if err != nil {
			return err
		}
		return render.Render(stdout, v, format)
	}

	// -all: pickles one after another share memo like with pickle.Unpickler
	dec := ogtree.NewDecoderWithConfig(bytes.NewReader(data), decConfig)
	for n := 0; ; n++ {
		v, err := dec.Decode()
		if err == io.EOF {
			if n == 0 {
				return &ogtree.DecodeError{Err: ogtree.ErrTruncatedInput}
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("pickle #%d: %w", n, err)
		}
		if err := render.Render(stdout, v, format); err != nil {
			return err
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func serve(opts options, logger *zap.Logger) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if opts.addr != "" {
		addr = opts.addr
	}
	decConfig := cfg.DecoderConfig(logger)
	if opts.escapes {
		decConfig.DecodeEscapes = true
	}

	s, err := server.NewServer(server.ServerConfig{
		ListenerAddr: addr,
		Logger:       logger,
		Decoder:      decConfig,
		MaxBody:      cfg.Server.MaxBody,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- s.Start()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutCtx); err != nil {
		return err
	}
	return <-errc
}

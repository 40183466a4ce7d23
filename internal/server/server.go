// Package server provides HTTP service that decodes pickles sent to it.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kisielk/ogtree"
	"github.com/kisielk/ogtree/internal/render"
)

// DefaultMaxBody is request body limit used when ServerConfig.MaxBody is 0.
const DefaultMaxBody = 16 << 20

type ServerConfig struct {
	ListenerAddr string
	Logger       *zap.Logger

	// Decoder is used for every request. Each request gets its own
	// decoder, so memo is never shared in between requests.
	Decoder *ogtree.DecoderConfig

	MaxBody int64
}

type Server struct {
	ServerConfig
	echoer *echo.Echo

	logger *zap.Logger
}

func NewServer(config ServerConfig) (*Server, error) {
	if config.Logger == nil {
		config.Logger, _ = zap.NewDevelopment()
	}
	if config.MaxBody == 0 {
		config.MaxBody = DefaultMaxBody
	}
	if config.MaxBody < 0 {
		return nil, fmt.Errorf("server: invalid body limit %d", config.MaxBody)
	}

	s := &Server{
		ServerConfig: config,
		logger:       config.Logger,
	}

	echoer := echo.New()
	echoer.HideBanner = true
	echoer.HidePort = true
	echoer.POST("/decode", s.handleDecode)
	echoer.GET("/healthz", s.handleHealth)
	s.echoer = echoer

	return s, nil
}

// Handler returns http.Handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.echoer
}

// Start serves on ListenerAddr until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("api server starting",
		zap.String("addr", s.ListenerAddr))
	err := s.echoer.Start(s.ListenerAddr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echoer.Shutdown(ctx)
}

func (s *Server) handleHealth(ectx echo.Context) error {
	return ectx.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

// handleDecode serves POST /decode?encoding=raw|base64|signed&format=repr|yaml|cbor.
func (s *Server) handleDecode(ectx echo.Context) error {
	format, err := render.ParseFormat(ectx.QueryParam("format"))
	if err != nil {
		return ectx.JSON(http.StatusBadRequest,
			map[string]any{
				"error": err.Error(),
			})
	}

	var unpickle func(data []byte) (ogtree.Value, error)
	switch encoding := ectx.QueryParam("encoding"); encoding {
	case "", "raw":
		unpickle = func(data []byte) (ogtree.Value, error) {
			return ogtree.Unpickle(data, s.Decoder)
		}
	case "base64":
		unpickle = func(data []byte) (ogtree.Value, error) {
			return ogtree.UnpickleBase64(string(data), s.Decoder)
		}
	case "signed":
		unpickle = func(data []byte) (ogtree.Value, error) {
			return ogtree.UnpickleSignedBase64(string(data), s.Decoder)
		}
	default:
		return ectx.JSON(http.StatusBadRequest,
			map[string]any{
				"error": fmt.Sprintf("unknown encoding %q (want raw, base64 or signed)", encoding),
			})
	}

	body, err := io.ReadAll(io.LimitReader(ectx.Request().Body, s.MaxBody+1))
	if err != nil {
		return ectx.JSON(http.StatusBadRequest,
			map[string]any{
				"error": err.Error(),
			})
	}
	if int64(len(body)) > s.MaxBody {
		return ectx.JSON(http.StatusRequestEntityTooLarge,
			map[string]any{
				"error": fmt.Sprintf("body exceeds %d bytes", s.MaxBody),
			})
	}

	digest := render.Digest(body)
	start := time.Now()
	v, err := unpickle(body)
	if err != nil {
		s.logger.Info("decode failed",
			zap.String("digest", digest),
			zap.Error(err))

		var e *ogtree.DecodeError
		if errors.As(err, &e) {
			return ectx.JSON(http.StatusUnprocessableEntity,
				map[string]any{
					"error": err.Error(),
					"op":    e.OpName(),
					"pos":   e.Pos,
				})
		}
		// invalid base64 or missing signature separator
		return ectx.JSON(http.StatusBadRequest,
			map[string]any{
				"error": err.Error(),
			})
	}

	var out bytes.Buffer
	if err := render.Render(&out, v, format); err != nil {
		return ectx.JSON(http.StatusUnprocessableEntity,
			map[string]any{
				"error": err.Error(),
			})
	}

	s.logger.Debug("decoded",
		zap.String("digest", digest),
		zap.Int("size", len(body)),
		zap.Duration("took", time.Since(start)))

	ectx.Response().Header().Set("X-Pickle-Digest", digest)
	return ectx.Blob(http.StatusOK, format.ContentType(), out.Bytes())
}

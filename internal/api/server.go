// Package api exposes the analysis service over HTTP with Echo.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"event-impact-lab/internal/config"
	"event-impact-lab/internal/observability"
)

// Server wraps the Echo HTTP server.
type Server struct {
	echo *echo.Echo
	cfg  config.Server
	log  zerolog.Logger
}

// NewServer creates a server with h's routes and /metrics mounted.
func NewServer(h *Handler, cfg config.Server, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(Recover(log))
	e.Use(RequestLogging(log))
	e.Use(RateLimit(cfg.RateLimit, cfg.RateBurst))

	h.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(observability.Handler()))

	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	return &Server{echo: e, cfg: cfg, log: log}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info().Msg("http server shutting down")
	return s.echo.Shutdown(shutdownCtx)
}

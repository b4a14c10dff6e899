package commands

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/wolfeidau/webstarter/internal/config"
	"github.com/wolfeidau/webstarter/internal/logger"
	"github.com/wolfeidau/webstarter/internal/server"
	"github.com/wolfeidau/webstarter/internal/telemetry"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:3000" env:"WEBSTARTER_LISTEN"`
	Port   int    `help:"port to listen on, overrides the port of --listen" default:"0" env:"PORT"`

	// Content configuration
	Dir             string            `help:"directory to serve" default:"dist" env:"WEBSTARTER_DIR"`
	Index           string            `help:"entry document answered on /" default:"index.html"`
	HistoryFallback bool              `help:"answer unknown routes with the entry document" default:"false"`
	Compress        bool              `help:"gzip responses" default:"true" negatable:""`
	Headers         map[string]string `help:"response headers added to every response"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins" env:"WEBSTARTER_CORS_ORIGINS"`

	Tracing bool `help:"enable tracing" default:"false" env:"WEBSTARTER_TRACING"`
}

func (s *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "webstarter-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	addr, err := listenAddr(s.Listen, s.Port)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Dir:             s.Dir,
		Index:           s.Index,
		HistoryFallback: s.HistoryFallback,
		Headers:         s.Headers,
		Compress:        s.Compress,
		CORSOrigins:     s.CORSOrigins,
		Instrument:      s.Tracing,
	}, log)

	log.Info().Str("version", globals.Version).Str("addr", addr).Str("dir", s.Dir).Msg("Starting server")

	return server.ListenAndServe(ctx, configureHTTPServer(addr, srv.Handler()))
}

// listenAddr replaces the port of listen when port is set.
func listenAddr(listen string, port int) (string, error) {
	host, listenPort, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listen, err)
	}

	if port == 0 {
		return listen, nil
	}
	if port < 1 || port > 65535 {
		return "", fmt.Errorf("%w: %d must be between 1 and 65535", config.ErrInvalidPort, port)
	}

	if strconv.Itoa(port) == listenPort {
		return listen, nil
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

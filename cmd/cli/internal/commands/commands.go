package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/webstarter/internal/buildconfig"
	"github.com/wolfeidau/webstarter/internal/config"
	"github.com/wolfeidau/webstarter/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string
}

// ProjectFlags select the project file and override its settings. NODE_ENV
// and PORT are read by the config package.
type ProjectFlags struct {
	File   string `help:"project file, webstarter.yaml is used when present" default:"" short:"f"`
	Mode   string `help:"build mode (production, development), overrides NODE_ENV" default:""`
	Port   int    `help:"server port, overrides PORT" default:"0"`
	Host   string `help:"development server host" default:""`
	Source string `help:"source directory" default:""`
	Output string `help:"output directory" default:""`
	Title  string `help:"entry document title" default:""`
}

func (f ProjectFlags) load() (*config.Project, error) {
	return config.Load(config.LoadOptions{
		File: f.File,
		Flags: config.Settings{
			Mode:   f.Mode,
			Port:   f.Port,
			Host:   f.Host,
			Source: f.Source,
			Output: f.Output,
			Title:  f.Title,
		},
	})
}

// compose builds the configuration for the project's mode.
func compose(project *config.Project) (buildconfig.Configuration, error) {
	cfg, err := project.Composer().Compose()
	if err != nil {
		return nil, fmt.Errorf("failed to compose configuration: %w", err)
	}

	log.Debug().Str("mode", project.Mode).Msg("Composed configuration")
	return cfg, nil
}

// startTelemetry enables OpenTelemetry export when tracing is set. The
// returned func flushes and stops the providers.
func startTelemetry(ctx context.Context, tracing bool, serviceName, version string) func() {
	if !tracing {
		return func() {}
	}

	log.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.InitTelemetry(ctx, serviceName, version)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	// No write timeout, live reload streams stay open
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

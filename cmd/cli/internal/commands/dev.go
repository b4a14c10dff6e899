package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/wolfeidau/webstarter/internal/assets"
	"github.com/wolfeidau/webstarter/internal/buildconfig"
	"github.com/wolfeidau/webstarter/internal/logger"
	"github.com/wolfeidau/webstarter/internal/server"
	"golang.org/x/sync/errgroup"
)

type DevCmd struct {
	ProjectFlags `embed:""`
	Tracing      bool `help:"enable tracing" default:"false" env:"WEBSTARTER_TRACING"`
}

func (d *DevCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopTelemetry := startTelemetry(ctx, d.Tracing, "webstarter-dev", globals.Version)
	defer stopTelemetry()

	project, err := d.load()
	if err != nil {
		return err
	}
	if project.Mode == "" {
		project.Mode = string(buildconfig.Development)
	}

	cfg, err := compose(project)
	if err != nil {
		return err
	}

	opts, err := assets.Translate(cfg)
	if err != nil {
		return fmt.Errorf("failed to translate configuration: %w", err)
	}

	srvCfg, addr, err := server.FromDevServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure dev server: %w", err)
	}
	srvCfg.ReloadPath = assets.LiveReloadPath
	srvCfg.Instrument = d.Tracing

	pipeline := assets.New(opts)
	srv := configureHTTPServer(addr, server.New(srvCfg, log).Handler())
	if srvCfg.Reloader != nil {
		srv.RegisterOnShutdown(srvCfg.Reloader.Close)
	}

	log.Info().Str("mode", project.Mode).Str("addr", addr).Str("dir", srvCfg.Dir).Msg("Starting dev server")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipeline.Watch(ctx, func(report assets.BuildReport) {
			if !report.OK() {
				return
			}
			if srvCfg.Reloader != nil {
				srvCfg.Reloader.Notify(fmt.Sprintf("%d outputs", len(report.Outputs)))
			}
		})
	})
	g.Go(func() error {
		return server.ListenAndServe(ctx, srv)
	})

	return g.Wait()
}

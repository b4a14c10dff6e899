package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/webstarter/internal/assets"
	"github.com/wolfeidau/webstarter/internal/logger"
)

type BuildCmd struct {
	ProjectFlags `embed:""`
	Tracing      bool `help:"enable tracing" default:"false" env:"WEBSTARTER_TRACING"`
}

func (b *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	stop := startTelemetry(ctx, b.Tracing, "webstarter-build", globals.Version)
	defer stop()

	project, err := b.load()
	if err != nil {
		return err
	}

	cfg, err := compose(project)
	if err != nil {
		return err
	}

	opts, err := assets.Translate(cfg)
	if err != nil {
		return fmt.Errorf("failed to translate configuration: %w", err)
	}

	log.Info().Str("mode", project.Mode).Str("version", globals.Version).Msg("Starting build")

	report, err := assets.New(opts).Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed with %d errors: %w", len(report.Errors), err)
	}

	for _, file := range report.Outputs {
		fmt.Println(file)
	}

	return nil
}

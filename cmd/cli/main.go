package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/webstarter/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Build   commands.BuildCmd  `cmd:"" help:"Build assets once for the selected mode"`
		Dev     commands.DevCmd    `cmd:"" help:"Watch assets and serve them with live reload"`
		Config  commands.ConfigCmd `cmd:"" help:"Print the composed build configuration"`
		Debug   bool               `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("webstarter"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}

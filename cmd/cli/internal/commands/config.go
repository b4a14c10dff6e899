package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/webstarter/internal/buildconfig"
	"github.com/wolfeidau/webstarter/internal/logger"
	"gopkg.in/yaml.v3"
)

type ConfigCmd struct {
	ProjectFlags `embed:""`
	Format       string `help:"output format (yaml, json)" default:"yaml" enum:"yaml,json"`

	out io.Writer
}

func (c *ConfigCmd) Run(ctx context.Context, globals *Globals) error {
	logger.Setup(globals.Debug)

	project, err := c.load()
	if err != nil {
		return err
	}

	cfg, err := compose(project)
	if err != nil {
		return err
	}

	fingerprint, err := buildconfig.Fingerprint(cfg)
	if err != nil {
		return fmt.Errorf("failed to fingerprint configuration: %w", err)
	}

	out := c.out
	if out == nil {
		out = os.Stdout
	}

	return writeConfig(out, c.Format, project.Mode, fingerprint, cfg)
}

func writeConfig(w io.Writer, format, mode string, fingerprint uint64, cfg buildconfig.Configuration) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"mode":          mode,
			"fingerprint":   fmt.Sprintf("%016x", fingerprint),
			"configuration": cfg,
		})
	case "yaml", "":
		if _, err := fmt.Fprintf(w, "# mode: %s\n# fingerprint: %016x\n", mode, fingerprint); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

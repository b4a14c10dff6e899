// Package config loads the process settings and the optional project file.
//
// Settings come from, in increasing precedence: built-in defaults, the
// environment, the project file and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/webstarter/internal/buildconfig"
	"github.com/wolfeidau/webstarter/internal/presets"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no project file is named and it exists.
const DefaultFile = "webstarter.yaml"

var (
	ErrInvalidEnvironment = errors.New("invalid environment")
	ErrInvalidPort        = errors.New("invalid port")
	ErrInvalidFile        = errors.New("invalid project file")
)

// Settings select the build mode and fill in the presets.
type Settings struct {
	// Build mode, production or development
	Mode string `env:"NODE_ENV" yaml:"mode,omitempty"`
	// Port for the static and development servers
	Port int `env:"PORT" yaml:"port,omitempty"`
	// Host the development server binds
	Host string `env:"WEBSTARTER_HOST" yaml:"host,omitempty"`
	// Source directory entry modules are resolved from
	Source string `env:"WEBSTARTER_SOURCE" yaml:"source,omitempty"`
	// Output directory for built files
	Output string `env:"WEBSTARTER_OUTPUT" yaml:"output,omitempty"`
	// Title of the entry document
	Title string `env:"WEBSTARTER_TITLE" yaml:"title,omitempty"`
}

// Defaults returns the settings used when nothing else is configured. The
// mode has no default.
func Defaults() Settings {
	return Settings{
		Port:   presets.DefaultPort,
		Host:   presets.DefaultHost,
		Source: presets.DefaultSourceDir,
		Output: presets.DefaultOutputDir,
		Title:  presets.DefaultTitle,
	}
}

// Presets returns the preset options for these settings.
func (s Settings) Presets() presets.Options {
	return presets.Options{
		SourceDir: s.Source,
		OutputDir: s.Output,
		Host:      s.Host,
		Port:      s.Port,
		Title:     s.Title,
	}
}

func (s Settings) validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("%w: %d must be between 1 and 65535", ErrInvalidPort, s.Port)
	}
	return nil
}

// Project is the loaded settings plus the user overlays from the project
// file, which are merged onto the presets.
type Project struct {
	Settings `yaml:",inline"`

	Common      buildconfig.Configuration `yaml:"common,omitempty"`
	Development buildconfig.Configuration `yaml:"development,omitempty"`
	Production  buildconfig.Configuration `yaml:"production,omitempty"`
}

// Apply merges the project overlays onto set.
func (p *Project) Apply(set buildconfig.Set) buildconfig.Set {
	return buildconfig.Set{
		Common:      buildconfig.Merge(set.Common, p.Common),
		Development: buildconfig.Merge(set.Development, p.Development),
		Production:  buildconfig.Merge(set.Production, p.Production),
	}
}

// Composer returns a composer for the project's mode over the presets with
// the project overlays applied.
func (p *Project) Composer() *buildconfig.Composer {
	return buildconfig.NewComposer(p.Mode, p.Apply(presets.Set(p.Presets())))
}

// LoadOptions control where settings are read from.
type LoadOptions struct {
	// Project file, DefaultFile is tried when empty
	File string
	// Environment to read, the process environment when nil
	Environ map[string]string
	// Flag values, zero fields are ignored
	Flags Settings
}

// Load reads the settings from every source and validates the result. Flags
// override the project file, which overrides the environment, except for
// the mode: a set NODE_ENV wins over the file.
func Load(opts LoadOptions) (*Project, error) {
	fromEnv, err := parseEnv(opts.Environ)
	if err != nil {
		return nil, err
	}

	project, err := readFile(opts.File)
	if err != nil {
		return nil, err
	}

	settings := Defaults()
	for _, layer := range []Settings{fromEnv, project.Settings, opts.Flags} {
		if err := mergo.Merge(&settings, layer, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("error merging settings: %w", err)
		}
	}

	if fromEnv.Mode != "" && opts.Flags.Mode == "" {
		if project.Mode != "" && project.Mode != fromEnv.Mode {
			log.Info().Str("env", fromEnv.Mode).Str("file", project.Mode).Msg("NODE_ENV overrides the project file mode")
		}
		settings.Mode = fromEnv.Mode
	}

	if err := settings.validate(); err != nil {
		return nil, err
	}

	project.Settings = settings
	return project, nil
}

func parseEnv(environ map[string]string) (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: environ}); err != nil {
		return s, fmt.Errorf("%w: %w", ErrInvalidEnvironment, err)
	}
	return s, nil
}

func readFile(path string) (*Project, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return &Project{}, nil
		}
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var project Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidFile, path, err)
	}

	log.Debug().Str("file", path).Msg("Loaded project file")
	return &project, nil
}

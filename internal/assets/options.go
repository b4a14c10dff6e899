package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// BuildOption is implemented by the rule and plugin handles of a
// Configuration that have an esbuild equivalent.
type BuildOption interface {
	ApplyBuild(opts *api.BuildOptions)
}

var (
	_ BuildOption = FileLoader{}
	_ BuildOption = Define{}
	_ BuildOption = Minify{}
	_ BuildOption = Splitting{}
	_ BuildOption = TreeShaking{}
	_ BuildOption = BrowserTargets{}
	_ BuildOption = LiveReload{}
	_ BuildOption = Clean{}
	_ BuildOption = Prune{}
	_ BuildOption = HTMLDocument{}
)

// FileLoader copies files with the given extensions to the output directory;
// importing one yields its public URL.
type FileLoader struct {
	Extensions []string `json:"extensions" yaml:"extensions"`
}

func (l FileLoader) ApplyBuild(opts *api.BuildOptions) {
	if opts.Loader == nil {
		opts.Loader = map[string]api.Loader{}
	}
	for _, ext := range l.Extensions {
		opts.Loader[normalizeExt(ext)] = api.LoaderFile
	}
}

// Define substitutes global identifiers with constant expressions.
type Define map[string]string

func (d Define) ApplyBuild(opts *api.BuildOptions) {
	if opts.Define == nil {
		opts.Define = map[string]string{}
	}
	maps.Copy(opts.Define, d)
}

// Minify minifies scripts and stylesheets.
type Minify struct{}

func (Minify) ApplyBuild(opts *api.BuildOptions) {
	opts.MinifyWhitespace = true
	opts.MinifyIdentifiers = true
	opts.MinifySyntax = true
}

// Splitting moves code shared between entries into separate chunks. It
// requires ES module output.
type Splitting struct{}

func (Splitting) ApplyBuild(opts *api.BuildOptions) {
	opts.Splitting = true
	opts.Format = api.FormatESModule
}

// TreeShaking drops unused exports.
type TreeShaking struct{}

func (TreeShaking) ApplyBuild(opts *api.BuildOptions) {
	opts.TreeShaking = api.TreeShakingTrue
}

// BrowserTargets lowers newer syntax for the listed browsers, given as name
// and version such as "chrome58" or "safari11".
type BrowserTargets struct {
	Browsers []string `json:"browsers" yaml:"browsers"`
}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

var browserPattern = regexp.MustCompile(`^([a-z]+)([0-9][0-9.]*)$`)

func (t BrowserTargets) ApplyBuild(opts *api.BuildOptions) {
	for _, browser := range t.Browsers {
		m := browserPattern.FindStringSubmatch(strings.ToLower(browser))
		if m == nil {
			log.Warn().Str("browser", browser).Msg("Ignoring malformed browser target")
			continue
		}
		name, ok := engineNames[m[1]]
		if !ok {
			log.Warn().Str("browser", browser).Msg("Ignoring unsupported browser target")
			continue
		}
		opts.Engines = append(opts.Engines, api.Engine{Name: name, Version: m[2]})
	}
}

// LiveReloadPath is where the development server streams reload events.
const LiveReloadPath = "/__livereload"

// LiveReload adds a snippet to every script that reloads the page when the
// server at Path reports a change.
type LiveReload struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

func (l LiveReload) ApplyBuild(opts *api.BuildOptions) {
	path := l.Path
	if path == "" {
		path = LiveReloadPath
	}

	snippet := fmt.Sprintf(`(() => { if (typeof EventSource !== "undefined") new EventSource(%q).addEventListener("change", () => location.reload()); })();`, path)

	if opts.Banner == nil {
		opts.Banner = map[string]string{}
	}
	if existing := opts.Banner["js"]; existing != "" {
		snippet = existing + "\n" + snippet
	}
	opts.Banner["js"] = snippet
}

// Clean removes the given paths, or the output directory when none are
// given, before every build. Paths must sit below the working directory.
type Clean struct {
	Paths []string `json:"paths,omitempty" yaml:"paths,omitempty"`
}

func (c Clean) ApplyBuild(opts *api.BuildOptions) {
	workingDir := opts.AbsWorkingDir
	paths := c.Paths
	if len(paths) == 0 {
		paths = []string{opts.Outdir}
	}

	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "clean",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				for _, p := range paths {
					if err := removeWithin(workingDir, p); err != nil {
						return api.OnStartResult{}, err
					}
				}
				return api.OnStartResult{}, nil
			})
		},
	})
}

func removeWithin(root, path string) error {
	target := absFrom(root, path)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to clean %s: outside of %s", target, root)
	}

	log.Debug().Str("path", target).Msg("Cleaning")
	return os.RemoveAll(target)
}

// Provide makes modules available as browser globals, keyed by global name,
// before any entry module runs. Names may carry a "window." prefix.
type Provide map[string]string

// Prune deletes output files matching the glob patterns once a build
// succeeds. Patterns are relative to the output directory. Deleting a
// source map also drops the sourceMappingURL comment of the file it maps.
type Prune struct {
	Patterns []string `json:"patterns" yaml:"patterns"`
}

func (p Prune) ApplyBuild(opts *api.BuildOptions) {
	outdir := opts.Outdir

	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "prune",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					return api.OnEndResult{}, nil
				}
				return api.OnEndResult{}, pruneOutputs(outdir, p.Patterns)
			})
		},
	})
}

func pruneOutputs(outdir string, patterns []string) error {
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(outdir, pattern))
		if err != nil {
			return fmt.Errorf("invalid prune pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			log.Debug().Str("file", m).Msg("Pruning output")
			if err := os.Remove(m); err != nil {
				return err
			}
			if strings.HasSuffix(m, ".map") {
				if err := unlinkSourceMap(strings.TrimSuffix(m, ".map"), filepath.Base(m)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// unlinkSourceMap removes the comment in file pointing at the source map
// named mapName. A missing file is ignored.
func unlinkSourceMap(file, mapName string) error {
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	re := regexp.MustCompile(`(?m)^[ \t]*(?://|/\*)# sourceMappingURL=` + regexp.QuoteMeta(mapName) + `.*\n?`)
	stripped := re.ReplaceAll(data, nil)
	if len(stripped) == len(data) {
		return nil
	}
	return os.WriteFile(file, stripped, 0o644) //nolint:gosec
}

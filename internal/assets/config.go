package assets

import (
	"fmt"
	"maps"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/webstarter/internal/buildconfig"
)

// Config is the esbuild view of a composed build configuration.
type Config struct {
	// Directory entry modules are resolved from
	Context string
	// Entry name to the modules it bundles, in import order
	Entries map[string][]string
	// Absolute output directory for built files
	OutputDir string
	// Where to write the esbuild metafile, empty to skip
	MetafilePath string
	// Options handed to esbuild
	Build api.BuildOptions
}

// EntryNames returns the entry names in sorted order.
func (c Config) EntryNames() []string {
	names := make([]string, 0, len(c.Entries))
	for name := range c.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Translate converts a composed Configuration into esbuild options.
//
// Recognized keys: context, entry, resolve.extensions, resolve.alias,
// output.path, output.filename, output.chunkFilename, output.assetFilename,
// output.publicPath, output.metafile, devtool, module.rules and plugins.
// Rules and plugins take effect when they implement BuildOption. Provide
// plugins are imported ahead of every entry.
func Translate(cfg buildconfig.Configuration) (Config, error) {
	var c Config

	wd, err := filepath.Abs(".")
	if err != nil {
		return c, err
	}

	dir, err := buildconfig.String(cfg, "context", ".")
	if err != nil {
		return c, err
	}
	c.Context = absFrom(wd, dir)

	c.Entries, err = entries(cfg)
	if err != nil {
		return c, err
	}

	outputPath, err := buildconfig.Require(cfg, "output.path")
	if err != nil {
		return c, err
	}
	out, ok := outputPath.(string)
	if !ok || out == "" {
		return c, fmt.Errorf("%w: output.path must be a non-empty string", buildconfig.ErrInvalidValue)
	}
	c.OutputDir = absFrom(wd, out)

	filename, err := buildconfig.String(cfg, "output.filename", "[name].js")
	if err != nil {
		return c, err
	}
	chunkFilename, err := buildconfig.String(cfg, "output.chunkFilename", "chunks/[name]-[hash].js")
	if err != nil {
		return c, err
	}
	assetFilename, err := buildconfig.String(cfg, "output.assetFilename", "assets/[name]-[hash]")
	if err != nil {
		return c, err
	}
	publicPath, err := buildconfig.String(cfg, "output.publicPath", "/")
	if err != nil {
		return c, err
	}
	metafile, err := buildconfig.String(cfg, "output.metafile", "")
	if err != nil {
		return c, err
	}
	if metafile != "" {
		c.MetafilePath = absFrom(c.OutputDir, metafile)
	}

	sourcemap, err := sourceMap(cfg)
	if err != nil {
		return c, err
	}

	extensions, err := buildconfig.Strings(cfg, "resolve.extensions")
	if err != nil {
		return c, err
	}
	alias, err := aliases(cfg)
	if err != nil {
		return c, err
	}

	rules, err := buildconfig.Slice(cfg, "module.rules")
	if err != nil {
		return c, err
	}
	plugins, err := buildconfig.Slice(cfg, "plugins")
	if err != nil {
		return c, err
	}

	c.Build = api.BuildOptions{
		EntryPoints:       entryPoints(c.Entries),
		AbsWorkingDir:     wd,
		Bundle:            true,
		Write:             true,
		Metafile:          true,
		Outdir:            c.OutputDir,
		EntryNames:        namePattern(filename),
		ChunkNames:        namePattern(chunkFilename),
		AssetNames:        namePattern(assetFilename),
		PublicPath:        publicPath,
		Platform:          api.PlatformBrowser,
		Sourcemap:         sourcemap,
		ResolveExtensions: normalizeExtensions(extensions),
		Alias:             alias,
		LogLevel:          api.LogLevelSilent,
		Plugins:           []api.Plugin{entryPlugin(c.Entries, c.Context, provided(plugins))},
	}

	apply(&c.Build, "rule", rules)
	apply(&c.Build, "plugin", plugins)

	return c, nil
}

func apply(opts *api.BuildOptions, kind string, handles []any) {
	for _, h := range handles {
		if _, ok := h.(Provide); ok {
			continue
		}
		opt, ok := h.(BuildOption)
		if !ok {
			log.Debug().Str("kind", kind).Str("type", fmt.Sprintf("%T", h)).Msg("Ignoring handle without esbuild equivalent")
			continue
		}
		opt.ApplyBuild(opts)
	}
}

// provided merges the Provide handles, later handles winning.
func provided(handles []any) Provide {
	var out Provide
	for _, h := range handles {
		p, ok := h.(Provide)
		if !ok {
			continue
		}
		if out == nil {
			out = Provide{}
		}
		maps.Copy(out, p)
	}
	return out
}

// entries accepts a single module, a list of modules, or a mapping of entry
// names to either. Unnamed entries are called "main".
func entries(cfg buildconfig.Configuration) (map[string][]string, error) {
	v, err := buildconfig.Require(cfg, "entry")
	if err != nil {
		return nil, err
	}

	named, err := buildconfig.Map(cfg, "entry")
	if err != nil {
		modules, err := modulesOf("entry", v)
		if err != nil {
			return nil, err
		}
		return map[string][]string{"main": modules}, nil
	}

	out := make(map[string][]string, len(named))
	for name, mods := range named {
		modules, err := modulesOf("entry."+name, mods)
		if err != nil {
			return nil, err
		}
		out[name] = modules
	}
	if len(out) == 0 {
		return nil, ErrNoEntryPoints
	}
	return out, nil
}

func modulesOf(path string, v any) ([]string, error) {
	if s, ok := v.(string); ok {
		return []string{s}, nil
	}
	modules, err := buildconfig.Strings(buildconfig.Configuration{"v": v}, "v")
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a module or a list of modules", buildconfig.ErrInvalidValue, path)
	}
	if len(modules) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoints, path)
	}
	return modules, nil
}

func aliases(cfg buildconfig.Configuration) (map[string]string, error) {
	m, err := buildconfig.Map(cfg, "resolve.alias")
	if err != nil || m == nil {
		return nil, err
	}

	out := make(map[string]string, len(m))
	for name, v := range m {
		target, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: resolve.alias[%s] must be a string, got %T", buildconfig.ErrInvalidValue, name, v)
		}
		out[name] = target
	}
	return out, nil
}

// sourceMap maps webpack style devtool values onto esbuild source maps.
func sourceMap(cfg buildconfig.Configuration) (api.SourceMap, error) {
	v, ok := buildconfig.Lookup(cfg, "devtool")
	if !ok || v == nil || v == false {
		return api.SourceMapNone, nil
	}

	devtool, ok := v.(string)
	if !ok {
		return api.SourceMapNone, fmt.Errorf("%w: devtool must be a string or false, got %T", buildconfig.ErrInvalidValue, v)
	}

	switch {
	case devtool == "":
		return api.SourceMapNone, nil
	case strings.HasPrefix(devtool, "eval"), strings.Contains(devtool, "inline"):
		return api.SourceMapInline, nil
	case strings.Contains(devtool, "hidden"), strings.Contains(devtool, "nosources"):
		return api.SourceMapExternal, nil
	case strings.HasSuffix(devtool, "source-map"):
		return api.SourceMapLinked, nil
	default:
		return api.SourceMapNone, fmt.Errorf("%w: unsupported devtool %q", buildconfig.ErrInvalidValue, devtool)
	}
}

// namePattern turns an output filename into an esbuild name template:
// esbuild adds the extension itself and has a single [hash] placeholder.
func namePattern(filename string) string {
	name := strings.NewReplacer("[chunkhash]", "[hash]", "[contenthash]", "[hash]").Replace(filename)
	name = strings.TrimSuffix(name, ".[ext]")
	if ext := filepath.Ext(name); !strings.Contains(ext, "[") {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

func normalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		out = append(out, normalizeExt(ext))
	}
	return out
}

func normalizeExt(ext string) string {
	if strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

func absFrom(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// Package presets holds the build configurations shipped with the starter:
// settings shared by every build plus the development and production
// overlays composed onto them.
package presets

import (
	"github.com/wolfeidau/webstarter/internal/assets"
	"github.com/wolfeidau/webstarter/internal/buildconfig"
)

const (
	DefaultSourceDir = "src"
	DefaultOutputDir = "dist"
	DefaultHost      = "0.0.0.0"
	DefaultPort      = 3000
	DefaultTitle     = "Home Page"
)

// Options are the project specific values the presets are filled in with.
type Options struct {
	SourceDir string
	OutputDir string
	Host      string
	Port      int
	Title     string
}

func (o Options) withDefaults() Options {
	if o.SourceDir == "" {
		o.SourceDir = DefaultSourceDir
	}
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	return o
}

// Set returns the common, development and production configurations.
// Every call builds fresh values.
func Set(opts Options) buildconfig.Set {
	opts = opts.withDefaults()
	return buildconfig.Set{
		Common:      Common(opts),
		Development: Development(opts),
		Production:  Production(opts),
	}
}

// Common is shared by both modes.
func Common(opts Options) buildconfig.Configuration {
	opts = opts.withDefaults()
	return buildconfig.Configuration{
		"context": opts.SourceDir,
		"entry": map[string]any{
			"app": []any{"./app", "./css/style", "jquery", "bootstrap", "waypoints"},
		},
		"resolve": map[string]any{
			"extensions": []any{".js", ".jsx", ".ts", ".tsx", ".css", ".json"},
			"alias": map[string]any{
				"waypoints": "waypoints/lib/jquery.waypoints.min.js",
				"sticky":    "waypoints/lib/shortcuts/sticky.min.js",
			},
		},
		"module": map[string]any{
			"rules": []any{
				assets.FileLoader{Extensions: []string{".woff", ".woff2", ".otf", ".ttf", ".eot"}},
				assets.FileLoader{Extensions: []string{".png", ".jpg", ".jpeg", ".gif", ".svg"}},
			},
		},
		"plugins": []any{
			assets.Provide{
				"$":             "jquery",
				"jQuery":        "jquery",
				"window.jQuery": "jquery",
			},
			assets.TreeShaking{},
			assets.HTMLDocument{
				Title:   opts.Title,
				Chunks:  []string{"app"},
				Exclude: []string{`style.*\.js$`},
				Minify:  true,
			},
		},
	}
}

// Development serves unminified bundles with inline source maps and
// reloads the browser after each rebuild.
func Development(opts Options) buildconfig.Configuration {
	opts = opts.withDefaults()
	return buildconfig.Configuration{
		"devtool": "inline-source-map",
		"output": map[string]any{
			"path":       opts.OutputDir,
			"publicPath": "/",
			"filename":   "public/js/[name].[hash].min.js",
		},
		"devServer": map[string]any{
			"contentBase":        opts.OutputDir,
			"hot":                true,
			"compress":           true,
			"host":               opts.Host,
			"port":               opts.Port,
			"historyApiFallback": true,
			"headers": map[string]any{
				"X-Title": "Web Starter",
			},
		},
		"plugins": []any{
			assets.Define{"process.env.NODE_ENV": `"development"`},
			assets.LiveReload{},
		},
	}
}

// Production writes minified, split bundles with external source maps.
func Production(opts Options) buildconfig.Configuration {
	opts = opts.withDefaults()
	return buildconfig.Configuration{
		"devtool": "source-map",
		"watch":   false,
		"output": map[string]any{
			"path":       opts.OutputDir,
			"publicPath": "/",
			"filename":   "public/js/[name].[chunkhash].min.js",
			"metafile":   "meta.json",
		},
		"plugins": []any{
			assets.Clean{},
			assets.Define{"process.env.NODE_ENV": `"production"`},
			assets.Minify{},
			assets.Splitting{},
			assets.BrowserTargets{Browsers: []string{"chrome58", "edge16", "firefox57", "safari11"}},
			assets.Prune{Patterns: []string{"public/js/*.css.map"}},
		},
	}
}

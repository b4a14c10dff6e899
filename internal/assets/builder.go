package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/webstarter/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Build runs esbuild once with the configured settings and loads metadata
func (p *Pipeline) Build(ctx context.Context) (BuildReport, error) {
	if len(p.config.Entries) == 0 {
		return BuildReport{}, ErrNoEntryPoints
	}

	log.Info().Strs("entrypoints", p.config.EntryNames()).Str("outdir", p.config.OutputDir).Msg("Building assets")

	started := time.Now()
	result := api.Build(p.config.Build)

	return p.finish(ctx, result, time.Since(started))
}

// Watch builds, then rebuilds whenever an input changes, calling onBuild
// after every build. It blocks until ctx is cancelled.
func (p *Pipeline) Watch(ctx context.Context, onBuild func(BuildReport)) error {
	if len(p.config.Entries) == 0 {
		return ErrNoEntryPoints
	}

	opts := p.config.Build
	opts.Plugins = append(slices.Clone(opts.Plugins), p.reportPlugin(ctx, onBuild))

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return fmt.Errorf("failed to create build context: %s", joinMessages(ctxErr.Errors))
	}
	defer buildCtx.Dispose()

	if err := buildCtx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}

	log.Info().Strs("entrypoints", p.config.EntryNames()).Str("context", p.config.Context).Msg("Watching assets")

	<-ctx.Done()

	log.Info().Msg("Stopped watching assets")
	return nil
}

func (p *Pipeline) reportPlugin(ctx context.Context, onBuild func(BuildReport)) api.Plugin {
	return api.Plugin{
		Name: "report",
		Setup: func(build api.PluginBuild) {
			var started time.Time

			build.OnStart(func() (api.OnStartResult, error) {
				started = time.Now()
				return api.OnStartResult{}, nil
			})

			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				report, err := p.finish(ctx, *result, time.Since(started))
				if err != nil && !errors.Is(err, ErrBuildFailed) {
					log.Error().Err(err).Msg("Failed to process build result")
				}
				if onBuild != nil {
					onBuild(report)
				}
				return api.OnEndResult{}, nil
			})
		},
	}
}

// finish records the outcome of a build and caches its metadata.
func (p *Pipeline) finish(ctx context.Context, result api.BuildResult, elapsed time.Duration) (BuildReport, error) {
	metrics := telemetry.GetMetrics()
	report := BuildReport{
		Warnings: len(result.Warnings),
		Duration: elapsed,
	}

	for _, msg := range result.Warnings {
		log.Warn().Str("warning", formatMessage(msg)).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", formatMessage(msg)).Msg("Build error")
			report.Errors = append(report.Errors, formatMessage(msg))
		}
		metrics.BuildsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failed")))
		metrics.BuildErrorsTotal.Add(ctx, int64(len(result.Errors)))
		return report, ErrBuildFailed
	}

	if p.config.MetafilePath != "" {
		if err := os.MkdirAll(filepath.Dir(p.config.MetafilePath), 0o755); err != nil {
			return report, err
		}
		if err := os.WriteFile(p.config.MetafilePath, []byte(result.Metafile), 0600); err != nil {
			return report, err
		}
	}

	// Parse and cache metadata
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return report, fmt.Errorf("failed to parse metafile: %w", err)
	}

	p.mu.Lock()
	p.metadata = &metadata
	p.mu.Unlock()

	report.Outputs = metadata.paths()
	for _, file := range report.Outputs {
		log.Debug().Str("file", file).Msg("Built file")
	}

	metrics.BuildsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "success")))
	metrics.BuildDuration.Record(ctx, elapsed.Seconds())

	log.Info().Int("outputs", len(report.Outputs)).Dur("duration", elapsed).Msg("Built assets")
	return report, nil
}

// LoadScripts returns the ordered list of script URLs needed for the given
// entry and the URL of the entry's own script
func (p *Pipeline) LoadScripts(entry string) ([]string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, "", ErrNotBuilt
	}

	assets, err := entryAssets(p.metadata, entry, p.resolver())
	if err != nil {
		return nil, "", err
	}
	return assets.Scripts, assets.Scripts[0], nil
}

func (p *Pipeline) resolver() urlResolver {
	return urlResolver{
		workingDir: p.config.Build.AbsWorkingDir,
		outputDir:  p.config.OutputDir,
		publicPath: p.config.Build.PublicPath,
	}
}

// EntryAssets lists the URLs an entry needs in the page: its script followed
// by the chunks it imports, and its stylesheet.
type EntryAssets struct {
	Scripts []string
	Styles  []string
}

func entryAssets(metadata *BuildMetadata, entry string, resolve urlResolver) (EntryAssets, error) {
	outputPath, info, ok := metadata.entryOutput(entry)
	if !ok {
		return EntryAssets{}, fmt.Errorf("%w: %s", ErrUnknownEntry, entry)
	}

	var assets EntryAssets
	scripts := []string{outputPath}
	visited := map[string]bool{outputPath: true}
	addDependencies(metadata, info, &scripts, visited)

	for _, s := range scripts {
		assets.Scripts = append(assets.Scripts, resolve.url(s))
	}
	if info.CSSBundle != "" {
		assets.Styles = append(assets.Styles, resolve.url(info.CSSBundle))
	}
	return assets, nil
}

func addDependencies(metadata *BuildMetadata, output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.Kind == "dynamic-import" || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, imp.Path)

		if chunkInfo, exists := metadata.Outputs[imp.Path]; exists {
			addDependencies(metadata, chunkInfo, scripts, visited)
		}
	}
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}

func joinMessages(msgs []api.Message) string {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, formatMessage(m))
	}
	return fmt.Sprint(texts)
}

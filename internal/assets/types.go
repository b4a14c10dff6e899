package assets

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
	CSSBundle  string       `json:"cssBundle"`
}

type ImportInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// entryOutput finds the output produced for the named entry.
func (m *BuildMetadata) entryOutput(name string) (string, OutputInfo, bool) {
	for outputPath, info := range m.Outputs {
		if isEntry(info.EntryPoint, name) && strings.HasSuffix(outputPath, ".js") {
			return outputPath, info, true
		}
	}
	return "", OutputInfo{}, false
}

// paths returns the output paths in sorted order.
func (m *BuildMetadata) paths() []string {
	out := make([]string, 0, len(m.Outputs))
	for p := range m.Outputs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// BuildReport summarises one build or rebuild.
type BuildReport struct {
	Errors   []string
	Warnings int
	Outputs  []string
	Duration time.Duration
}

// OK reports whether the build finished without errors.
func (r BuildReport) OK() bool {
	return len(r.Errors) == 0
}

// Pipeline manages the asset build process and script loading
type Pipeline struct {
	config   Config
	metadata *BuildMetadata
	mu       sync.RWMutex
}

// New creates a new asset pipeline with the given configuration
func New(config Config) *Pipeline {
	return &Pipeline{
		config: config,
	}
}

// Config returns the configuration the pipeline builds with.
func (p *Pipeline) Config() Config {
	return p.config
}

// urlResolver maps metafile output paths to URLs under publicPath.
type urlResolver struct {
	workingDir string
	outputDir  string
	publicPath string
}

func (u urlResolver) url(outputPath string) string {
	abs := outputPath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(u.workingDir, outputPath)
	}

	rel, err := filepath.Rel(u.outputDir, abs)
	if err != nil {
		rel = outputPath
	}

	prefix := strings.TrimSuffix(u.publicPath, "/")
	return prefix + "/" + filepath.ToSlash(rel)
}

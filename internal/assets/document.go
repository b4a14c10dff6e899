package assets

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"os"
	"path/filepath"
	"regexp"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

const defaultDocument = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{ .Title }}</title>
{{- range .Styles }}
<link rel="stylesheet" href="{{ . }}">
{{- end }}
</head>
<body>
{{- range .Scripts }}
<script type="module" src="{{ . }}"></script>
{{- end }}
</body>
</html>
`

// HTMLDocument renders the entry document into the output directory after
// each successful build, linking the scripts and stylesheets of the listed
// chunks. Assets whose URL matches an Exclude pattern are left out.
type HTMLDocument struct {
	Title    string   `json:"title" yaml:"title"`
	Template string   `json:"template,omitempty" yaml:"template,omitempty"`
	Filename string   `json:"filename,omitempty" yaml:"filename,omitempty"`
	Chunks   []string `json:"chunks,omitempty" yaml:"chunks,omitempty"`
	Exclude  []string `json:"excludeAssets,omitempty" yaml:"excludeAssets,omitempty"`
	// Drop whitespace between tags
	Minify bool `json:"minify,omitempty" yaml:"minify,omitempty"`
}

var interTagSpace = regexp.MustCompile(`>\s+<`)

func (d HTMLDocument) ApplyBuild(opts *api.BuildOptions) {
	opts.Metafile = true
	resolve := urlResolver{
		workingDir: opts.AbsWorkingDir,
		outputDir:  opts.Outdir,
		publicPath: opts.PublicPath,
	}

	opts.Plugins = append(opts.Plugins, api.Plugin{
		Name: "html-document",
		Setup: func(build api.PluginBuild) {
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					return api.OnEndResult{}, nil
				}
				return api.OnEndResult{}, d.write(result.Metafile, resolve)
			})
		},
	})
}

func (d HTMLDocument) write(metafile string, resolve urlResolver) error {
	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(metafile), &metadata); err != nil {
		return err
	}

	page, err := d.render(&metadata, resolve)
	if err != nil {
		return err
	}

	filename := d.Filename
	if filename == "" {
		filename = "index.html"
	}
	path := absFrom(resolve.outputDir, filename)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, page, 0o644); err != nil { //nolint:gosec
		return err
	}

	log.Debug().Str("file", path).Msg("Wrote entry document")
	return nil
}

// render executes the document template for a finished build.
func (d HTMLDocument) render(metadata *BuildMetadata, resolve urlResolver) ([]byte, error) {
	tmpl, err := d.template()
	if err != nil {
		return nil, err
	}

	exclude := make([]*regexp.Regexp, 0, len(d.Exclude))
	for _, pattern := range d.Exclude {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		exclude = append(exclude, re)
	}

	chunks := d.Chunks
	if len(chunks) == 0 {
		chunks = entryNames(metadata)
	}

	scripts, styles := []string{}, []string{}
	for _, chunk := range chunks {
		assets, err := entryAssets(metadata, chunk, resolve)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, without(assets.Scripts, exclude)...)
		styles = append(styles, without(assets.Styles, exclude)...)
	}
	data := map[string]any{
		"Title":   d.Title,
		"Scripts": scripts,
		"Styles":  styles,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	if d.Minify {
		return bytes.TrimSpace(interTagSpace.ReplaceAll(buf.Bytes(), []byte("><"))), nil
	}
	return buf.Bytes(), nil
}

func (d HTMLDocument) template() (*template.Template, error) {
	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
	}

	if d.Template == "" {
		return template.New("document").Funcs(funcs).Parse(defaultDocument)
	}
	return template.New(filepath.Base(d.Template)).Funcs(funcs).ParseFiles(d.Template)
}

func without(urls []string, exclude []*regexp.Regexp) []string {
	out := make([]string, 0, len(urls))
next:
	for _, u := range urls {
		for _, re := range exclude {
			if re.MatchString(u) {
				continue next
			}
		}
		out = append(out, u)
	}
	return out
}

// entryNames lists the named entries present in the metadata.
func entryNames(metadata *BuildMetadata) []string {
	var names []string
	for _, p := range metadata.paths() {
		ep := metadata.Outputs[p].EntryPoint
		if ep == "" || filepath.Ext(p) != ".js" {
			continue
		}
		names = append(names, trimNamespace(ep))
	}
	return names
}

func trimNamespace(entryPoint string) string {
	prefix := entryNamespace + ":"
	if len(entryPoint) > len(prefix) && entryPoint[:len(prefix)] == prefix {
		return entryPoint[len(prefix):]
	}
	return entryPoint
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return buf.String()
}

package assets

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// entryNamespace holds the synthetic modules standing in for named entries.
// Each one imports the entry's modules in order, so an entry made of several
// modules (script, stylesheet, vendor libraries) becomes one esbuild entry
// point whose [name] is the entry name.
const entryNamespace = "webstarter-entry"

// globalsModule is imported first by every entry when globals are provided.
const globalsModule = ":globals"

func entryPoints(entries map[string][]string) []string {
	names := Config{Entries: entries}.EntryNames()
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, entryNamespace+":"+name)
	}
	return out
}

func isEntry(entryPoint, name string) bool {
	return entryPoint == entryNamespace+":"+name || entryPoint == name
}

func entryPlugin(entries map[string][]string, resolveDir string, globals Provide) api.Plugin {
	return api.Plugin{
		Name: "entries",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: "^" + entryNamespace + ":"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return api.OnResolveResult{
						Path:      strings.TrimPrefix(args.Path, entryNamespace+":"),
						Namespace: entryNamespace,
					}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: entryNamespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					var contents string
					if args.Path == globalsModule && len(globals) > 0 {
						contents = globalsSource(globals)
					} else {
						modules, ok := entries[args.Path]
						if !ok {
							return api.OnLoadResult{}, fmt.Errorf("unknown entry %q", args.Path)
						}
						if len(globals) > 0 {
							modules = append([]string{entryNamespace + ":" + globalsModule}, modules...)
						}
						contents = entrySource(modules)
					}
					return api.OnLoadResult{
						Contents:   &contents,
						ResolveDir: resolveDir,
						Loader:     api.LoaderJS,
					}, nil
				})
		},
	}
}

func entrySource(modules []string) string {
	var b strings.Builder
	for _, m := range modules {
		b.WriteString("import ")
		b.WriteString(strconv.Quote(m))
		b.WriteString(";\n")
	}
	return b.String()
}

// globalsSource assigns each provided module to its global names. It runs
// before the entry's own imports are evaluated.
func globalsSource(globals Provide) string {
	byModule := map[string][]string{}
	for name, module := range globals {
		name = strings.TrimPrefix(name, "window.")
		if !slices.Contains(byModule[module], name) {
			byModule[module] = append(byModule[module], name)
		}
	}

	modules := make([]string, 0, len(byModule))
	for module := range byModule {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	var b strings.Builder
	for i, module := range modules {
		names := byModule[module]
		sort.Strings(names)

		fmt.Fprintf(&b, "import * as m%d from %s;\n", i, strconv.Quote(module))
		fmt.Fprintf(&b, "const v%d = \"default\" in m%d ? m%d.default : m%d;\n", i, i, i, i)
		for _, name := range names {
			fmt.Fprintf(&b, "window[%s] = v%d;\n", strconv.Quote(name), i)
		}
	}
	return b.String()
}

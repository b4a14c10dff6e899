package assets

import "errors"

var (
	ErrNoEntryPoints = errors.New("no entry points found")
	ErrBuildFailed   = errors.New("esbuild failed with errors")
	ErrNotBuilt      = errors.New("assets not built yet, call Build() first")
	ErrUnknownEntry  = errors.New("entrypoint not found in metadata")
)

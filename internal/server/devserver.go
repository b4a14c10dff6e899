package server

import (
	"fmt"
	"net"
	"strconv"

	"github.com/wolfeidau/webstarter/internal/buildconfig"
)

const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 3000
)

// FromDevServer reads the devServer section of a composed configuration,
// returning the server config and the address to listen on. The content
// base falls back to output.path and the address to 0.0.0.0:3000.
func FromDevServer(cfg buildconfig.Configuration) (Config, string, error) {
	var out Config

	outputPath, err := buildconfig.String(cfg, "output.path", "")
	if err != nil {
		return out, "", err
	}

	if out.Dir, err = buildconfig.String(cfg, "devServer.contentBase", outputPath); err != nil {
		return out, "", err
	}
	if out.Dir == "" {
		return out, "", fmt.Errorf("%w: devServer.contentBase", buildconfig.ErrMissingValue)
	}

	host, err := buildconfig.String(cfg, "devServer.host", DefaultHost)
	if err != nil {
		return out, "", err
	}

	port, err := buildconfig.Int(cfg, "devServer.port", DefaultPort)
	if err != nil {
		return out, "", err
	}
	if port < 1 || port > 65535 {
		return out, "", fmt.Errorf("%w: devServer.port %d out of range", buildconfig.ErrInvalidValue, port)
	}

	if out.Compress, err = buildconfig.Bool(cfg, "devServer.compress", false); err != nil {
		return out, "", err
	}
	if out.HistoryFallback, err = buildconfig.Bool(cfg, "devServer.historyApiFallback", false); err != nil {
		return out, "", err
	}
	if out.Index, err = buildconfig.String(cfg, "devServer.index", DefaultIndex); err != nil {
		return out, "", err
	}
	if out.CORSOrigins, err = buildconfig.Strings(cfg, "devServer.allowedOrigins"); err != nil {
		return out, "", err
	}

	headers, err := buildconfig.Map(cfg, "devServer.headers")
	if err != nil {
		return out, "", err
	}
	if len(headers) > 0 {
		out.Headers = make(map[string]string, len(headers))
		for name, v := range headers {
			s, ok := v.(string)
			if !ok {
				return out, "", fmt.Errorf("%w: devServer.headers.%s must be a string, got %T", buildconfig.ErrInvalidValue, name, v)
			}
			out.Headers[name] = s
		}
	}

	hot, err := buildconfig.Bool(cfg, "devServer.hot", false)
	if err != nil {
		return out, "", err
	}
	if hot {
		out.Reloader = NewReloader()
	}

	return out, net.JoinHostPort(host, strconv.Itoa(port)), nil
}

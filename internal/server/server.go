// Package server serves a built output directory, answers the root path with
// the entry document and, in development, streams live reload events.
package server

import (
	"context"
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	httpmiddleware "github.com/wolfeidau/webstarter/internal/http"
	"github.com/wolfeidau/webstarter/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultIndex      = "index.html"
	DefaultReloadPath = "/__livereload"
)

// Config describes what the server serves and how.
type Config struct {
	// Directory holding the built assets
	Dir string
	// Entry document answered on "/", relative to Dir
	Index string
	// Answer extension-less paths that match no file with the entry document
	HistoryFallback bool
	// Headers added to every response
	Headers map[string]string
	// Gzip static responses
	Compress bool
	// Origins allowed to make cross-origin requests, none disables CORS
	CORSOrigins []string
	// Reloader streams reload events on ReloadPath when set
	Reloader   *Reloader
	ReloadPath string
	// Trace requests with OpenTelemetry
	Instrument bool
}

// Server wraps the static file handlers
type Server struct {
	cfg Config
	log zerolog.Logger
}

// New creates a server for cfg, filling in defaults.
func New(cfg Config, log zerolog.Logger) *Server {
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	if cfg.ReloadPath == "" {
		cfg.ReloadPath = DefaultReloadPath
	}
	return &Server{cfg: cfg, log: log}
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if s.cfg.Reloader != nil {
		mux.Handle("GET "+s.cfg.ReloadPath, s.cfg.Reloader)
	}

	var static http.Handler = s.static()
	if s.cfg.Compress {
		static = gzhttp.GzipHandler(static)
	}
	mux.Handle("/", static)

	middleware := []func(http.Handler) http.Handler{
		httpmiddleware.RequestIDMiddleware(),
		httpmiddleware.ClientIPMiddleware(),
		logger.HTTPRequests(s.log),
		httpmiddleware.HeadersMiddleware(s.cfg.Headers),
	}
	if len(s.cfg.CORSOrigins) > 0 {
		middleware = append(middleware, withCORS(s.cfg.CORSOrigins))
	}

	var handler http.Handler = mux
	if s.cfg.Instrument {
		handler = otelhttp.NewHandler(mux, "webstarter")
	}

	return httpmiddleware.Chain(handler, middleware...)
}

func (s *Server) static() http.Handler {
	root := http.Dir(s.cfg.Dir)
	files := http.FileServer(root)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		if r.URL.Path == "/" || (s.cfg.HistoryFallback && path.Ext(r.URL.Path) == "" && !exists(root, r.URL.Path)) {
			s.serveIndex(w, r)
			return
		}

		files.ServeHTTP(w, r)
	})
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := http.Dir(s.cfg.Dir).Open("/" + s.cfg.Index)
	if err != nil {
		s.log.Warn().Err(err).Str("index", s.cfg.Index).Msg("Entry document not found")
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, s.cfg.Index, info.ModTime(), f)
}

func exists(root http.FileSystem, name string) bool {
	f, err := root.Open(name)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func withCORS(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler
}

// ListenAndServe runs srv until ctx is cancelled, then shuts it down,
// allowing in-flight requests five seconds to finish.
func ListenAndServe(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

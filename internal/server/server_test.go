package server

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/webstarter/internal/buildconfig"
)

func writeDist(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>home</html>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "public", "js"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "public", "js", "app.js"), []byte("console.log('app')"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "large.css"), []byte(strings.Repeat("body{margin:0}\n", 400)), 0o600))
	return dir
}

func serve(t *testing.T, cfg Config, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	New(cfg, zerolog.Nop()).Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_static(t *testing.T) {
	dir := writeDist(t)

	tests := []struct {
		name     string
		cfg      Config
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{
			name:     "root serves entry document",
			cfg:      Config{Dir: dir},
			path:     "/",
			wantCode: http.StatusOK,
			wantBody: "<html>home</html>",
		},
		{
			name:     "asset served from directory",
			cfg:      Config{Dir: dir},
			path:     "/public/js/app.js",
			wantCode: http.StatusOK,
			wantBody: "console.log('app')",
		},
		{
			name:     "missing asset",
			cfg:      Config{Dir: dir},
			path:     "/public/js/missing.js",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown route without fallback",
			cfg:      Config{Dir: dir},
			path:     "/about",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown route with fallback",
			cfg:      Config{Dir: dir, HistoryFallback: true},
			path:     "/about/team",
			wantCode: http.StatusOK,
			wantBody: "<html>home</html>",
		},
		{
			name:     "fallback leaves missing files alone",
			cfg:      Config{Dir: dir, HistoryFallback: true},
			path:     "/missing.js",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "missing entry document",
			cfg:      Config{Dir: dir, Index: "home.html"},
			path:     "/",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "writes rejected",
			cfg:      Config{Dir: dir},
			method:   http.MethodPost,
			path:     "/",
			wantCode: http.StatusMethodNotAllowed,
		},
		{
			name:     "health",
			cfg:      Config{Dir: dir},
			path:     "/health",
			wantCode: http.StatusOK,
			wantBody: `{"status":"ok"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := serve(t, tt.cfg, httptest.NewRequest(method, tt.path, nil))
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				require.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestServer_headers(t *testing.T) {
	dir := writeDist(t)
	rec := serve(t, Config{
		Dir:     dir,
		Headers: map[string]string{"X-Frame-Options": "DENY"},
	}, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestServer_compress(t *testing.T) {
	dir := writeDist(t)

	req := httptest.NewRequest(http.MethodGet, "/large.css", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	rec := serve(t, Config{Dir: dir, Compress: true}, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	rec = serve(t, Config{Dir: dir}, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Content-Encoding"))
}

func TestServer_cors(t *testing.T) {
	dir := writeDist(t)

	req := httptest.NewRequest(http.MethodGet, "/public/js/app.js", nil)
	req.Header.Set("Origin", "http://localhost:8080")

	rec := serve(t, Config{Dir: dir, CORSOrigins: []string{"http://localhost:8080"}}, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(t, Config{Dir: dir}, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_liveReload(t *testing.T) {
	reloader := NewReloader()
	srv := httptest.NewServer(New(Config{Dir: writeDist(t), Reloader: reloader}, zerolog.Nop()).Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+DefaultReloadPath, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return reloader.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	reloader.Notify("rebuilt")

	lines := readEvent(t, bufio.NewReader(resp.Body))
	require.Equal(t, []string{"event: change", "data: rebuilt"}, lines)

	cancel()
	require.Eventually(t, func() bool { return reloader.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// readEvent returns the lines of the next event, skipping comments.
func readEvent(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, ":"):
		case line == "":
			if len(lines) > 0 {
				return lines
			}
		default:
			lines = append(lines, line)
		}
	}
}

func TestReloader_notifyWithoutClients(t *testing.T) {
	reloader := NewReloader()
	reloader.Notify("rebuilt")
	require.Equal(t, 0, reloader.Clients())
}

func TestFromDevServer(t *testing.T) {
	tests := []struct {
		name     string
		cfg      buildconfig.Configuration
		wantAddr string
		want     Config
		wantErr  error
		reloader bool
	}{
		{
			name:     "defaults from output path",
			cfg:      buildconfig.Configuration{"output": map[string]any{"path": "dist"}},
			wantAddr: "0.0.0.0:3000",
			want:     Config{Dir: "dist", Index: DefaultIndex, CORSOrigins: []string{}},
		},
		{
			name: "full dev server section",
			cfg: buildconfig.Configuration{
				"output": map[string]any{"path": "dist"},
				"devServer": map[string]any{
					"contentBase":        "public",
					"host":               "127.0.0.1",
					"port":               8080,
					"compress":           true,
					"historyApiFallback": true,
					"hot":                true,
					"headers":            map[string]any{"X-Frame-Options": "DENY"},
					"allowedOrigins":     []any{"http://localhost:8080"},
				},
			},
			wantAddr: "127.0.0.1:8080",
			want: Config{
				Dir:             "public",
				Index:           DefaultIndex,
				Compress:        true,
				HistoryFallback: true,
				Headers:         map[string]string{"X-Frame-Options": "DENY"},
				CORSOrigins:     []string{"http://localhost:8080"},
			},
			reloader: true,
		},
		{
			name:    "no content",
			cfg:     buildconfig.Configuration{},
			wantErr: buildconfig.ErrMissingValue,
		},
		{
			name: "port out of range",
			cfg: buildconfig.Configuration{
				"output":    map[string]any{"path": "dist"},
				"devServer": map[string]any{"port": 70000},
			},
			wantErr: buildconfig.ErrInvalidValue,
		},
		{
			name: "header value not a string",
			cfg: buildconfig.Configuration{
				"output":    map[string]any{"path": "dist"},
				"devServer": map[string]any{"headers": map[string]any{"X-Max": 1}},
			},
			wantErr: buildconfig.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, addr, err := FromDevServer(tt.cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantAddr, addr)
			require.Equal(t, tt.reloader, got.Reloader != nil)
			got.Reloader = nil
			require.Equal(t, tt.want, got)
		})
	}
}

func TestListenAndServe_shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	srv := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}

	done := make(chan error, 1)
	go func() {
		done <- ListenAndServe(ctx, srv)
	}()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestListenAndServe_shutdownWithReloadClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloader := NewReloader()
	srv := &http.Server{
		Addr:              freeAddr(t),
		Handler:           New(Config{Dir: writeDist(t), Reloader: reloader}, zerolog.Nop()).Handler(),
		ReadHeaderTimeout: time.Second,
	}
	srv.RegisterOnShutdown(reloader.Close)

	done := make(chan error, 1)
	go func() {
		done <- ListenAndServe(ctx, srv)
	}()

	var res *http.Response
	require.Eventually(t, func() bool {
		var err error
		res, err = http.Get("http://" + srv.Addr + DefaultReloadPath)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	defer res.Body.Close()

	line, err := bufio.NewReader(res.Body).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, ": connected\n", line)
	require.Equal(t, 1, reloader.Clients())

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
		require.Less(t, time.Since(start), 2*time.Second)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestReloader_close(t *testing.T) {
	reloader := NewReloader()
	reloader.Close()
	reloader.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, DefaultReloadPath, nil)

	finished := make(chan struct{})
	go func() {
		reloader.ServeHTTP(rec, req)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after close")
	}
	require.Equal(t, ": connected\n\n", rec.Body.String())
	require.Zero(t, reloader.Clients())
}

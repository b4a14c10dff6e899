package buildconfig

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lookupFixture() Configuration {
	return Configuration{
		"context": "src",
		"output": map[string]any{
			"path":     "dist",
			"metafile": 42,
		},
		"devServer": Configuration{
			"port":     float64(8080),
			"hot":      true,
			"fraction": 1.5,
		},
		"resolve": map[string]any{
			"extensions": []any{".js", ".ts"},
			"typed":      []string{".css"},
			"mixed":      []any{".js", 3},
		},
	}
}

func TestLookup(t *testing.T) {
	cfg := lookupFixture()

	v, ok := Lookup(cfg, "output.path")
	require.True(t, ok)
	require.Equal(t, "dist", v)

	_, ok = Lookup(cfg, "output.missing")
	require.False(t, ok)

	_, ok = Lookup(cfg, "context.nested")
	require.False(t, ok)
}

func TestRequire_missing(t *testing.T) {
	_, err := Require(lookupFixture(), "entry")
	require.ErrorIs(t, err, ErrMissingValue)
	require.Contains(t, err.Error(), "entry")
}

func TestString(t *testing.T) {
	cfg := lookupFixture()

	s, err := String(cfg, "output.path", "")
	require.NoError(t, err)
	require.Equal(t, "dist", s)

	s, err = String(cfg, "output.filename", "[name].js")
	require.NoError(t, err)
	require.Equal(t, "[name].js", s)

	_, err = String(cfg, "output.metafile", "")
	require.ErrorIs(t, err, ErrInvalidValue)
	require.Contains(t, err.Error(), "output.metafile must be a string, got int")
}

func TestInt(t *testing.T) {
	cfg := lookupFixture()

	n, err := Int(cfg, "devServer.port", 3000)
	require.NoError(t, err)
	require.Equal(t, 8080, n)

	n, err = Int(cfg, "devServer.missing", 3000)
	require.NoError(t, err)
	require.Equal(t, 3000, n)

	_, err = Int(cfg, "devServer.fraction", 0)
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = Int(cfg, "devServer.hot", 0)
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestBool(t *testing.T) {
	cfg := lookupFixture()

	b, err := Bool(cfg, "devServer.hot", false)
	require.NoError(t, err)
	require.True(t, b)

	b, err = Bool(cfg, "devServer.compress", true)
	require.NoError(t, err)
	require.True(t, b)

	_, err = Bool(cfg, "context", false)
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestStrings(t *testing.T) {
	cfg := lookupFixture()

	exts, err := Strings(cfg, "resolve.extensions")
	require.NoError(t, err)
	require.Equal(t, []string{".js", ".ts"}, exts)

	exts, err = Strings(cfg, "resolve.typed")
	require.NoError(t, err)
	require.Equal(t, []string{".css"}, exts)

	exts, err = Strings(cfg, "resolve.none")
	require.NoError(t, err)
	require.Nil(t, exts)

	_, err = Strings(cfg, "resolve.mixed")
	require.ErrorIs(t, err, ErrInvalidValue)
	require.Contains(t, err.Error(), "resolve.mixed[1]")

	_, err = Strings(cfg, "context")
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestMap(t *testing.T) {
	cfg := lookupFixture()

	m, err := Map(cfg, "devServer")
	require.NoError(t, err)
	require.Equal(t, true, m["hot"])

	m, err = Map(cfg, "output")
	require.NoError(t, err)
	require.Equal(t, "dist", m["path"])

	m, err = Map(cfg, "absent")
	require.NoError(t, err)
	require.Nil(t, m)

	_, err = Map(cfg, "context")
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestFingerprint_differsOnChange(t *testing.T) {
	a, err := Fingerprint(Configuration{"plugins": []any{"A", "B"}})
	require.NoError(t, err)
	b, err := Fingerprint(Configuration{"plugins": []any{"B", "A"}})
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

type minifyHandle struct{}

type splitHandle struct{}

type namedHandle struct {
	Name string
}

func TestFingerprint_handleTypes(t *testing.T) {
	tests := []struct {
		name string
		a, b Configuration
		same bool
	}{
		{
			name: "empty handles of different types",
			a:    Configuration{"plugins": []any{minifyHandle{}}},
			b:    Configuration{"plugins": []any{splitHandle{}}},
		},
		{
			name: "swapped handles",
			a:    Configuration{"plugins": []any{minifyHandle{}, splitHandle{}}},
			b:    Configuration{"plugins": []any{splitHandle{}, minifyHandle{}}},
		},
		{
			name: "handle fields",
			a:    Configuration{"plugins": []any{namedHandle{Name: "a"}}},
			b:    Configuration{"plugins": []any{namedHandle{Name: "b"}}},
		},
		{
			name: "nested handle",
			a:    Configuration{"module": map[string]any{"rules": []any{minifyHandle{}}}},
			b:    Configuration{"module": map[string]any{"rules": []any{minifyHandle{}}}},
			same: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Fingerprint(tt.a)
			require.NoError(t, err)
			b, err := Fingerprint(tt.b)
			require.NoError(t, err)
			if tt.same {
				require.Equal(t, a, b)
			} else {
				require.NotEqual(t, a, b)
			}
		})
	}
}

func TestFingerprint_unencodable(t *testing.T) {
	_, err := Fingerprint(Configuration{"fn": func() {}})
	require.Error(t, err)
}

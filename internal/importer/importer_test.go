package importer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiscribe/apiscribe/internal/config"
	"github.com/apiscribe/apiscribe/internal/observability"
)

// TestMain sets up the global logger for all tests in this package.
func TestMain(m *testing.M) {
	observability.ResetForTest()

	cfg := config.NewDefaultConfig().Logger()
	cfg.Level = "debug"
	cfg.LogFile = ""
	cfg.Format = "console"
	observability.InitializeLogger(cfg)

	code := m.Run()

	observability.Sync()
	os.Exit(code)
}

func newTestFetcher(t *testing.T, maxBytes int64) *Fetcher {
	t.Helper()
	return NewFetcher(config.ImporterConfig{
		FetchTimeout:  5 * time.Second,
		RatePerSecond: 1000, // keep tests fast
		MaxFetchBytes: maxBytes,
	}, observability.GetLogger())
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Contains(t, r.Header.Get("Accept"), "application/json")
		w.Write([]byte(`openapi: 3.0.3`))
	}))
	defer srv.Close()

	content, err := newTestFetcher(t, 0).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "openapi: 3.0.3", content)
}

func TestFetch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, 0).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}

func TestFetch_SizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, 32).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestFetchAll_PreservesInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("doc:" + r.URL.Path))
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}
	sources, err := newTestFetcher(t, 0).FetchAll(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, urls[0], sources[0].Name)
	assert.Equal(t, "doc:/a", sources[0].Content)
	assert.Equal(t, "doc:/b", sources[1].Content)
	assert.Equal(t, "doc:/c", sources[2].Content)
}

func TestFetchAll_FirstFailureWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, 0).FetchAll(context.Background(), []string{srv.URL + "/ok", srv.URL + "/bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestReadFiles(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.yaml")
	pathB := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(pathA, []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("beta"), 0o644))

	sources, err := ReadFiles(context.Background(), []string{pathA, pathB})
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, pathA, sources[0].Name)
	assert.Equal(t, "alpha", sources[0].Content)
	assert.Equal(t, "beta", sources[1].Content)
}

func TestReadFiles_MissingFile(t *testing.T) {
	_, err := ReadFiles(context.Background(), []string{filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
}

func TestIsSpecCandidate(t *testing.T) {
	cases := map[string]bool{
		"openapi.yaml":                   true,
		"OpenAPI.JSON":                   true,
		"swagger.yml":                    true,
		"asyncapi.json":                  true,
		"api.raml":                       true,
		"service.wsdl":                   true,
		"app.wadl":                       true,
		"session.har":                    true,
		"types.raml":                     true,
		"orders.postman_collection.json": true,
		"Orders.Postman_Collection.JSON": true,
		"postman_collection.yaml":        false,
		"README.md":                      false,
		"main.go":                        false,
		"openapi.txt":                    false,
		"deployment.yml":                 false,
	}
	for name, want := range cases {
		assert.Equal(t, want, isSpecCandidate(name), "name %q", name)
	}
}

// collect walks an in-memory tree the way Clone does after checkout.
func TestGitCollect(t *testing.T) {
	fs := memfs.New()
	write := func(path, content string) {
		require.NoError(t, util.WriteFile(fs, path, []byte(content), 0o644))
	}
	write("/openapi.yaml", "openapi: 3.0.3")
	write("/docs/api.raml", "#%RAML 1.0")
	write("/docs/guide.md", "prose")
	write("/.hidden/swagger.json", "{}")

	g := NewGitImporter(observability.GetLogger())
	var sources []Source
	require.NoError(t, g.collect(fs, "/", &sources))

	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"openapi.yaml", "docs/api.raml"}, names)
}

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/siteindex/internal/scheduler"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/":  `<html><body>кот кот собака <a href="/a">кот</a></body></html>`,
		"/a": `<html><body>кот <a href="/">собака</a></body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeTestConfig(t *testing.T, siteURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
sites:
  - url: %s
    name: Local
crawl:
  max_depth: 3
  min_delay: 0s
  max_delay: 0s
lemmatizer:
  normalizer: exact
database:
  driver: sqlite3
  dsn: %s
logging:
  level: error
  file: ""
`, siteURL, filepath.Join(dir, "cli.db"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RunWithArgs("1.2.3", []string{"--version"}, &out))
	assert.Equal(t, "siteindex 1.2.3\n", out.String())
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, RunWithArgs("test", []string{"reindex-everything"}, &out))
}

func TestIndexCommand(t *testing.T) {
	site := newTestSite(t)
	cfgPath := writeTestConfig(t, site.URL)

	var out bytes.Buffer
	require.NoError(t, RunWithArgs("test", []string{"index", "--config", cfgPath, "--json"}, &out))

	var stats scheduler.Statistics
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total.Sites)
	assert.Equal(t, 2, stats.Total.Pages)
	assert.Equal(t, 2, stats.Total.Lemmas)
	require.Len(t, stats.Detailed, 1)
	assert.Equal(t, "INDEXED", stats.Detailed[0].Status)

	out.Reset()
	require.NoError(t, RunWithArgs("test", []string{"stats", "--config", cfgPath}, &out))
	assert.Contains(t, out.String(), "Pages:    2")
	assert.Contains(t, out.String(), "INDEXED")
}

func TestIndexCommandUnreachableSite(t *testing.T) {
	site := newTestSite(t)
	addr := site.URL
	site.Close()
	cfgPath := writeTestConfig(t, addr)

	var out bytes.Buffer
	require.NoError(t, RunWithArgs("test", []string{"index", "--config", cfgPath, "--json"}, &out))

	var stats scheduler.Statistics
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	require.Len(t, stats.Detailed, 1)
	assert.Equal(t, "FAILED", stats.Detailed[0].Status)
	assert.Contains(t, stats.Detailed[0].Error, "site root unavailable")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl:\n  max_depth: 0\n"), 0644))

	var out bytes.Buffer
	err := RunWithArgs("test", []string{"stats", "--config", path}, &out)
	assert.ErrorContains(t, err, "invalid config")
}

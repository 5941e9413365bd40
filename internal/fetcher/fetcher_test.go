package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/siteindex/internal/fetcher"
)

func testConfig() fetcher.Config {
	return fetcher.Config{
		UserAgent: "TestBot/1.0",
		Referrer:  "http://referrer.test",
		Timeout:   5 * time.Second,
	}
}

func TestFetchHTML(t *testing.T) {
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>кот</body></html>"))
	}))
	defer srv.Close()

	f := fetcher.New(testConfig())
	resp, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, "кот")
	assert.Equal(t, "TestBot/1.0", gotUA)
	assert.Equal(t, "http://referrer.test", gotReferer)
}

func TestFetchDecodesCharset(t *testing.T) {
	// "кот" in windows-1251
	body := []byte{'<', 'p', '>', 0xEA, 0xEE, 0xF2, '<', '/', 'p', '>'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1251")
		w.Write(body)
	}))
	defer srv.Close()

	resp, err := fetcher.New(testConfig()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<p>кот</p>", resp.Body)
}

func TestFetchErrorStatusIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("<body>not found</body>"))
	}))
	defer srv.Close()

	resp, err := fetcher.New(testConfig()).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchRejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	_, err := fetcher.New(testConfig()).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, fetcher.ErrNotHTML)
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := fetcher.New(testConfig()).Fetch(context.Background(), addr)
	assert.Error(t, err)
}

func TestFetchRespectsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<body>ok</body>"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.RespectRobots = true
	f := fetcher.New(cfg)

	_, err := f.Fetch(context.Background(), srv.URL+"/private/page")
	assert.ErrorIs(t, err, fetcher.ErrDisallowed)

	_, err = f.Fetch(context.Background(), srv.URL+"/public")
	assert.NoError(t, err)
}

func TestFetchDelayIsInterruptedByCancel(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MinDelay = time.Minute
	cfg.MaxDelay = time.Minute
	f := fetcher.New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := f.Fetch(ctx, srv.URL)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Zero(t, hits.Load())
}

func TestHeadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := fetcher.New(testConfig())
	assert.Equal(t, http.StatusOK, f.HeadStatus(context.Background(), srv.URL))
	assert.Equal(t, http.StatusNotFound, f.HeadStatus(context.Background(), srv.URL+"/missing"))
	assert.Equal(t, -1, f.HeadStatus(context.Background(), "http://[::1"))
}

type stubRenderer struct {
	calls atomic.Int32
	html  string
}

func (s *stubRenderer) FetchHTML(ctx context.Context, urlStr string) (string, error) {
	s.calls.Add(1)
	return s.html, nil
}

func TestRendererFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/full" {
			w.Write([]byte("<body>" + strings.Repeat("слово ", 40) + "</body>"))
			return
		}
		w.Write([]byte(`<body><div id="app"></div></body>`))
	}))
	defer srv.Close()

	renderer := &stubRenderer{html: "<body>rendered</body>"}
	f := fetcher.New(testConfig()).WithRenderer(renderer)

	resp, err := f.Fetch(context.Background(), srv.URL+"/spa")
	require.NoError(t, err)
	assert.Equal(t, "<body>rendered</body>", resp.Body)

	resp, err = f.Fetch(context.Background(), srv.URL+"/full")
	require.NoError(t, err)
	assert.Contains(t, resp.Body, "слово")
	assert.Equal(t, int32(1), renderer.calls.Load())
}

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/deidaraiorek/siteindex/internal/metrics"
	"github.com/deidaraiorek/siteindex/internal/parser"
)

const maxBodySize = 10 << 20

var (
	ErrNotHTML    = errors.New("content is not html")
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

type Config struct {
	UserAgent         string
	Referrer          string
	Timeout           time.Duration
	MinDelay          time.Duration
	MaxDelay          time.Duration
	RespectRobots     bool
	RequestsPerSecond float64
	// BrowserFallback re-renders pages with too little text through a
	// headless browser.
	BrowserFallback bool
}

func DefaultConfig() Config {
	return Config{
		UserAgent: "SiteIndexBot/1.0",
		Referrer:  "http://www.google.com",
		Timeout:   10 * time.Second,
		MinDelay:  500 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        string
}

// Renderer produces the HTML of a page after client-side rendering.
type Renderer interface {
	FetchHTML(ctx context.Context, urlStr string) (string, error)
}

type Fetcher struct {
	config      Config
	client      *http.Client
	limiter     *rate.Limiter
	renderer    Renderer
	textParser  *parser.Parser
	robotsCache map[string]*robotstxt.RobotsData
	robotsMu    sync.RWMutex
}

func New(config Config) *Fetcher {
	if config.UserAgent == "" {
		config.UserAgent = DefaultConfig().UserAgent
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxDelay < config.MinDelay {
		config.MaxDelay = config.MinDelay
	}

	f := &Fetcher{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		robotsCache: make(map[string]*robotstxt.RobotsData),
		textParser:  parser.New(),
	}
	if config.RequestsPerSecond > 0 {
		burst := max(1, int(config.RequestsPerSecond))
		f.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	if config.BrowserFallback {
		f.renderer = NewBrowserFetcher(config.UserAgent)
	}
	return f
}

// WithRenderer enables the rendering fallback for pages whose visible text
// is shorter than 100 characters.
func (f *Fetcher) WithRenderer(r Renderer) *Fetcher {
	f.renderer = r
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*Response, error) {
	if f.config.RespectRobots && !f.IsAllowed(ctx, urlStr) {
		return nil, ErrDisallowed
	}

	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := f.do(ctx, http.MethodGet, urlStr)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", urlStr, err)
	}
	defer resp.Body.Close()
	metrics.FetchesTotal.WithLabelValues(statusClass(resp.StatusCode)).Inc()

	contentType := resp.Header.Get("Content-Type")
	if !isHTML(contentType) {
		return nil, fmt.Errorf("%s (%s): %w", urlStr, contentType, ErrNotHTML)
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", urlStr, err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", urlStr, err)
	}

	result := &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        string(body),
	}

	if f.renderer != nil && resp.StatusCode < http.StatusBadRequest && f.needsRendering(result.Body) {
		if rendered, err := f.renderer.FetchHTML(ctx, urlStr); err == nil && rendered != "" {
			result.Body = rendered
		}
	}
	return result, nil
}

// HeadStatus returns the status code of a HEAD request, or -1 when the
// request could not be made.
func (f *Fetcher) HeadStatus(ctx context.Context, urlStr string) int {
	resp, err := f.do(ctx, http.MethodHead, urlStr)
	if err != nil {
		return -1
	}
	resp.Body.Close()
	return resp.StatusCode
}

func (f *Fetcher) IsAllowed(ctx context.Context, urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)

	f.robotsMu.RLock()
	robots, exists := f.robotsCache[robotsURL]
	f.robotsMu.RUnlock()

	if !exists {
		robots = f.fetchRobotsTxt(ctx, robotsURL)
		f.robotsMu.Lock()
		f.robotsCache[robotsURL] = robots
		f.robotsMu.Unlock()
	}

	if robots == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return robots.FindGroup(f.config.UserAgent).Test(path)
}

func (f *Fetcher) fetchRobotsTxt(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	resp, err := f.do(ctx, http.MethodGet, robotsURL)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	robots, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return robots
}

func (f *Fetcher) do(ctx context.Context, method, urlStr string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if f.config.Referrer != "" {
		req.Header.Set("Referer", f.config.Referrer)
	}

	return f.client.Do(req)
}

// wait sleeps for a random politeness delay and then for the rate limiter.
// Both return early when ctx is done.
func (f *Fetcher) wait(ctx context.Context) error {
	if delay := f.delay(); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if f.limiter != nil {
		return f.limiter.Wait(ctx)
	}
	return ctx.Err()
}

func (f *Fetcher) delay() time.Duration {
	spread := f.config.MaxDelay - f.config.MinDelay
	if spread <= 0 {
		return f.config.MinDelay
	}
	return f.config.MinDelay + rand.N(spread+1)
}

func (f *Fetcher) needsRendering(body string) bool {
	text, err := f.textParser.ExtractText(body)
	if err != nil {
		return false
	}
	return len([]rune(text)) < 100
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

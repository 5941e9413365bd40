package frontier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/deidaraiorek/siteindex/internal/fetcher"
	"github.com/deidaraiorek/siteindex/internal/parser"
	"github.com/deidaraiorek/siteindex/internal/storage"
)

var ErrSeedUnavailable = errors.New("site root unavailable")

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// PageHandler persists one fetched page.
type PageHandler interface {
	HandlePage(ctx context.Context, site storage.Site, url string, statusCode int, html string) error
}

type Config struct {
	MaxDepth          int
	MaxConcurrency    int
	DisallowedDomains []string
	IgnoreExtensions  []string
}

type Stats struct {
	Visited     int64
	Indexed     int64
	Skipped     int64
	FetchFailed int64
	StoreFailed int64
	// StoreErr is the first error returned by the page handler.
	StoreErr error
}

type Crawler struct {
	config  Config
	fetcher Fetcher
	handler PageHandler
	parser  *parser.Parser
	logger  *slog.Logger
}

func New(config Config, f Fetcher, handler PageHandler, logger *slog.Logger) *Crawler {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		config:  config,
		fetcher: f,
		handler: handler,
		parser:  parser.New(config.IgnoreExtensions...),
		logger:  logger,
	}
}

type crawl struct {
	*Crawler
	site    storage.Site
	seed    string
	visited *VisitedSet
	sem     *semaphore.Weighted
	logger  *slog.Logger

	visitedCount atomic.Int64
	indexed      atomic.Int64
	skipped      atomic.Int64
	fetchFailed  atomic.Int64
	storeFailed  atomic.Int64

	errMu    sync.Mutex
	storeErr error
}

// Crawl walks the site from seed. Every discovered page runs in its own
// goroutine and each page waits for the pages it discovered before
// returning, so Crawl returns only after the whole traversal has drained.
// Cancellation of ctx is not reported as an error.
func (c *Crawler) Crawl(ctx context.Context, site storage.Site, seed string) (Stats, error) {
	seed = parser.NormalizeURLString(seed)
	r := &crawl{
		Crawler: c,
		site:    site,
		seed:    seed,
		visited: NewVisitedSet(),
		sem:     semaphore.NewWeighted(int64(c.config.MaxConcurrency)),
		logger:  c.logger.With("site", site.URL),
	}

	if c.config.MaxDepth <= 0 || ctx.Err() != nil {
		return r.stats(), nil
	}

	r.visited.MarkVisited(seed)
	r.visitedCount.Add(1)

	resp, err := r.fetch(ctx, seed)
	if err != nil {
		if ctx.Err() != nil {
			return r.stats(), nil
		}
		r.fetchFailed.Add(1)
		return r.stats(), fmt.Errorf("%w: %s: %v", ErrSeedUnavailable, seed, err)
	}

	r.process(ctx, seed, 0, resp)
	return r.stats(), nil
}

func (r *crawl) visit(ctx context.Context, url string, depth int) {
	if depth >= r.config.MaxDepth || ctx.Err() != nil {
		return
	}
	if !r.visited.MarkVisited(url) {
		r.skipped.Add(1)
		return
	}
	r.visitedCount.Add(1)

	resp, err := r.fetch(ctx, url)
	if err != nil {
		if ctx.Err() == nil {
			r.fetchFailed.Add(1)
			r.logger.Debug("Fetch failed", "url", url, "error", err)
		}
		return
	}

	r.process(ctx, url, depth, resp)
}

func (r *crawl) fetch(ctx context.Context, url string) (*fetcher.Response, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	return r.fetcher.Fetch(ctx, url)
}

func (r *crawl) process(ctx context.Context, url string, depth int, resp *fetcher.Response) {
	if ctx.Err() != nil {
		return
	}

	if err := r.handler.HandlePage(ctx, r.site, url, resp.StatusCode, resp.Body); err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return
		}
		r.recordStoreErr(err)
		r.logger.Error("Failed to store page", "url", url, "error", err)
		return
	}
	r.indexed.Add(1)

	if resp.StatusCode >= 400 || depth+1 >= r.config.MaxDepth {
		return
	}

	base := url
	if resp.URL != "" && parser.SameSite(resp.URL, r.seed) {
		base = resp.URL
	}
	links, err := r.parser.Links(resp.Body, base)
	if err != nil {
		r.logger.Debug("Failed to parse page", "url", url, "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, link := range links {
		if !r.follow(link.URL) {
			continue
		}
		wg.Add(1)
		go func(next string) {
			defer wg.Done()
			r.visit(ctx, next, depth+1)
		}(link.URL)
	}
	wg.Wait()
}

func (r *crawl) follow(url string) bool {
	if !parser.SameSite(url, r.seed) {
		return false
	}
	host := parser.HostKey(url)
	for _, d := range r.config.DisallowedDomains {
		d = strings.TrimPrefix(strings.ToLower(d), "www.")
		if host == d || strings.HasSuffix(host, "."+d) {
			return false
		}
	}
	return true
}

func (r *crawl) recordStoreErr(err error) {
	r.storeFailed.Add(1)
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if r.storeErr == nil {
		r.storeErr = err
	}
}

func (r *crawl) stats() Stats {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return Stats{
		Visited:     r.visitedCount.Load(),
		Indexed:     r.indexed.Load(),
		Skipped:     r.skipped.Load(),
		FetchFailed: r.fetchFailed.Load(),
		StoreFailed: r.storeFailed.Load(),
		StoreErr:    r.storeErr,
	}
}

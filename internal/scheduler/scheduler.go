package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deidaraiorek/siteindex/internal/config"
	"github.com/deidaraiorek/siteindex/internal/fetcher"
	"github.com/deidaraiorek/siteindex/internal/frontier"
	"github.com/deidaraiorek/siteindex/internal/metrics"
	"github.com/deidaraiorek/siteindex/internal/parser"
	"github.com/deidaraiorek/siteindex/internal/storage"
)

const StoppedByUser = "Indexing stopped by user"

var (
	ErrAlreadyRunning = errors.New("indexing already running")
	ErrNotRunning     = errors.New("indexing is not running")
	ErrOutsideSites   = errors.New("page is outside the configured sites")
)

// statusWriteTimeout bounds status writes made after the run context is gone.
const statusWriteTimeout = 30 * time.Second

type Store interface {
	DeleteSiteByURL(ctx context.Context, url string) error
	CreateSite(ctx context.Context, url, name string) (storage.Site, error)
	UpdateSiteStatus(ctx context.Context, id int64, status storage.Status, lastError string) error
	GetSite(ctx context.Context, id int64) (storage.Site, error)
	GetSiteByURL(ctx context.Context, url string) (storage.Site, error)
	CountPages(ctx context.Context, siteID int64) (int, error)
	CountLemmas(ctx context.Context, siteID int64) (int, error)
	Totals(ctx context.Context) (sites, pages, lemmas int, err error)
	DeletePage(ctx context.Context, siteID int64, path string) (bool, error)
}

type Crawler interface {
	Crawl(ctx context.Context, site storage.Site, seed string) (frontier.Stats, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

type PageIndexer interface {
	IndexPage(ctx context.Context, site storage.Site, url string, statusCode int, html string) error
}

// Scheduler owns the indexing state of every configured site. Only one full
// indexing run is active at a time.
type Scheduler struct {
	store    Store
	crawler  Crawler
	fetcher  Fetcher
	indexer  PageIndexer
	sites    []config.SiteConfig
	parallel int
	logger   *slog.Logger

	inProgress atomic.Bool

	mu      sync.Mutex
	current *run
}

type run struct {
	id      string
	cancel  context.CancelFunc
	sites   []storage.Site
	done    chan struct{}
	logger  *slog.Logger
	stopped bool
}

func New(store Store, crawler Crawler, f Fetcher, indexer PageIndexer, sites []config.SiteConfig, parallelSites int, logger *slog.Logger) *Scheduler {
	if parallelSites <= 0 {
		parallelSites = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		crawler:  crawler,
		fetcher:  f,
		indexer:  indexer,
		sites:    sites,
		parallel: parallelSites,
		logger:   logger,
	}
}

func (s *Scheduler) IsIndexingInProgress() bool {
	return s.inProgress.Load()
}

// StartFullIndexing recreates every configured site in the INDEXING state
// and crawls them in the background. It returns once the crawl is scheduled.
func (s *Scheduler) StartFullIndexing(ctx context.Context) error {
	if !s.inProgress.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	// A stopped run may still be draining; mu stays free meanwhile.
	s.mu.Lock()
	prev := s.current
	s.mu.Unlock()
	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			s.inProgress.Store(false)
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: s.logger.With("run_id", id),
	}

	for _, sc := range s.sites {
		if err := s.store.DeleteSiteByURL(ctx, sc.URL); err != nil {
			cancel()
			s.inProgress.Store(false)
			return err
		}
		site, err := s.store.CreateSite(ctx, sc.URL, sc.Name)
		if err != nil {
			cancel()
			s.inProgress.Store(false)
			return err
		}
		r.sites = append(r.sites, site)
	}

	s.current = r
	metrics.IndexingInProgress.Set(1)
	metrics.SitesByStatus.Reset()
	metrics.SitesByStatus.WithLabelValues(string(storage.StatusIndexing)).Set(float64(len(r.sites)))
	r.logger.Info("Starting full indexing", "sites", len(r.sites), "parallel_sites", s.parallel)

	go s.execute(runCtx, r)
	return nil
}

func (s *Scheduler) execute(ctx context.Context, r *run) {
	start := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(s.parallel)
	for _, site := range r.sites {
		g.Go(func() error {
			s.indexSite(ctx, r, site)
			return nil
		})
	}
	_ = g.Wait()
	r.cancel()
	close(r.done)

	s.mu.Lock()
	if s.current == r && !r.stopped {
		s.inProgress.Store(false)
		metrics.IndexingInProgress.Set(0)
	}
	s.mu.Unlock()

	r.logger.Info("Full indexing finished", "duration", time.Since(start).String())
}

func (s *Scheduler) indexSite(ctx context.Context, r *run, site storage.Site) {
	logger := r.logger.With("site", site.URL)
	logger.Info("Indexing site")

	stats, err := s.crawler.Crawl(ctx, site, site.URL)
	status, message := s.outcome(ctx, site, stats, err)
	if status == "" {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()
	if err := s.store.UpdateSiteStatus(writeCtx, site.ID, status, message); err != nil {
		logger.Error("Failed to update site status", "status", status, "error", err)
		return
	}

	metrics.SitesByStatus.WithLabelValues(string(storage.StatusIndexing)).Dec()
	metrics.SitesByStatus.WithLabelValues(string(status)).Inc()
	logger.Info("Site finished",
		"status", status,
		"error", message,
		"visited", stats.Visited,
		"indexed", stats.Indexed,
		"fetch_failed", stats.FetchFailed,
		"store_failed", stats.StoreFailed,
	)
}

// outcome decides the final status of a site after its crawl returned. An
// empty status leaves the stored status untouched.
func (s *Scheduler) outcome(ctx context.Context, site storage.Site, stats frontier.Stats, crawlErr error) (storage.Status, string) {
	switch {
	case crawlErr != nil && ctx.Err() == nil:
		return storage.StatusFailed, crawlErr.Error()
	case stats.StoreErr != nil:
		return storage.StatusFailed, fmt.Sprintf("storage error: %v", stats.StoreErr)
	case ctx.Err() == nil:
		return storage.StatusIndexed, ""
	}

	readCtx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()

	current, err := s.store.GetSite(readCtx, site.ID)
	if err == nil && current.Status == storage.StatusFailed {
		return "", ""
	}
	pages, err := s.store.CountPages(readCtx, site.ID)
	if err != nil {
		return storage.StatusFailed, fmt.Sprintf("storage error: %v", err)
	}
	if pages > 0 {
		return storage.StatusIndexed, ""
	}
	return storage.StatusFailed, StoppedByUser
}

// StopIndexing cancels the active run. Sites still INDEXING that have not
// stored a single page yet are marked FAILED right away; the rest settle when
// their crawl drains. Sites that already finished keep their status.
func (s *Scheduler) StopIndexing(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.current
	if !s.inProgress.Load() || r == nil || r.stopped {
		return ErrNotRunning
	}

	r.stopped = true
	r.cancel()
	r.logger.Info("Stopping indexing")

	var errs []error
	for _, site := range r.sites {
		current, err := s.store.GetSite(ctx, site.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if current.Status != storage.StatusIndexing {
			continue
		}
		pages, err := s.store.CountPages(ctx, site.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if pages > 0 {
			continue
		}
		if err := s.store.UpdateSiteStatus(ctx, site.ID, storage.StatusFailed, StoppedByUser); err != nil {
			errs = append(errs, err)
		}
	}

	s.inProgress.Store(false)
	metrics.IndexingInProgress.Set(0)
	return errors.Join(errs...)
}

// Wait blocks until the current run, if any, has drained.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()

	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops an active run and waits for its goroutines to finish.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if err := s.StopIndexing(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		s.logger.Error("Failed to stop indexing", "error", err)
	}
	return s.Wait(ctx)
}

// IndexPage fetches and (re)indexes a single page of a configured site.
func (s *Scheduler) IndexPage(ctx context.Context, rawURL string) error {
	sc, ok := s.siteFor(rawURL)
	if !ok {
		return ErrOutsideSites
	}
	pageURL := parser.NormalizeURLString(rawURL)

	site, err := s.store.GetSiteByURL(ctx, sc.URL)
	created := false
	if errors.Is(err, storage.ErrNotFound) {
		site, err = s.store.CreateSite(ctx, sc.URL, sc.Name)
		created = true
	}
	if err != nil {
		return err
	}

	resp, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if created {
			if statusErr := s.store.UpdateSiteStatus(ctx, site.ID, storage.StatusFailed, err.Error()); statusErr != nil {
				return errors.Join(err, fmt.Errorf("mark site failed: %w", statusErr))
			}
		}
		return err
	}

	if _, err := s.store.DeletePage(ctx, site.ID, parser.PathOf(pageURL)); err != nil {
		return err
	}
	if err := s.indexer.IndexPage(ctx, site, pageURL, resp.StatusCode, resp.Body); err != nil {
		return err
	}

	if created {
		return s.store.UpdateSiteStatus(ctx, site.ID, storage.StatusIndexed, "")
	}
	return nil
}

func (s *Scheduler) siteFor(rawURL string) (config.SiteConfig, bool) {
	for _, sc := range s.sites {
		if parser.SameSite(rawURL, sc.URL) {
			return sc, true
		}
	}
	return config.SiteConfig{}, false
}

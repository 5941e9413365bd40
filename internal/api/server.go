// Package api exposes indexing control and index data over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/deidaraiorek/siteindex/internal/metrics"
	"github.com/deidaraiorek/siteindex/internal/scheduler"
	"github.com/deidaraiorek/siteindex/internal/storage"
)

type Indexing interface {
	StartFullIndexing(ctx context.Context) error
	StopIndexing(ctx context.Context) error
	IndexPage(ctx context.Context, url string) error
	Statistics(ctx context.Context) (scheduler.Statistics, error)
}

type Store interface {
	ListLemmas(ctx context.Context, siteID int64) ([]storage.Lemma, error)
	FindLemmas(ctx context.Context, lemma string) ([]storage.Lemma, error)
	GetIndexEntry(ctx context.Context, id int64) (storage.IndexEntry, error)
	DeleteIndexEntry(ctx context.Context, id int64) error
	UpdateIndexRank(ctx context.Context, id int64, rank float64) error
}

// Lemmatizer reduces a lemma search query to the forms stored in the index.
type Lemmatizer interface {
	Lemmas(text string) []string
}

type Server struct {
	indexing   Indexing
	store      Store
	lemmatizer Lemmatizer
	logger     *slog.Logger
	addr       string
}

func NewServer(indexing Indexing, store Store, lemmatizer Lemmatizer, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		indexing:   indexing,
		store:      store,
		lemmatizer: lemmatizer,
		logger:     logger,
		addr:       addr,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/startIndexing", s.handleStartIndexing)
		r.Get("/stopIndexing", s.handleStopIndexing)
		r.Post("/indexPage", s.handleIndexPage)
		r.Get("/statistics", s.handleStatistics)

		r.Get("/lemmas", s.handleListLemmas)
		r.Get("/lemmas/search", s.handleFindLemmas)

		r.Get("/index/{id}", s.handleGetIndexEntry)
		r.Put("/index/{id}", s.handleUpdateRank)
		r.Delete("/index/{id}", s.handleDeleteIndexEntry)
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}

// Start serves until ctx is cancelled and then shuts the listener down.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.logger.Info("HTTP server starting", "address", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

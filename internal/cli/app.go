package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/deidaraiorek/siteindex/internal/config"
	"github.com/deidaraiorek/siteindex/internal/fetcher"
	"github.com/deidaraiorek/siteindex/internal/frontier"
	"github.com/deidaraiorek/siteindex/internal/indexer"
	"github.com/deidaraiorek/siteindex/internal/logging"
	"github.com/deidaraiorek/siteindex/internal/scheduler"
	"github.com/deidaraiorek/siteindex/internal/storage"
	"github.com/deidaraiorek/siteindex/internal/textprocessor"
)

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *storage.Store
	lemmatizer *textprocessor.Lemmatizer
	scheduler  *scheduler.Scheduler
	logCloser  io.Closer
}

func newApp(ctx context.Context, globals *GlobalFlags) (*app, error) {
	cfg, err := config.Load(globals.Config)
	if err != nil {
		return nil, err
	}

	logger, logCloser := logging.Setup(cfg.Logging, globals.Verbose)

	normalizer, err := textprocessor.NormalizerByName(cfg.Lemmatizer.Normalizer)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	f := fetcher.New(cfg.FetcherConfig())
	lemmatizer := textprocessor.NewLemmatizer(normalizer, cfg.Lemmatizer.ExtraStopWords...)
	builder := indexer.NewBuilder(store, lemmatizer, logger)
	crawler := frontier.New(cfg.FrontierConfig(), f, builder, logger)
	sched := scheduler.New(store, crawler, f, builder, cfg.Sites, cfg.Crawl.ParallelSites, logger)

	logger.Debug("Application initialized",
		"sites", len(cfg.Sites),
		"driver", cfg.Database.Driver,
		"normalizer", cfg.Lemmatizer.Normalizer,
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		lemmatizer: lemmatizer,
		scheduler:  sched,
		logCloser:  logCloser,
	}, nil
}

func (a *app) Close() error {
	err := a.store.Close()
	a.logCloser.Close()
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

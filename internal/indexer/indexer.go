package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deidaraiorek/siteindex/internal/metrics"
	"github.com/deidaraiorek/siteindex/internal/parser"
	"github.com/deidaraiorek/siteindex/internal/storage"
	"github.com/deidaraiorek/siteindex/internal/textprocessor"
)

type Store interface {
	PageExists(ctx context.Context, siteID int64, path string) (bool, error)
	SavePage(ctx context.Context, page storage.Page, lemmas map[string]int) (bool, error)
}

// Builder turns fetched pages into page, lemma and index rows.
type Builder struct {
	store      Store
	lemmatizer *textprocessor.Lemmatizer
	parser     *parser.Parser
	logger     *slog.Logger
}

func NewBuilder(store Store, lemmatizer *textprocessor.Lemmatizer, logger *slog.Logger) *Builder {
	if lemmatizer == nil {
		lemmatizer = textprocessor.NewLemmatizer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:      store,
		lemmatizer: lemmatizer,
		parser:     parser.New(),
		logger:     logger,
	}
}

// IndexPage stores the page at url unless the site already has it. Pages
// answered with an error status are stored without lemmas.
func (b *Builder) IndexPage(ctx context.Context, site storage.Site, url string, statusCode int, html string) error {
	path := parser.PathOf(url)

	exists, err := b.store.PageExists(ctx, site.ID, path)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	var lemmas map[string]int
	if statusCode < 400 {
		text, err := b.parser.ExtractText(html)
		if err != nil {
			return fmt.Errorf("extract text from %s: %w", url, err)
		}
		lemmas = b.lemmatizer.Lemmatize(text)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	created, err := b.store.SavePage(ctx, storage.Page{
		SiteID:  site.ID,
		Path:    path,
		Code:    statusCode,
		Content: html,
	}, lemmas)
	if err != nil {
		return err
	}
	if created {
		metrics.PagesIndexed.WithLabelValues(site.URL).Inc()
		b.logger.Debug("Indexed page", "site", site.URL, "path", path, "code", statusCode, "lemmas", len(lemmas))
	}
	return nil
}

func (b *Builder) HandlePage(ctx context.Context, site storage.Site, url string, statusCode int, html string) error {
	return b.IndexPage(ctx, site, url, statusCode, html)
}

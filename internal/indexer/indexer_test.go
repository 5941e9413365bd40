package indexer_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/siteindex/internal/indexer"
	"github.com/deidaraiorek/siteindex/internal/storage"
	"github.com/deidaraiorek/siteindex/internal/textprocessor"
)

func setup(t *testing.T) (*indexer.Builder, *storage.Store, storage.Site) {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(ctx, storage.DriverSQLite, filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	site, err := store.CreateSite(ctx, "https://site.test", "Test")
	require.NoError(t, err)

	builder := indexer.NewBuilder(store, textprocessor.NewLemmatizer(textprocessor.Exact), nil)
	return builder, store, site
}

func lemmaFrequencies(t *testing.T, store *storage.Store, siteID int64) map[string]int {
	t.Helper()
	lemmas, err := store.ListLemmas(context.Background(), siteID)
	require.NoError(t, err)
	out := make(map[string]int, len(lemmas))
	for _, l := range lemmas {
		out[l.Lemma] = l.Frequency
	}
	return out
}

func TestIndexPageBuildsRanks(t *testing.T) {
	builder, store, site := setup(t)
	ctx := context.Background()

	require.NoError(t, builder.IndexPage(ctx, site, "https://site.test/cats", 200, "<body>кот кот собака</body>"))

	page, err := store.GetPage(ctx, site.ID, "/cats")
	require.NoError(t, err)
	assert.Equal(t, 200, page.Code)
	assert.Equal(t, "<body>кот кот собака</body>", page.Content)

	lemmas, err := store.ListLemmas(ctx, site.ID)
	require.NoError(t, err)
	byID := map[int64]string{}
	for _, l := range lemmas {
		byID[l.ID] = l.Lemma
	}

	entries, err := store.IndexEntriesForPage(ctx, page.ID)
	require.NoError(t, err)
	ranks := map[string]float64{}
	for _, e := range entries {
		ranks[byID[e.LemmaID]] = e.Rank
	}
	assert.Equal(t, map[string]float64{"кот": 2, "собака": 1}, ranks)
	assert.Equal(t, map[string]int{"кот": 2, "собака": 1}, lemmaFrequencies(t, store, site.ID))
}

func TestIndexPageAccumulatesAcrossPages(t *testing.T) {
	builder, store, site := setup(t)
	ctx := context.Background()

	require.NoError(t, builder.IndexPage(ctx, site, "https://site.test/", 200, "<body>кот и собака</body>"))
	before := lemmaFrequencies(t, store, site.ID)["кот"]

	require.NoError(t, builder.IndexPage(ctx, site, "https://site.test/more", 200, "<body>кот кот собака</body>"))
	freq := lemmaFrequencies(t, store, site.ID)

	assert.Equal(t, before+2, freq["кот"])
	assert.Equal(t, 2, freq["собака"])
	assert.NotContains(t, freq, "и")
}

func TestIndexPageIsIdempotent(t *testing.T) {
	builder, store, site := setup(t)
	ctx := context.Background()

	require.NoError(t, builder.IndexPage(ctx, site, "https://site.test/a", 200, "<body>кот</body>"))
	require.NoError(t, builder.IndexPage(ctx, site, "https://site.test/a/", 200, "<body>кот кот</body>"))

	n, err := store.CountPages(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[string]int{"кот": 1}, lemmaFrequencies(t, store, site.ID))
}

func TestIndexPageErrorStatusStoresPageOnly(t *testing.T) {
	builder, store, site := setup(t)
	ctx := context.Background()

	require.NoError(t, builder.IndexPage(ctx, site, "https://site.test/gone", 404, "<body>не найдено</body>"))

	page, err := store.GetPage(ctx, site.ID, "/gone")
	require.NoError(t, err)
	assert.Equal(t, 404, page.Code)
	assert.Empty(t, lemmaFrequencies(t, store, site.ID))
}

type failingStore struct {
	err error
}

func (f failingStore) PageExists(ctx context.Context, siteID int64, path string) (bool, error) {
	return false, nil
}

func (f failingStore) SavePage(ctx context.Context, page storage.Page, lemmas map[string]int) (bool, error) {
	return false, f.err
}

func TestIndexPagePropagatesStoreErrors(t *testing.T) {
	storeErr := errors.New("database is locked")
	builder := indexer.NewBuilder(failingStore{err: storeErr}, nil, nil)

	err := builder.IndexPage(context.Background(), storage.Site{ID: 1}, "https://site.test", 200, "<body>кот</body>")
	assert.ErrorIs(t, err, storeErr)
}

package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMigrationsAreIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, NewMigrationRunner(store.db, DriverSQLite).Run(ctx))

	var count int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSiteLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	site, err := store.CreateSite(ctx, "https://example.com", "Example")
	require.NoError(t, err)
	assert.NotZero(t, site.ID)
	assert.Equal(t, StatusIndexing, site.Status)

	require.NoError(t, store.UpdateSiteStatus(ctx, site.ID, StatusFailed, "boom"))
	got, err := store.GetSiteByURL(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "boom", got.LastError)
	assert.False(t, got.StatusTime.Before(site.StatusTime))

	require.NoError(t, store.UpdateSiteStatus(ctx, site.ID, StatusIndexed, ""))
	got, err = store.GetSite(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIndexed, got.Status)
	assert.Empty(t, got.LastError)

	assert.ErrorIs(t, store.UpdateSiteStatus(ctx, 999, StatusIndexed, ""), ErrNotFound)

	_, err = store.CreateSite(ctx, "https://example.com", "Duplicate")
	assert.Error(t, err)

	sites, err := store.ListSites(ctx)
	require.NoError(t, err)
	assert.Len(t, sites, 1)
}

func TestSavePageAggregatesLemmas(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	site, err := store.CreateSite(ctx, "https://example.com", "Example")
	require.NoError(t, err)

	created, err := store.SavePage(ctx, Page{SiteID: site.ID, Path: "/", Code: 200, Content: "<body>кот кот собака</body>"},
		map[string]int{"кот": 2, "собака": 1})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.SavePage(ctx, Page{SiteID: site.ID, Path: "/cats", Code: 200, Content: "<body>кот</body>"},
		map[string]int{"кот": 1})
	require.NoError(t, err)
	assert.True(t, created)

	lemmas, err := store.ListLemmas(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, lemmas, 2)
	assert.Equal(t, "кот", lemmas[0].Lemma)
	assert.Equal(t, 3, lemmas[0].Frequency)
	assert.Equal(t, "собака", lemmas[1].Lemma)
	assert.Equal(t, 1, lemmas[1].Frequency)

	page, err := store.GetPage(ctx, site.ID, "/")
	require.NoError(t, err)
	entries, err := store.IndexEntriesForPage(ctx, page.ID)
	require.NoError(t, err)
	ranks := map[int64]float64{}
	for _, e := range entries {
		ranks[e.LemmaID] = e.Rank
	}
	assert.Equal(t, 2.0, ranks[lemmas[0].ID])
	assert.Equal(t, 1.0, ranks[lemmas[1].ID])
}

func TestSavePageSkipsExistingPage(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	site, err := store.CreateSite(ctx, "https://example.com", "Example")
	require.NoError(t, err)

	page := Page{SiteID: site.ID, Path: "/", Code: 200, Content: "кот"}
	_, err = store.SavePage(ctx, page, map[string]int{"кот": 1})
	require.NoError(t, err)

	created, err := store.SavePage(ctx, page, map[string]int{"кот": 1})
	require.NoError(t, err)
	assert.False(t, created)

	lemmas, err := store.FindLemmas(ctx, "кот")
	require.NoError(t, err)
	require.Len(t, lemmas, 1)
	assert.Equal(t, 1, lemmas[0].Frequency)
}

func TestSavePageConcurrentUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	site, err := store.CreateSite(ctx, "https://example.com", "Example")
	require.NoError(t, err)

	const pages = 20
	var wg sync.WaitGroup
	for i := 0; i < pages; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.SavePage(ctx, Page{SiteID: site.ID, Path: "/p" + string(rune('a'+i)), Code: 200},
				map[string]int{"кот": 2})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	lemmas, err := store.ListLemmas(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, lemmas, 1)
	assert.Equal(t, 2*pages, lemmas[0].Frequency)

	n, err := store.CountPages(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, pages, n)
}

func TestDeletePageSubtractsFrequencies(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	site, err := store.CreateSite(ctx, "https://example.com", "Example")
	require.NoError(t, err)

	_, err = store.SavePage(ctx, Page{SiteID: site.ID, Path: "/a", Code: 200}, map[string]int{"кот": 2, "собака": 1})
	require.NoError(t, err)
	_, err = store.SavePage(ctx, Page{SiteID: site.ID, Path: "/b", Code: 200}, map[string]int{"кот": 1})
	require.NoError(t, err)

	deleted, err := store.DeletePage(ctx, site.ID, "/a")
	require.NoError(t, err)
	assert.True(t, deleted)

	lemmas, err := store.ListLemmas(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, lemmas, 1)
	assert.Equal(t, "кот", lemmas[0].Lemma)
	assert.Equal(t, 1, lemmas[0].Frequency)

	deleted, err = store.DeletePage(ctx, site.ID, "/missing")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteSiteCascades(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	site, err := store.CreateSite(ctx, "https://example.com", "Example")
	require.NoError(t, err)
	_, err = store.SavePage(ctx, Page{SiteID: site.ID, Path: "/", Code: 200}, map[string]int{"кот": 1})
	require.NoError(t, err)

	require.NoError(t, store.DeleteSiteByURL(ctx, "https://example.com"))

	sites, pages, lemmas, err := store.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, sites)
	assert.Zero(t, pages)
	assert.Zero(t, lemmas)

	var entries int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM search_index").Scan(&entries))
	assert.Zero(t, entries)
}

func TestIndexRank(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	site, err := store.CreateSite(ctx, "https://example.com", "Example")
	require.NoError(t, err)
	_, err = store.SavePage(ctx, Page{SiteID: site.ID, Path: "/", Code: 200}, map[string]int{"кот": 2})
	require.NoError(t, err)

	page, err := store.GetPage(ctx, site.ID, "/")
	require.NoError(t, err)
	entries, err := store.IndexEntriesForPage(ctx, page.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	id := entries[0].ID

	require.NoError(t, store.UpdateIndexRank(ctx, id, 5.5))
	entry, err := store.GetIndexEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5.5, entry.Rank)

	assert.ErrorIs(t, store.UpdateIndexRank(ctx, id, -1), ErrNegativeRank)
	entry, err = store.GetIndexEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5.5, entry.Rank)

	assert.ErrorIs(t, store.UpdateIndexRank(ctx, 999, 1), ErrNotFound)

	require.NoError(t, store.DeleteIndexEntry(ctx, id))
	_, err = store.GetIndexEntry(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteIndexEntry(ctx, id), ErrNotFound)
}

func TestNewIndexEntry(t *testing.T) {
	entry, err := NewIndexEntry(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, entry.Rank)

	_, err = NewIndexEntry(1, 2, -0.5)
	assert.ErrorIs(t, err, ErrNegativeRank)
}

func TestRebind(t *testing.T) {
	pg := dialectFor(DriverPostgres)
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := dialectFor(DriverSQLite)
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", sqliteDSN("a.db"))
	assert.Equal(t, "a.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", sqliteDSN("a.db?_foreign_keys=on"))
	assert.Equal(t, ":memory:?_foreign_keys=on&_busy_timeout=5000", sqliteDSN(":memory:"))
}

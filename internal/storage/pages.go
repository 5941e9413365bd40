package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

func (s *Store) PageExists(ctx context.Context, siteID int64, path string) (bool, error) {
	n, err := s.count(ctx, s.db, "SELECT COUNT(*) FROM page WHERE site_id = ? AND path = ?", siteID, path)
	if err != nil {
		return false, fmt.Errorf("failed to check page %s: %w", path, err)
	}
	return n > 0, nil
}

func (s *Store) GetPage(ctx context.Context, siteID int64, path string) (Page, error) {
	var p Page
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		"SELECT id, site_id, path, code, content FROM page WHERE site_id = ? AND path = ?"),
		siteID, path,
	).Scan(&p.ID, &p.SiteID, &p.Path, &p.Code, &p.Content)
	if err != nil {
		return Page{}, notFound(err)
	}
	return p, nil
}

func (s *Store) CountPages(ctx context.Context, siteID int64) (int, error) {
	return s.count(ctx, s.db, "SELECT COUNT(*) FROM page WHERE site_id = ?", siteID)
}

func (s *Store) CountLemmas(ctx context.Context, siteID int64) (int, error) {
	return s.count(ctx, s.db, "SELECT COUNT(*) FROM lemma WHERE site_id = ?", siteID)
}

// Totals returns the number of sites, pages and lemmas across the store.
func (s *Store) Totals(ctx context.Context) (sites, pages, lemmas int, err error) {
	if sites, err = s.count(ctx, s.db, "SELECT COUNT(*) FROM site"); err != nil {
		return 0, 0, 0, err
	}
	if pages, err = s.count(ctx, s.db, "SELECT COUNT(*) FROM page"); err != nil {
		return 0, 0, 0, err
	}
	if lemmas, err = s.count(ctx, s.db, "SELECT COUNT(*) FROM lemma"); err != nil {
		return 0, 0, 0, err
	}
	return sites, pages, lemmas, nil
}

// SavePage stores a page together with its lemma counts in one transaction.
// It returns false without touching lemmas when the page already exists.
// Lemma frequencies grow by the page counts; index ranks are set to the
// page counts, replacing any earlier value.
func (s *Store) SavePage(ctx context.Context, page Page, lemmas map[string]int) (bool, error) {
	defer s.observe("save_page", time.Now())

	created := false
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.dialect.rebind(
			`INSERT INTO page (site_id, path, code, content) VALUES (?, ?, ?, ?)
			 ON CONFLICT (site_id, path) DO NOTHING RETURNING id`),
			page.SiteID, page.Path, page.Code, page.Content,
		).Scan(&page.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert page %s: %w", page.Path, err)
		}
		created = true

		// Sorted keys keep the lock order stable across concurrent writers.
		keys := make([]string, 0, len(lemmas))
		for lemma := range lemmas {
			keys = append(keys, lemma)
		}
		sort.Strings(keys)

		for _, lemma := range keys {
			count := lemmas[lemma]
			entry, err := NewIndexEntry(page.ID, 0, float64(count))
			if err != nil {
				return fmt.Errorf("lemma %q: %w", lemma, err)
			}

			err = tx.QueryRowContext(ctx, s.dialect.rebind(
				`INSERT INTO lemma (site_id, lemma, frequency) VALUES (?, ?, ?)
				 ON CONFLICT (site_id, lemma) DO UPDATE SET frequency = lemma.frequency + excluded.frequency
				 RETURNING id`),
				page.SiteID, lemma, count,
			).Scan(&entry.LemmaID)
			if err != nil {
				return fmt.Errorf("upsert lemma %q: %w", lemma, err)
			}

			if _, err := tx.ExecContext(ctx, s.dialect.rebind(
				`INSERT INTO search_index (page_id, lemma_id, rank) VALUES (?, ?, ?)
				 ON CONFLICT (page_id, lemma_id) DO UPDATE SET rank = excluded.rank`),
				entry.PageID, entry.LemmaID, entry.Rank,
			); err != nil {
				return fmt.Errorf("upsert index entry %q: %w", lemma, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to save page %s: %w", page.Path, err)
	}
	return created, nil
}

// DeletePage removes a page and subtracts its ranks from the lemma
// frequencies of the site. Lemmas left with no occurrences are removed.
func (s *Store) DeletePage(ctx context.Context, siteID int64, path string) (bool, error) {
	defer s.observe("delete_page", time.Now())

	deleted := false
	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		var pageID int64
		err := tx.QueryRowContext(ctx, s.dialect.rebind(
			"SELECT id FROM page WHERE site_id = ? AND path = ?"), siteID, path,
		).Scan(&pageID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		entries, err := s.indexEntriesForPage(ctx, tx, pageID)
		if err != nil {
			return err
		}

		for _, e := range entries {
			n := int(math.Round(e.Rank))
			if _, err := tx.ExecContext(ctx, s.dialect.rebind(
				"UPDATE lemma SET frequency = CASE WHEN frequency > ? THEN frequency - ? ELSE 0 END WHERE id = ?"),
				n, n, e.LemmaID,
			); err != nil {
				return fmt.Errorf("update lemma %d: %w", e.LemmaID, err)
			}
		}

		if _, err := tx.ExecContext(ctx, s.dialect.rebind("DELETE FROM page WHERE id = ?"), pageID); err != nil {
			return fmt.Errorf("delete page: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(
			"DELETE FROM lemma WHERE site_id = ? AND frequency <= 0"), siteID,
		); err != nil {
			return fmt.Errorf("delete unused lemmas: %w", err)
		}

		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete page %s: %w", path, err)
	}
	return deleted, nil
}

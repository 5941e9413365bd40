package storage

import (
	"context"
	"fmt"
)

func (s *Store) ListLemmas(ctx context.Context, siteID int64) ([]Lemma, error) {
	return s.queryLemmas(ctx,
		"SELECT id, site_id, lemma, frequency FROM lemma WHERE site_id = ? ORDER BY lemma", siteID)
}

// FindLemmas returns the rows of a lemma across all sites.
func (s *Store) FindLemmas(ctx context.Context, lemma string) ([]Lemma, error) {
	return s.queryLemmas(ctx,
		"SELECT id, site_id, lemma, frequency FROM lemma WHERE lemma = ? ORDER BY site_id", lemma)
}

func (s *Store) queryLemmas(ctx context.Context, query string, args ...any) ([]Lemma, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lemmas: %w", err)
	}
	defer rows.Close()

	lemmas := []Lemma{}
	for rows.Next() {
		var l Lemma
		if err := rows.Scan(&l.ID, &l.SiteID, &l.Lemma, &l.Frequency); err != nil {
			return nil, fmt.Errorf("failed to scan lemma: %w", err)
		}
		lemmas = append(lemmas, l)
	}
	return lemmas, rows.Err()
}

func (s *Store) GetIndexEntry(ctx context.Context, id int64) (IndexEntry, error) {
	var e IndexEntry
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		"SELECT id, page_id, lemma_id, rank FROM search_index WHERE id = ?"), id,
	).Scan(&e.ID, &e.PageID, &e.LemmaID, &e.Rank)
	if err != nil {
		return IndexEntry{}, notFound(err)
	}
	return e, nil
}

// UpdateIndexRank replaces the rank of an index entry. Negative ranks are
// rejected before the store is touched.
func (s *Store) UpdateIndexRank(ctx context.Context, id int64, rank float64) error {
	if err := ValidateRank(rank); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		"UPDATE search_index SET rank = ? WHERE id = ?"), rank, id)
	if err != nil {
		return fmt.Errorf("failed to update index entry %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteIndexEntry(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind("DELETE FROM search_index WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete index entry %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IndexEntriesForPage(ctx context.Context, pageID int64) ([]IndexEntry, error) {
	return s.indexEntriesForPage(ctx, s.db, pageID)
}

func (s *Store) indexEntriesForPage(ctx context.Context, q queryer, pageID int64) ([]IndexEntry, error) {
	rows, err := q.QueryContext(ctx, s.dialect.rebind(
		"SELECT id, page_id, lemma_id, rank FROM search_index WHERE page_id = ? ORDER BY lemma_id"), pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query index entries: %w", err)
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var e IndexEntry
		if err := rows.Scan(&e.ID, &e.PageID, &e.LemmaID, &e.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan index entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

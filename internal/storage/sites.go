package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const siteColumns = "id, url, name, status, status_time, last_error"

// CreateSite inserts a site in the INDEXING state.
func (s *Store) CreateSite(ctx context.Context, url, name string) (Site, error) {
	defer s.observe("create_site", time.Now())

	site := Site{
		URL:        url,
		Name:       name,
		Status:     StatusIndexing,
		StatusTime: time.Now().UTC(),
	}
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		"INSERT INTO site (url, name, status, status_time) VALUES (?, ?, ?, ?) RETURNING id"),
		site.URL, site.Name, string(site.Status), site.StatusTime,
	).Scan(&site.ID)
	if err != nil {
		return Site{}, fmt.Errorf("failed to create site %s: %w", url, err)
	}
	return site, nil
}

// DeleteSiteByURL removes the site and, through cascading keys, all of its
// pages, lemmas and index entries.
func (s *Store) DeleteSiteByURL(ctx context.Context, url string) error {
	defer s.observe("delete_site", time.Now())

	if _, err := s.db.ExecContext(ctx, s.dialect.rebind("DELETE FROM site WHERE url = ?"), url); err != nil {
		return fmt.Errorf("failed to delete site %s: %w", url, err)
	}
	return nil
}

// UpdateSiteStatus sets the status and status time of a site. An empty
// lastError clears the stored error.
func (s *Store) UpdateSiteStatus(ctx context.Context, id int64, status Status, lastError string) error {
	defer s.observe("update_site_status", time.Now())

	var errValue sql.NullString
	if lastError != "" {
		errValue = sql.NullString{String: lastError, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		"UPDATE site SET status = ?, status_time = ?, last_error = ? WHERE id = ?"),
		string(status), time.Now().UTC(), errValue, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update site %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetSite(ctx context.Context, id int64) (Site, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		"SELECT "+siteColumns+" FROM site WHERE id = ?"), id)
	return scanSite(row)
}

func (s *Store) GetSiteByURL(ctx context.Context, url string) (Site, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		"SELECT "+siteColumns+" FROM site WHERE url = ?"), url)
	return scanSite(row)
}

func (s *Store) ListSites(ctx context.Context) ([]Site, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+siteColumns+" FROM site ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSite(row scanner) (Site, error) {
	var (
		site      Site
		status    string
		lastError sql.NullString
	)
	if err := row.Scan(&site.ID, &site.URL, &site.Name, &status, &site.StatusTime, &lastError); err != nil {
		return Site{}, notFound(err)
	}
	site.Status = Status(status)
	site.LastError = lastError.String
	return site, nil
}

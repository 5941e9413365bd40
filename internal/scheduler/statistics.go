package scheduler

import (
	"context"
	"errors"

	"github.com/deidaraiorek/siteindex/internal/storage"
)

type Statistics struct {
	Total    TotalStatistics      `json:"total"`
	Detailed []DetailedStatistics `json:"detailed"`
}

type TotalStatistics struct {
	Sites    int  `json:"sites"`
	Pages    int  `json:"pages"`
	Lemmas   int  `json:"lemmas"`
	Indexing bool `json:"indexing"`
}

type DetailedStatistics struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	Status string `json:"status"`
	// StatusTime is in Unix milliseconds, zero for never indexed sites.
	StatusTime int64  `json:"statusTime"`
	Error      string `json:"error,omitempty"`
	Pages      int    `json:"pages"`
	Lemmas     int    `json:"lemmas"`
}

// Statistics reports stored totals and the state of every configured site.
func (s *Scheduler) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{
		Total:    TotalStatistics{Indexing: s.IsIndexingInProgress()},
		Detailed: make([]DetailedStatistics, 0, len(s.sites)),
	}

	var err error
	stats.Total.Sites, stats.Total.Pages, stats.Total.Lemmas, err = s.store.Totals(ctx)
	if err != nil {
		return Statistics{}, err
	}

	for _, sc := range s.sites {
		item := DetailedStatistics{URL: sc.URL, Name: sc.Name}

		site, err := s.store.GetSiteByURL(ctx, sc.URL)
		if errors.Is(err, storage.ErrNotFound) {
			stats.Detailed = append(stats.Detailed, item)
			continue
		}
		if err != nil {
			return Statistics{}, err
		}

		item.Status = string(site.Status)
		item.StatusTime = site.StatusTime.UnixMilli()
		item.Error = site.LastError
		if item.Pages, err = s.store.CountPages(ctx, site.ID); err != nil {
			return Statistics{}, err
		}
		if item.Lemmas, err = s.store.CountLemmas(ctx, site.ID); err != nil {
			return Statistics{}, err
		}
		stats.Detailed = append(stats.Detailed, item)
	}
	return stats, nil
}

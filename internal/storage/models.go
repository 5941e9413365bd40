package storage

import (
	"errors"
	"time"
)

type Status string

const (
	StatusIndexing Status = "INDEXING"
	StatusIndexed  Status = "INDEXED"
	StatusFailed   Status = "FAILED"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNegativeRank = errors.New("rank must not be negative")
)

// Site is one configured website and the state of its latest indexing run.
type Site struct {
	ID         int64
	URL        string
	Name       string
	Status     Status
	StatusTime time.Time
	// LastError is empty when the site has no recorded failure.
	LastError string
}

// Page is a fetched document. Path is relative to the site root.
type Page struct {
	ID      int64
	SiteID  int64
	Path    string
	Code    int
	Content string
}

type Lemma struct {
	ID        int64
	SiteID    int64
	Lemma     string
	Frequency int
}

// IndexEntry links a page to a lemma with the lemma's count on that page.
type IndexEntry struct {
	ID      int64
	PageID  int64
	LemmaID int64
	Rank    float64
}

func NewIndexEntry(pageID, lemmaID int64, rank float64) (IndexEntry, error) {
	if err := ValidateRank(rank); err != nil {
		return IndexEntry{}, err
	}
	return IndexEntry{PageID: pageID, LemmaID: lemmaID, Rank: rank}, nil
}

func ValidateRank(rank float64) error {
	if rank < 0 {
		return ErrNegativeRank
	}
	return nil
}

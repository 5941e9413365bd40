package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/deidaraiorek/siteindex/internal/scheduler"
	"github.com/deidaraiorek/siteindex/internal/storage"
)

type resultResponse struct {
	Result bool   `json:"result"`
	Error  string `json:"error,omitempty"`
}

type statisticsResponse struct {
	Result     bool                 `json:"result"`
	Statistics scheduler.Statistics `json:"statistics"`
}

type lemmaDTO struct {
	ID        int64  `json:"id"`
	SiteID    int64  `json:"siteId"`
	Lemma     string `json:"lemma"`
	Frequency int    `json:"frequency"`
}

type lemmasResponse struct {
	Result bool       `json:"result"`
	Lemmas []lemmaDTO `json:"lemmas"`
}

type indexEntryDTO struct {
	ID      int64   `json:"id"`
	PageID  int64   `json:"pageId"`
	LemmaID int64   `json:"lemmaId"`
	Rank    float64 `json:"rank"`
}

type indexEntryResponse struct {
	Result bool          `json:"result"`
	Index  indexEntryDTO `json:"index"`
}

func (s *Server) handleStartIndexing(w http.ResponseWriter, r *http.Request) {
	if err := s.indexing.StartFullIndexing(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: true})
}

func (s *Server) handleStopIndexing(w http.ResponseWriter, r *http.Request) {
	if err := s.indexing.StopIndexing(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: true})
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	pageURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if pageURL == "" {
		pageURL = strings.TrimSpace(r.PostFormValue("url"))
	}
	if pageURL == "" {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "url is required"})
		return
	}

	if err := s.indexing.IndexPage(r.Context(), pageURL); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: true})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.indexing.Statistics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{Result: true, Statistics: stats})
}

func (s *Server) handleListLemmas(w http.ResponseWriter, r *http.Request) {
	siteID, err := strconv.ParseInt(r.URL.Query().Get("siteId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "siteId must be an integer"})
		return
	}

	lemmas, err := s.store.ListLemmas(r.Context(), siteID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lemmasResponse{Result: true, Lemmas: toLemmaDTOs(lemmas)})
}

func (s *Server) handleFindLemmas(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("lemma"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "lemma is required"})
		return
	}

	// Stop words and unresolved tokens have no stored lemma.
	var lemmas []storage.Lemma
	seen := make(map[string]bool)
	for _, lemma := range s.lemmatizer.Lemmas(query) {
		if seen[lemma] {
			continue
		}
		seen[lemma] = true

		found, err := s.store.FindLemmas(r.Context(), lemma)
		if err != nil {
			s.writeError(w, err)
			return
		}
		lemmas = append(lemmas, found...)
	}
	writeJSON(w, http.StatusOK, lemmasResponse{Result: true, Lemmas: toLemmaDTOs(lemmas)})
}

func (s *Server) handleGetIndexEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	entry, err := s.store.GetIndexEntry(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexEntryResponse{Result: true, Index: indexEntryDTO(entry)})
}

func (s *Server) handleUpdateRank(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rank, err := strconv.ParseFloat(r.URL.Query().Get("rank"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "rank must be a number"})
		return
	}

	if err := s.store.UpdateIndexRank(r.Context(), id, rank); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: true})
}

func (s *Server) handleDeleteIndexEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteIndexEntry(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: true})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, resultResponse{Error: "id must be an integer"})
		return 0, false
	}
	return id, true
}

func toLemmaDTOs(lemmas []storage.Lemma) []lemmaDTO {
	out := make([]lemmaDTO, 0, len(lemmas))
	for _, l := range lemmas {
		out = append(out, lemmaDTO(l))
	}
	return out
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning),
		errors.Is(err, scheduler.ErrNotRunning),
		errors.Is(err, scheduler.ErrOutsideSites),
		errors.Is(err, storage.ErrNegativeRank):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	default:
		s.logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, resultResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

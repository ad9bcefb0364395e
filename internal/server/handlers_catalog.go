package server

import (
	"net/http"
	"strings"

	"threebr/pkg/catalog"
	"threebr/pkg/domain"
)

func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.searchLimiter, "too many search requests") {
		return
	}
	query := r.URL.Query().Get("q")
	results, err := s.app.SearchCatalog(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	if results == nil {
		results = []catalog.Book{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

// handleCatalogWork serves /api/catalog/works/{id}, where id is the bare
// work identifier without the /works/ prefix.
func (s *Server) handleCatalogWork(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.searchLimiter, "too many catalog requests") {
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/catalog/works/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "work id required")
		return
	}
	details, err := s.app.CatalogDetails(r.Context(), "/works/"+id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type searchResponse struct {
	Results []catalog.Book `json:"results"`
}

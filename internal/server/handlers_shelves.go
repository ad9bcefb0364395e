package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"threebr/internal/app"
	"threebr/pkg/catalog"
	"threebr/pkg/domain"
)

func (s *Server) handleShelves(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.app.ListShelves(user.ID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if entries == nil {
			entries = []domain.ShelfEntry{}
		}
		writeJSON(w, http.StatusOK, shelvesResponse{Entries: entries})
	case http.MethodPost:
		if !s.allowRate(w, r, s.writeLimiter, "too many requests") {
			return
		}
		var req shelveRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		entry, err := s.app.ShelveCatalogBook(user.ID, req.Book, req.Status)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	default:
		methodNotAllowed(w)
	}
}

// handleShelfByBook serves /api/shelves/{bookId} and
// /api/shelves/{bookId}/rating.
func (s *Server) handleShelfByBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/shelves/"), "/")
	parts := strings.Split(rest, "/")
	bookID := parts[0]
	if bookID == "" {
		writeError(w, http.StatusBadRequest, "book id required")
		return
	}

	if len(parts) == 2 && parts[1] == "rating" {
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		var req ratingRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.app.RateBook(user.ID, bookID, req.Rating); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"rating": req.Rating})
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req shelfStatusRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		entry, err := s.app.ShelveBook(user.ID, bookID, req.Status)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if err := s.app.RemoveFromShelf(user.ID, bookID); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.writeLimiter, "too many requests") {
		return
	}
	var req onboardingRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	entries, err := s.app.Onboard(user.ID, req.Picks)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, shelvesResponse{Entries: entries})
}

type shelveRequest struct {
	Book   catalog.Book       `json:"book"`
	Status domain.ShelfStatus `json:"status"`
}

type shelfStatusRequest struct {
	Status domain.ShelfStatus `json:"status"`
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

type onboardingRequest struct {
	Picks []app.OnboardPick `json:"picks"`
}

type shelvesResponse struct {
	Entries []domain.ShelfEntry `json:"entries"`
}

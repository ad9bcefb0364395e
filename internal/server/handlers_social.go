package server

import (
	"net/http"
	"strings"

	"threebr/pkg/domain"
)

func (s *Server) handleProfileSearch(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.searchLimiter, "too many search requests") {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, profilesResponse{Profiles: []domain.Profile{}})
		return
	}
	profiles, err := s.app.SearchProfiles(query, 10)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if profiles == nil {
		profiles = []domain.Profile{}
	}
	writeJSON(w, http.StatusOK, profilesResponse{Profiles: profiles})
}

// handleProfileByID serves /api/profiles/{id} plus the /follow, /followers,
// and /following subresources.
func (s *Server) handleProfileByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/profiles/"), "/")
	parts := strings.Split(rest, "/")
	profileID := parts[0]
	if profileID == "" {
		writeError(w, http.StatusBadRequest, "profile id required")
		return
	}

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		view, err := s.app.GetProfileView(user.ID, profileID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case len(parts) == 2 && parts[1] == "follow":
		switch r.Method {
		case http.MethodPost:
			if err := s.app.Follow(user.ID, profileID); err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"following": true})
		case http.MethodDelete:
			if err := s.app.Unfollow(user.ID, profileID); err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"following": false})
		default:
			methodNotAllowed(w)
		}
	case len(parts) == 2 && parts[1] == "followers":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		profiles, err := s.app.ListFollowers(profileID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if profiles == nil {
			profiles = []domain.Profile{}
		}
		writeJSON(w, http.StatusOK, profilesResponse{Profiles: profiles})
	case len(parts) == 2 && parts[1] == "following":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		profiles, err := s.app.ListFollowing(profileID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if profiles == nil {
			profiles = []domain.Profile{}
		}
		writeJSON(w, http.StatusOK, profilesResponse{Profiles: profiles})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

type profilesResponse struct {
	Profiles []domain.Profile `json:"profiles"`
}

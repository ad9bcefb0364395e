package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"threebr/internal/app"
	"threebr/pkg/catalog"
	"threebr/pkg/domain"
	"threebr/pkg/feed"
)

// handleRecSets accepts a completed rec flow and persists it. The request
// carries the whole flow result; the server replays it through the flow state
// machine so every step rule is enforced server-side.
func (s *Server) handleRecSets(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.writeLimiter, "too many requests") {
		return
	}
	var req recSetRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	flow, err := replayFlow(req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	set, err := s.app.SubmitRecSet(user.ID, flow)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "recset.create", "success", "user_id", user.ID, "rec_set_id", set.ID)
	writeJSON(w, http.StatusCreated, set)
}

func replayFlow(req recSetRequest) (*app.Flow, error) {
	flow := app.NewFlow()
	if err := flow.SelectSource(req.Source); err != nil {
		return nil, err
	}
	if err := flow.SetRating(req.Rating); err != nil {
		return nil, err
	}
	if err := flow.SetReview(req.Review); err != nil {
		return nil, err
	}
	if err := flow.NextFromReview(); err != nil {
		return nil, err
	}
	for _, rec := range req.Recs {
		if err := flow.AddRec(rec.Book); err != nil {
			return nil, err
		}
	}
	if err := flow.NextFromRecs(); err != nil {
		return nil, err
	}
	for i, rec := range req.Recs {
		for _, tag := range rec.Tags {
			if err := flow.ToggleTag(i, tag); err != nil {
				return nil, err
			}
		}
	}
	if err := flow.SetNote(req.Note); err != nil {
		return nil, err
	}
	return flow, nil
}

// handleRecSetByID serves /api/recsets/{id}/like.
func (s *Server) handleRecSetByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/recsets/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "like" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	liked, count, err := s.app.ToggleLike(user.ID, parts[0])
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: liked, LikeCount: count})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sets, err := s.app.FollowedFeed(user.ID, 50)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if sets == nil {
		sets = []domain.RecSet{}
	}
	writeJSON(w, http.StatusOK, recSetsResponse{RecSets: sets})
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sets, err := s.app.ExploreFeed(50)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if sets == nil {
		sets = []domain.RecSet{}
	}
	writeJSON(w, http.StatusOK, recSetsResponse{RecSets: sets})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items, err := s.app.HomeTimeline()
	if err != nil {
		writeAppError(w, err)
		return
	}
	if items == nil {
		items = []feed.Item{}
	}
	writeJSON(w, http.StatusOK, timelineResponse{Items: items})
}

type recSetRequest struct {
	Source catalog.Book    `json:"source"`
	Rating int             `json:"rating"`
	Review string          `json:"review"`
	Recs   []recSetRecPick `json:"recs"`
	Note   string          `json:"note"`
}

type recSetRecPick struct {
	Book catalog.Book `json:"book"`
	Tags []string     `json:"tags"`
}

type likeResponse struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

type recSetsResponse struct {
	RecSets []domain.RecSet `json:"recSets"`
}

type timelineResponse struct {
	Items []feed.Item `json:"items"`
}

package app

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"threebr/pkg/domain"
	"threebr/pkg/feed"
)

const (
	feedRecSetLimit   = 50
	feedActivityLimit = 30
)

// ToggleLike flips the user's like on a rec set and returns the new state
// plus the updated count.
func (a *App) ToggleLike(userID, recSetID string) (bool, int, error) {
	liked, err := a.store.ToggleLike(userID, recSetID)
	if err != nil {
		return false, 0, fmt.Errorf("toggle like: %w", err)
	}
	count, err := a.store.LikeCount(recSetID)
	if err != nil {
		return liked, 0, fmt.Errorf("count likes: %w", err)
	}
	return liked, count, nil
}

// Follow creates the edge; following someone twice is a no-op.
func (a *App) Follow(followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}
	if _, ok, err := a.store.GetProfile(followeeID); err != nil {
		return fmt.Errorf("lookup followee: %w", err)
	} else if !ok {
		return ErrNotFound
	}
	return a.store.Follow(followerID, followeeID)
}

// Unfollow removes the edge.
func (a *App) Unfollow(followerID, followeeID string) error {
	return a.store.Unfollow(followerID, followeeID)
}

// SearchProfiles matches handles and display names.
func (a *App) SearchProfiles(query string, limit int) ([]domain.Profile, error) {
	return a.store.SearchProfiles(query, limit)
}

// ProfileView is a profile page: the profile, its rec sets, follower and
// following counts, and whether the viewer follows it.
type ProfileView struct {
	Profile        domain.Profile  `json:"profile"`
	RecSets        []domain.RecSet `json:"recSets"`
	FollowerCount  int             `json:"followerCount"`
	FollowingCount int             `json:"followingCount"`
	Following      bool            `json:"following"`
}

// GetProfileView assembles a profile page for the viewer.
func (a *App) GetProfileView(viewerID, profileID string) (ProfileView, error) {
	profile, ok, err := a.store.GetProfile(profileID)
	if err != nil {
		return ProfileView{}, fmt.Errorf("lookup profile: %w", err)
	}
	if !ok {
		return ProfileView{}, ErrNotFound
	}
	sets, err := a.store.ListRecSetsByAuthor(profileID)
	if err != nil {
		return ProfileView{}, fmt.Errorf("list rec sets: %w", err)
	}
	followers, err := a.store.ListFollowers(profileID)
	if err != nil {
		return ProfileView{}, fmt.Errorf("list followers: %w", err)
	}
	following, err := a.store.ListFollowing(profileID)
	if err != nil {
		return ProfileView{}, fmt.Errorf("list following: %w", err)
	}
	viewerFollows := false
	if viewerID != "" && viewerID != profileID {
		viewerFollows, err = a.store.IsFollowing(viewerID, profileID)
		if err != nil {
			return ProfileView{}, fmt.Errorf("check follow: %w", err)
		}
	}
	return ProfileView{
		Profile:        profile,
		RecSets:        sets,
		FollowerCount:  len(followers),
		FollowingCount: len(following),
		Following:      viewerFollows,
	}, nil
}

// ListFollowers returns profiles following the user.
func (a *App) ListFollowers(userID string) ([]domain.Profile, error) {
	return a.store.ListFollowers(userID)
}

// ListFollowing returns profiles the user follows.
func (a *App) ListFollowing(userID string) ([]domain.Profile, error) {
	return a.store.ListFollowing(userID)
}

// FollowedFeed returns rec sets from followed authors plus the user's own.
func (a *App) FollowedFeed(userID string, limit int) ([]domain.RecSet, error) {
	return a.store.GetFeed(userID, limit)
}

// ExploreFeed returns the global recency feed of rec sets.
func (a *App) ExploreFeed(limit int) ([]domain.RecSet, error) {
	return a.store.GetExploreFeed(limit)
}

// HomeTimeline merges the explore feed with recent activity into one stream.
// The two reads run in parallel; either failing fails the timeline.
func (a *App) HomeTimeline() ([]feed.Item, error) {
	var (
		sets       []domain.RecSet
		activities []domain.Activity
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		sets, err = a.store.GetExploreFeed(feedRecSetLimit)
		return err
	})
	g.Go(func() error {
		var err error
		activities, err = a.store.ListActivities(feedActivityLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}
	return feed.Merge(sets, activities), nil
}

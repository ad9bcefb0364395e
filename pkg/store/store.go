package store

import (
	"errors"

	"threebr/pkg/domain"
)

// ErrNotFound is returned when an update or delete targets a missing row.
var ErrNotFound = errors.New("not found")

// Store defines persistence operations for users, profiles, books, shelves,
// rec sets, follows, likes, and activities.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// profiles
	SaveProfile(domain.Profile) error
	GetProfile(id string) (domain.Profile, bool, error)
	GetProfileByHandle(handle string) (domain.Profile, bool, error)
	SearchProfiles(query string, limit int) ([]domain.Profile, error)

	// books
	FindOrCreateBook(domain.Book) (domain.Book, error)
	GetBook(id string) (domain.Book, bool, error)

	// shelves
	UpsertShelf(userID, bookID string, status domain.ShelfStatus) (domain.ShelfEntry, error)
	RemoveFromShelf(userID, bookID string) error
	RateShelf(userID, bookID string, rating int) error
	ListShelves(userID string) ([]domain.ShelfEntry, error)

	// rec sets
	CreateRecSet(set domain.RecSet, recs []domain.Rec) (domain.RecSet, error)
	GetFeed(userID string, limit int) ([]domain.RecSet, error)
	GetExploreFeed(limit int) ([]domain.RecSet, error)
	ListRecSetsByAuthor(userID string) ([]domain.RecSet, error)

	// likes
	ToggleLike(userID, recSetID string) (bool, error)
	LikeCount(recSetID string) (int, error)

	// follows
	Follow(followerID, followeeID string) error
	Unfollow(followerID, followeeID string) error
	ListFollowers(userID string) ([]domain.Profile, error)
	ListFollowing(userID string) ([]domain.Profile, error)
	IsFollowing(followerID, followeeID string) (bool, error)

	// activities
	CreateActivity(domain.Activity) error
	ListActivities(limit int) ([]domain.Activity, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

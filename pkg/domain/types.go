package domain

import "time"

type ShelfStatus string

const (
	ShelfToBeRead ShelfStatus = "to-be-read"
	ShelfReading  ShelfStatus = "reading"
	ShelfRead     ShelfStatus = "read"
)

// ValidShelfStatus reports whether s is one of the three shelf states.
func ValidShelfStatus(s ShelfStatus) bool {
	switch s {
	case ShelfToBeRead, ShelfReading, ShelfRead:
		return true
	}
	return false
}

type ActivityType string

const (
	ActivityShelved ActivityType = "shelved"
	ActivityJoined  ActivityType = "joined"
)

// SimilarityTags is the fixed vocabulary a rec may be tagged with.
var SimilarityTags = []string{
	"Plot", "Tone", "Themes", "Voice", "Characters",
	"Tropes", "Setting", "Pacing", "Mood", "Structure",
}

// ValidSimilarityTag reports whether tag belongs to the vocabulary.
func ValidSimilarityTag(tag string) bool {
	for _, t := range SimilarityTags {
		if t == tag {
			return true
		}
	}
	return false
}

const (
	MaxReviewLen = 500
	MaxNoteLen   = 300
	RecsPerSet   = 3
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is the public identity of a user. Its ID equals the user ID.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Handle      string    `json:"handle"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Book is a stored book record. Books are created on first reference from a
// catalog search result and never deleted. CatalogKey is the stable external
// identifier used to deduplicate rows; it is empty for books created without
// a catalog match.
type Book struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	ISBN       string    `json:"isbn,omitempty"`
	Pages      int       `json:"pages,omitempty"`
	PubYear    int       `json:"pubYear,omitempty"`
	CatalogKey string    `json:"catalogKey,omitempty"`
	CoverID    int64     `json:"coverId,omitempty"`
	Subjects   []string  `json:"subjects,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ShelfEntry tracks one (user, book) pair. At most one entry exists per pair.
type ShelfEntry struct {
	UserID       string      `json:"userId"`
	BookID       string      `json:"bookId"`
	Status       ShelfStatus `json:"status"`
	Rating       int         `json:"rating,omitempty"`
	DateAdded    time.Time   `json:"dateAdded"`
	DateFinished *time.Time  `json:"dateFinished,omitempty"`
	Book         *Book       `json:"book,omitempty"`
}

// RecSet is one user's bundle of exactly three recommendations tied to a
// finished source book.
type RecSet struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	SourceBookID string    `json:"sourceBookId"`
	Rating       int       `json:"rating"`
	Review       string    `json:"review,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`

	Author     *Profile `json:"author,omitempty"`
	SourceBook *Book    `json:"sourceBook,omitempty"`
	Recs       []Rec    `json:"recs,omitempty"`
	LikeCount  int      `json:"likeCount"`
}

// Rec is one recommended book inside a rec set. Position is 1..3, unique
// within the set; ordering is significant for display.
type Rec struct {
	ID       string   `json:"id"`
	RecSetID string   `json:"recSetId"`
	BookID   string   `json:"bookId"`
	Position int      `json:"position"`
	Tags     []string `json:"tags"`
	Book     *Book    `json:"book,omitempty"`
}

type Follow struct {
	FollowerID string    `json:"followerId"`
	FolloweeID string    `json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Like struct {
	UserID    string    `json:"userId"`
	RecSetID  string    `json:"recSetId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Activity is a denormalized log entry used for feed merging. Profile and
// Book are joined on read; either may be nil when the referenced row failed
// to load, in which case the feed drops the item.
type Activity struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Type      ActivityType `json:"type"`
	BookID    string       `json:"bookId,omitempty"`
	Shelf     ShelfStatus  `json:"shelf,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`

	Profile *Profile `json:"profile,omitempty"`
	Book    *Book    `json:"book,omitempty"`
}

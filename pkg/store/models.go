package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type ProfileModel struct {
	ID          string    `gorm:"primaryKey"`
	DisplayName string    `gorm:"not null"`
	Handle      string    `gorm:"uniqueIndex;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (ProfileModel) TableName() string { return "profiles" }

// CatalogKey is a pointer so that books without an external key do not
// collide on the unique index.
type BookModel struct {
	ID         string         `gorm:"primaryKey"`
	Title      string         `gorm:"not null"`
	Author     string         `gorm:"not null"`
	ISBN       string
	Pages      int
	PubYear    int
	CatalogKey *string        `gorm:"uniqueIndex"`
	CoverID    int64
	Subjects   datatypes.JSON `gorm:"type:jsonb"`
	Summary    string         `gorm:"type:text"`
	CreatedAt  time.Time      `gorm:"not null"`
}

func (BookModel) TableName() string { return "books" }

type ShelfModel struct {
	UserID       string    `gorm:"primaryKey"`
	BookID       string    `gorm:"primaryKey"`
	Status       string    `gorm:"not null"`
	Rating       int
	DateAdded    time.Time `gorm:"not null;index"`
	DateFinished *time.Time

	Book *BookModel `gorm:"foreignKey:BookID"`
}

func (ShelfModel) TableName() string { return "shelves" }

type RecSetModel struct {
	ID           string    `gorm:"primaryKey"`
	UserID       string    `gorm:"not null;index"`
	SourceBookID string    `gorm:"not null"`
	Rating       int       `gorm:"not null"`
	Review       string    `gorm:"type:text"`
	Note         string
	CreatedAt    time.Time `gorm:"not null;index"`

	Author     *ProfileModel `gorm:"foreignKey:UserID"`
	SourceBook *BookModel    `gorm:"foreignKey:SourceBookID"`
	Recs       []RecModel    `gorm:"foreignKey:RecSetID"`
}

func (RecSetModel) TableName() string { return "rec_sets" }

type RecModel struct {
	ID       string         `gorm:"primaryKey"`
	RecSetID string         `gorm:"not null;uniqueIndex:idx_recs_set_position"`
	BookID   string         `gorm:"not null"`
	Position int            `gorm:"not null;uniqueIndex:idx_recs_set_position"`
	Tags     datatypes.JSON `gorm:"type:jsonb"`

	Book *BookModel `gorm:"foreignKey:BookID"`
}

func (RecModel) TableName() string { return "recs" }

type FollowModel struct {
	FollowerID string    `gorm:"primaryKey"`
	FolloweeID string    `gorm:"primaryKey"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (FollowModel) TableName() string { return "follows" }

type LikeModel struct {
	UserID    string    `gorm:"primaryKey"`
	RecSetID  string    `gorm:"primaryKey;index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (LikeModel) TableName() string { return "rec_set_likes" }

type ActivityModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	Type      string    `gorm:"not null"`
	BookID    *string
	Shelf     string
	CreatedAt time.Time `gorm:"not null;index"`

	Profile *ProfileModel `gorm:"foreignKey:UserID"`
	Book    *BookModel    `gorm:"foreignKey:BookID"`
}

func (ActivityModel) TableName() string { return "activities" }

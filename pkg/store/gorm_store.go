package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"threebr/internal/util"
	"threebr/pkg/domain"
)

const migrateLockID int64 = 33303330

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent replicas do not race on schema changes.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&UserModel{}, &ProfileModel{}, &BookModel{}, &ShelfModel{},
			&RecSetModel{}, &RecModel{}, &FollowModel{}, &LikeModel{}, &ActivityModel{},
		)
	}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)"); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)")
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string) error {
	_, err := conn.ExecContext(ctx, query, migrateLockID)
	return err
}

// users

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// profiles

// SaveProfile upserts a profile keyed by user id.
func (s *GormStore) SaveProfile(p domain.Profile) error {
	model := profileToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "handle"}),
	}).Create(&model).Error
}

// GetProfile returns a profile by user id.
func (s *GormStore) GetProfile(id string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// GetProfileByHandle returns the profile owning a handle, case-insensitively.
func (s *GormStore) GetProfileByHandle(handle string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.First(&model, "LOWER(handle) = LOWER(?)", handle).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// SearchProfiles matches display name or handle, case-insensitively.
func (s *GormStore) SearchProfiles(query string, limit int) ([]domain.Profile, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + query + "%"
	var models []ProfileModel
	if err := s.db.Where("display_name ILIKE ? OR handle ILIKE ?", pattern, pattern).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	profiles := make([]domain.Profile, 0, len(models))
	for _, m := range models {
		profiles = append(profiles, profileFromModel(m))
	}
	return profiles, nil
}

// books

// FindOrCreateBook looks a book up by its external catalog key and inserts a
// new row when absent. The catalog key carries a unique index and the insert
// uses ON CONFLICT DO NOTHING, so racing callers converge on a single row.
func (s *GormStore) FindOrCreateBook(b domain.Book) (domain.Book, error) {
	if b.CatalogKey != "" {
		var existing BookModel
		err := s.db.Where("catalog_key = ?", b.CatalogKey).First(&existing).Error
		if err == nil {
			return bookFromModel(existing), nil
		}
		if err != gorm.ErrRecordNotFound {
			return domain.Book{}, err
		}
	}

	model := bookToModel(b)
	if model.ID == "" {
		model.ID = util.NewID()
	}
	model.CreatedAt = time.Now().UTC()

	if b.CatalogKey == "" {
		if err := s.db.Create(&model).Error; err != nil {
			return domain.Book{}, err
		}
		return bookFromModel(model), nil
	}

	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "catalog_key"}},
		DoNothing: true,
	}).Create(&model)
	if res.Error != nil {
		return domain.Book{}, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the insert race; fetch the winner.
		var existing BookModel
		if err := s.db.Where("catalog_key = ?", b.CatalogKey).First(&existing).Error; err != nil {
			return domain.Book{}, err
		}
		return bookFromModel(existing), nil
	}
	return bookFromModel(model), nil
}

// GetBook retrieves a book by internal id.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// shelves

// UpsertShelf writes the (user, book) pair, replacing status and timestamps
// on conflict. The finished timestamp is set only for the read status.
func (s *GormStore) UpsertShelf(userID, bookID string, status domain.ShelfStatus) (domain.ShelfEntry, error) {
	now := time.Now().UTC()
	var finished *time.Time
	if status == domain.ShelfRead {
		finished = &now
	}
	model := ShelfModel{
		UserID:       userID,
		BookID:       bookID,
		Status:       string(status),
		DateAdded:    now,
		DateFinished: finished,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "book_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "date_added", "date_finished"}),
	}).Create(&model).Error; err != nil {
		return domain.ShelfEntry{}, err
	}
	// The conflict update leaves any prior rating in place; re-select so the
	// returned entry carries it.
	var saved ShelfModel
	if err := s.db.First(&saved, "user_id = ? AND book_id = ?", userID, bookID).Error; err != nil {
		return domain.ShelfEntry{}, err
	}
	return shelfFromModel(saved), nil
}

// RemoveFromShelf deletes the (user, book) entry.
func (s *GormStore) RemoveFromShelf(userID, bookID string) error {
	return s.db.Where("user_id = ? AND book_id = ?", userID, bookID).Delete(&ShelfModel{}).Error
}

// RateShelf sets the rating on an existing entry.
func (s *GormStore) RateShelf(userID, bookID string, rating int) error {
	res := s.db.Model(&ShelfModel{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Update("rating", rating)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListShelves returns the user's entries newest-added first with books joined.
func (s *GormStore) ListShelves(userID string) ([]domain.ShelfEntry, error) {
	var models []ShelfModel
	if err := s.db.Preload("Book").
		Where("user_id = ?", userID).
		Order("date_added DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.ShelfEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, shelfFromModel(m))
	}
	return entries, nil
}

// rec sets

// CreateRecSet inserts the rec set and its three rec rows in one
// transaction, assigning positions 1..3 from the input order.
func (s *GormStore) CreateRecSet(set domain.RecSet, recs []domain.Rec) (domain.RecSet, error) {
	if len(recs) != domain.RecsPerSet {
		return domain.RecSet{}, fmt.Errorf("rec set requires exactly %d recs, got %d", domain.RecsPerSet, len(recs))
	}
	if set.ID == "" {
		set.ID = util.NewID()
	}
	set.CreatedAt = time.Now().UTC()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		setModel := recSetToModel(set)
		if err := tx.Create(&setModel).Error; err != nil {
			return err
		}
		for i := range recs {
			recs[i].ID = util.NewID()
			recs[i].RecSetID = set.ID
			recs[i].Position = i + 1
			recModel := recToModel(recs[i])
			if err := tx.Create(&recModel).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.RecSet{}, err
	}
	set.Recs = recs
	return set, nil
}

// GetFeed returns rec sets authored by the user's followees or the user,
// newest first, with author, source book, and positioned recs joined.
func (s *GormStore) GetFeed(userID string, limit int) ([]domain.RecSet, error) {
	var followeeIDs []string
	if err := s.db.Model(&FollowModel{}).
		Where("follower_id = ?", userID).
		Pluck("followee_id", &followeeIDs).Error; err != nil {
		return nil, err
	}
	authorIDs := append(followeeIDs, userID)
	return s.listRecSets(s.db.Where("user_id IN ?", authorIDs), limit)
}

// GetExploreFeed returns the global recency feed.
func (s *GormStore) GetExploreFeed(limit int) ([]domain.RecSet, error) {
	return s.listRecSets(s.db, limit)
}

// ListRecSetsByAuthor returns one user's rec sets for profile pages.
func (s *GormStore) ListRecSetsByAuthor(userID string) ([]domain.RecSet, error) {
	return s.listRecSets(s.db.Where("user_id = ?", userID), 0)
}

func (s *GormStore) listRecSets(tx *gorm.DB, limit int) ([]domain.RecSet, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []RecSetModel
	if err := tx.
		Preload("Author").
		Preload("SourceBook").
		Preload("Recs", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Recs.Book").
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	sets := make([]domain.RecSet, 0, len(models))
	ids := make([]string, 0, len(models))
	for _, m := range models {
		sets = append(sets, recSetFromModel(m))
		ids = append(ids, m.ID)
	}
	counts, err := s.likeCounts(ids)
	if err != nil {
		return nil, err
	}
	for i := range sets {
		sets[i].LikeCount = counts[sets[i].ID]
	}
	return sets, nil
}

func (s *GormStore) likeCounts(recSetIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(recSetIDs))
	if len(recSetIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		RecSetID string
		N        int
	}
	if err := s.db.Model(&LikeModel{}).
		Select("rec_set_id, COUNT(*) AS n").
		Where("rec_set_id IN ?", recSetIDs).
		Group("rec_set_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.RecSetID] = row.N
	}
	return counts, nil
}

// likes

// ToggleLike deletes the like when present, otherwise inserts it. The two
// steps run in one transaction so a double-toggle cannot double-insert.
func (s *GormStore) ToggleLike(userID, recSetID string) (bool, error) {
	liked := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND rec_set_id = ?", userID, recSetID).Delete(&LikeModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		like := LikeModel{UserID: userID, RecSetID: recSetID, CreatedAt: time.Now().UTC()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
			return err
		}
		liked = true
		return nil
	})
	return liked, err
}

// LikeCount returns the number of likes on a rec set.
func (s *GormStore) LikeCount(recSetID string) (int, error) {
	var count int64
	if err := s.db.Model(&LikeModel{}).Where("rec_set_id = ?", recSetID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// follows

// Follow inserts the edge; duplicate inserts are ignored.
func (s *GormStore) Follow(followerID, followeeID string) error {
	model := FollowModel{FollowerID: followerID, FolloweeID: followeeID, CreatedAt: time.Now().UTC()}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// Unfollow deletes the edge.
func (s *GormStore) Unfollow(followerID, followeeID string) error {
	return s.db.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&FollowModel{}).Error
}

// ListFollowers returns profiles following the user.
func (s *GormStore) ListFollowers(userID string) ([]domain.Profile, error) {
	return s.followEdgeProfiles("follower_id", "followee_id", userID)
}

// ListFollowing returns profiles the user follows.
func (s *GormStore) ListFollowing(userID string) ([]domain.Profile, error) {
	return s.followEdgeProfiles("followee_id", "follower_id", userID)
}

func (s *GormStore) followEdgeProfiles(selectCol, whereCol, userID string) ([]domain.Profile, error) {
	var models []ProfileModel
	if err := s.db.Model(&ProfileModel{}).
		Joins(fmt.Sprintf("JOIN follows ON follows.%s = profiles.id", selectCol)).
		Where(fmt.Sprintf("follows.%s = ?", whereCol), userID).
		Find(&models).Error; err != nil {
		return nil, err
	}
	profiles := make([]domain.Profile, 0, len(models))
	for _, m := range models {
		profiles = append(profiles, profileFromModel(m))
	}
	return profiles, nil
}

// IsFollowing reports whether the edge exists.
func (s *GormStore) IsFollowing(followerID, followeeID string) (bool, error) {
	var count int64
	if err := s.db.Model(&FollowModel{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// activities

// CreateActivity appends one log entry.
func (s *GormStore) CreateActivity(a domain.Activity) error {
	if a.ID == "" {
		a.ID = util.NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	model := activityToModel(a)
	return s.db.Create(&model).Error
}

// ListActivities returns recent entries newest first with profile and book
// joined. Entries whose referenced rows are gone come back with nil joins;
// the feed layer drops them.
func (s *GormStore) ListActivities(limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 30
	}
	var models []ActivityModel
	if err := s.db.Preload("Profile").Preload("Book").
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	activities := make([]domain.Activity, 0, len(models))
	for _, m := range models {
		activities = append(activities, activityFromModel(m))
	}
	return activities, nil
}

// model conversions

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func profileToModel(p domain.Profile) ProfileModel {
	return ProfileModel{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Handle:      p.Handle,
		CreatedAt:   p.CreatedAt,
	}
}

func profileFromModel(m ProfileModel) domain.Profile {
	return domain.Profile{
		ID:          m.ID,
		DisplayName: m.DisplayName,
		Handle:      m.Handle,
		CreatedAt:   m.CreatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	var key *string
	if b.CatalogKey != "" {
		value := b.CatalogKey
		key = &value
	}
	subjects, _ := json.Marshal(b.Subjects)
	return BookModel{
		ID:         b.ID,
		Title:      b.Title,
		Author:     b.Author,
		ISBN:       b.ISBN,
		Pages:      b.Pages,
		PubYear:    b.PubYear,
		CatalogKey: key,
		CoverID:    b.CoverID,
		Subjects:   subjects,
		Summary:    b.Summary,
		CreatedAt:  b.CreatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	key := ""
	if m.CatalogKey != nil {
		key = *m.CatalogKey
	}
	var subjects []string
	if len(m.Subjects) > 0 {
		_ = json.Unmarshal(m.Subjects, &subjects)
	}
	return domain.Book{
		ID:         m.ID,
		Title:      m.Title,
		Author:     m.Author,
		ISBN:       m.ISBN,
		Pages:      m.Pages,
		PubYear:    m.PubYear,
		CatalogKey: key,
		CoverID:    m.CoverID,
		Subjects:   subjects,
		Summary:    m.Summary,
		CreatedAt:  m.CreatedAt,
	}
}

func shelfFromModel(m ShelfModel) domain.ShelfEntry {
	entry := domain.ShelfEntry{
		UserID:       m.UserID,
		BookID:       m.BookID,
		Status:       domain.ShelfStatus(m.Status),
		Rating:       m.Rating,
		DateAdded:    m.DateAdded,
		DateFinished: m.DateFinished,
	}
	if m.Book != nil {
		book := bookFromModel(*m.Book)
		entry.Book = &book
	}
	return entry
}

func recSetToModel(set domain.RecSet) RecSetModel {
	return RecSetModel{
		ID:           set.ID,
		UserID:       set.UserID,
		SourceBookID: set.SourceBookID,
		Rating:       set.Rating,
		Review:       set.Review,
		Note:         set.Note,
		CreatedAt:    set.CreatedAt,
	}
}

func recSetFromModel(m RecSetModel) domain.RecSet {
	set := domain.RecSet{
		ID:           m.ID,
		UserID:       m.UserID,
		SourceBookID: m.SourceBookID,
		Rating:       m.Rating,
		Review:       m.Review,
		Note:         m.Note,
		CreatedAt:    m.CreatedAt,
	}
	if m.Author != nil {
		author := profileFromModel(*m.Author)
		set.Author = &author
	}
	if m.SourceBook != nil {
		book := bookFromModel(*m.SourceBook)
		set.SourceBook = &book
	}
	for _, rec := range m.Recs {
		set.Recs = append(set.Recs, recFromModel(rec))
	}
	return set
}

func recToModel(rec domain.Rec) RecModel {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	raw, _ := json.Marshal(tags)
	return RecModel{
		ID:       rec.ID,
		RecSetID: rec.RecSetID,
		BookID:   rec.BookID,
		Position: rec.Position,
		Tags:     raw,
	}
}

func recFromModel(m RecModel) domain.Rec {
	var tags []string
	if len(m.Tags) > 0 {
		_ = json.Unmarshal(m.Tags, &tags)
	}
	rec := domain.Rec{
		ID:       m.ID,
		RecSetID: m.RecSetID,
		BookID:   m.BookID,
		Position: m.Position,
		Tags:     tags,
	}
	if m.Book != nil {
		book := bookFromModel(*m.Book)
		rec.Book = &book
	}
	return rec
}

func activityToModel(a domain.Activity) ActivityModel {
	var bookID *string
	if a.BookID != "" {
		value := a.BookID
		bookID = &value
	}
	return ActivityModel{
		ID:        a.ID,
		UserID:    a.UserID,
		Type:      string(a.Type),
		BookID:    bookID,
		Shelf:     string(a.Shelf),
		CreatedAt: a.CreatedAt,
	}
}

func activityFromModel(m ActivityModel) domain.Activity {
	bookID := ""
	if m.BookID != nil {
		bookID = *m.BookID
	}
	activity := domain.Activity{
		ID:        m.ID,
		UserID:    m.UserID,
		Type:      domain.ActivityType(m.Type),
		BookID:    bookID,
		Shelf:     domain.ShelfStatus(m.Shelf),
		CreatedAt: m.CreatedAt,
	}
	if m.Profile != nil {
		profile := profileFromModel(*m.Profile)
		activity.Profile = &profile
	}
	if m.Book != nil {
		book := bookFromModel(*m.Book)
		activity.Book = &book
	}
	return activity
}

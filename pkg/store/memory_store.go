package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"threebr/internal/util"
	"threebr/pkg/domain"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	profiles   map[string]domain.Profile
	books      map[string]domain.Book
	bookByKey  map[string]string
	shelves    map[string]map[string]domain.ShelfEntry
	recSets    []domain.RecSet
	likes      map[string]map[string]time.Time
	follows    map[string]map[string]time.Time
	activities []domain.Activity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]domain.User),
		profiles:  make(map[string]domain.Profile),
		books:     make(map[string]domain.Book),
		bookByKey: make(map[string]string),
		shelves:   make(map[string]map[string]domain.ShelfEntry),
		likes:     make(map[string]map[string]time.Time),
		follows:   make(map[string]map[string]time.Time),
	}
}

func (s *MemoryStore) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) HasUserEmail(email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) SaveProfile(p domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

func (s *MemoryStore) GetProfile(id string) (domain.Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	return p, ok, nil
}

func (s *MemoryStore) GetProfileByHandle(handle string) (domain.Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Handle, handle) {
			return p, true, nil
		}
	}
	return domain.Profile{}, false, nil
}

func (s *MemoryStore) SearchProfiles(query string, limit int) ([]domain.Profile, error) {
	if limit <= 0 {
		limit = 10
	}
	needle := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []domain.Profile
	for _, p := range s.profiles {
		if strings.Contains(strings.ToLower(p.DisplayName), needle) ||
			strings.Contains(strings.ToLower(p.Handle), needle) {
			matches = append(matches, p)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Handle < matches[j].Handle })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemoryStore) FindOrCreateBook(b domain.Book) (domain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CatalogKey != "" {
		if id, ok := s.bookByKey[b.CatalogKey]; ok {
			return s.books[id], nil
		}
	}
	if b.ID == "" {
		b.ID = util.NewID()
	}
	b.CreatedAt = time.Now().UTC()
	s.books[b.ID] = b
	if b.CatalogKey != "" {
		s.bookByKey[b.CatalogKey] = b.ID
	}
	return b, nil
}

func (s *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	return b, ok, nil
}

func (s *MemoryStore) UpsertShelf(userID, bookID string, status domain.ShelfStatus) (domain.ShelfEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var finished *time.Time
	if status == domain.ShelfRead {
		finished = &now
	}
	entry := domain.ShelfEntry{
		UserID:       userID,
		BookID:       bookID,
		Status:       status,
		DateAdded:    now,
		DateFinished: finished,
	}
	if prev, ok := s.shelves[userID][bookID]; ok {
		entry.Rating = prev.Rating
	}
	if s.shelves[userID] == nil {
		s.shelves[userID] = make(map[string]domain.ShelfEntry)
	}
	s.shelves[userID][bookID] = entry
	return entry, nil
}

func (s *MemoryStore) RemoveFromShelf(userID, bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shelves[userID], bookID)
	return nil
}

func (s *MemoryStore) RateShelf(userID, bookID string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.shelves[userID][bookID]
	if !ok {
		return ErrNotFound
	}
	entry.Rating = rating
	s.shelves[userID][bookID] = entry
	return nil
}

func (s *MemoryStore) ListShelves(userID string) ([]domain.ShelfEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.ShelfEntry, 0, len(s.shelves[userID]))
	for _, entry := range s.shelves[userID] {
		if book, ok := s.books[entry.BookID]; ok {
			b := book
			entry.Book = &b
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DateAdded.After(entries[j].DateAdded)
	})
	return entries, nil
}

func (s *MemoryStore) CreateRecSet(set domain.RecSet, recs []domain.Rec) (domain.RecSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set.ID == "" {
		set.ID = util.NewID()
	}
	set.CreatedAt = time.Now().UTC()
	for i := range recs {
		recs[i].ID = util.NewID()
		recs[i].RecSetID = set.ID
		recs[i].Position = i + 1
	}
	set.Recs = recs
	s.recSets = append(s.recSets, set)
	return set, nil
}

func (s *MemoryStore) GetFeed(userID string, limit int) ([]domain.RecSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	authors := map[string]bool{userID: true}
	for followee := range s.follows[userID] {
		authors[followee] = true
	}
	return s.collectRecSets(func(set domain.RecSet) bool { return authors[set.UserID] }, limit), nil
}

func (s *MemoryStore) GetExploreFeed(limit int) ([]domain.RecSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectRecSets(func(domain.RecSet) bool { return true }, limit), nil
}

func (s *MemoryStore) ListRecSetsByAuthor(userID string) ([]domain.RecSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectRecSets(func(set domain.RecSet) bool { return set.UserID == userID }, 0), nil
}

// collectRecSets expects the read lock to be held.
func (s *MemoryStore) collectRecSets(match func(domain.RecSet) bool, limit int) []domain.RecSet {
	if limit <= 0 {
		limit = 20
	}
	var sets []domain.RecSet
	for _, set := range s.recSets {
		if !match(set) {
			continue
		}
		sets = append(sets, s.hydrateRecSet(set))
	}
	sort.SliceStable(sets, func(i, j int) bool {
		return sets[i].CreatedAt.After(sets[j].CreatedAt)
	})
	if len(sets) > limit {
		sets = sets[:limit]
	}
	return sets
}

func (s *MemoryStore) hydrateRecSet(set domain.RecSet) domain.RecSet {
	if p, ok := s.profiles[set.UserID]; ok {
		author := p
		set.Author = &author
	}
	if b, ok := s.books[set.SourceBookID]; ok {
		book := b
		set.SourceBook = &book
	}
	recs := make([]domain.Rec, len(set.Recs))
	copy(recs, set.Recs)
	for i := range recs {
		if b, ok := s.books[recs[i].BookID]; ok {
			book := b
			recs[i].Book = &book
		}
	}
	set.Recs = recs
	set.LikeCount = len(s.likes[set.ID])
	return set
}

func (s *MemoryStore) ToggleLike(userID, recSetID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.likes[recSetID][userID]; ok {
		delete(s.likes[recSetID], userID)
		return false, nil
	}
	if s.likes[recSetID] == nil {
		s.likes[recSetID] = make(map[string]time.Time)
	}
	s.likes[recSetID][userID] = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) LikeCount(recSetID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.likes[recSetID]), nil
}

func (s *MemoryStore) Follow(followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.follows[followerID] == nil {
		s.follows[followerID] = make(map[string]time.Time)
	}
	if _, ok := s.follows[followerID][followeeID]; !ok {
		s.follows[followerID][followeeID] = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) Unfollow(followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.follows[followerID], followeeID)
	return nil
}

func (s *MemoryStore) ListFollowers(userID string) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var profiles []domain.Profile
	for follower, followees := range s.follows {
		if _, ok := followees[userID]; !ok {
			continue
		}
		if p, ok := s.profiles[follower]; ok {
			profiles = append(profiles, p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Handle < profiles[j].Handle })
	return profiles, nil
}

func (s *MemoryStore) ListFollowing(userID string) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var profiles []domain.Profile
	for followee := range s.follows[userID] {
		if p, ok := s.profiles[followee]; ok {
			profiles = append(profiles, p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Handle < profiles[j].Handle })
	return profiles, nil
}

func (s *MemoryStore) IsFollowing(followerID, followeeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.follows[followerID][followeeID]
	return ok, nil
}

func (s *MemoryStore) CreateActivity(a domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = util.NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.activities = append(s.activities, a)
	return nil
}

func (s *MemoryStore) ListActivities(limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 30
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	activities := make([]domain.Activity, len(s.activities))
	copy(activities, s.activities)
	for i := range activities {
		if p, ok := s.profiles[activities[i].UserID]; ok {
			profile := p
			activities[i].Profile = &profile
		}
		if activities[i].BookID != "" {
			if b, ok := s.books[activities[i].BookID]; ok {
				book := b
				activities[i].Book = &book
			}
		}
	}
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	if len(activities) > limit {
		activities = activities[:limit]
	}
	return activities, nil
}

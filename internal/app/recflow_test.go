package app

import (
	"errors"
	"testing"
	"time"

	"threebr/pkg/catalog"
	"threebr/pkg/domain"
	"threebr/pkg/store"
)

func newTestApp(t *testing.T) (*App, *store.MemoryStore) {
	t.Helper()
	memStore := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	a, err := New(Config{Store: memStore, Sessions: sessions})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, memStore
}

func catalogBook(key, title string) catalog.Book {
	return catalog.Book{Key: key, Title: title, Author: "Author"}
}

func TestFlowStepGating(t *testing.T) {
	f := NewFlow()

	if err := f.SetRating(5); !errors.Is(err, ErrFlowIncomplete) {
		t.Fatalf("rating before source: %v", err)
	}
	if err := f.AddRec(catalogBook("/works/OL1W", "A")); !errors.Is(err, ErrFlowIncomplete) {
		t.Fatalf("rec before source: %v", err)
	}
	if err := f.SelectSource(catalog.Book{}); !errors.Is(err, ErrSourceRequired) {
		t.Fatalf("empty source: %v", err)
	}

	if err := f.SelectSource(catalogBook("/works/OL893415W", "Dune")); err != nil {
		t.Fatalf("select source: %v", err)
	}
	if err := f.NextFromReview(); !errors.Is(err, ErrRatingRequired) {
		t.Fatalf("next without rating: %v", err)
	}
	if err := f.SetRating(6); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("rating out of range: %v", err)
	}
	if err := f.SetRating(5); err != nil {
		t.Fatalf("set rating: %v", err)
	}
	if err := f.NextFromReview(); err != nil {
		t.Fatalf("next from review: %v", err)
	}

	if err := f.NextFromRecs(); !errors.Is(err, ErrRecCount) {
		t.Fatalf("next with zero recs: %v", err)
	}
}

func TestFlowRecPicksRejectDuplicatesAndCap(t *testing.T) {
	f := NewFlow()
	if err := f.SelectSource(catalogBook("/works/OL893415W", "Dune")); err != nil {
		t.Fatalf("select source: %v", err)
	}
	if err := f.SetRating(4); err != nil {
		t.Fatalf("set rating: %v", err)
	}
	if err := f.NextFromReview(); err != nil {
		t.Fatalf("next from review: %v", err)
	}

	if err := f.AddRec(catalogBook("/works/OL1W", "A")); err != nil {
		t.Fatalf("add rec: %v", err)
	}
	if err := f.AddRec(catalogBook("/works/OL1W", "A")); !errors.Is(err, ErrDuplicateRec) {
		t.Fatalf("duplicate rec: %v", err)
	}
	if err := f.AddRec(catalogBook("/works/OL2W", "B")); err != nil {
		t.Fatalf("add rec: %v", err)
	}
	if err := f.AddRec(catalogBook("/works/OL3W", "C")); err != nil {
		t.Fatalf("add rec: %v", err)
	}
	if err := f.AddRec(catalogBook("/works/OL4W", "D")); !errors.Is(err, ErrRecLimit) {
		t.Fatalf("over cap: %v", err)
	}

	if err := f.RemoveRec(1); err != nil {
		t.Fatalf("remove rec: %v", err)
	}
	if len(f.Recs) != 2 || f.Recs[1].Book.Key != "/works/OL3W" {
		t.Fatalf("unexpected recs after removal: %+v", f.Recs)
	}
}

func TestFlowTagging(t *testing.T) {
	f := flowAtTags(t)

	if err := f.ToggleTag(0, "Vibes"); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("unknown tag: %v", err)
	}
	if err := f.ToggleTag(0, "Plot"); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if len(f.Recs[0].Tags) != 1 || f.Recs[0].Tags[0] != "Plot" {
		t.Fatalf("tag not applied: %+v", f.Recs[0].Tags)
	}
	if err := f.ToggleTag(0, "Plot"); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if len(f.Recs[0].Tags) != 0 {
		t.Fatalf("tag not removed: %+v", f.Recs[0].Tags)
	}
	if err := f.SetNote(string(make([]byte, domain.MaxNoteLen+1))); !errors.Is(err, ErrNoteTooLong) {
		t.Fatalf("oversized note: %v", err)
	}
}

func TestFlowBackKeepsState(t *testing.T) {
	f := flowAtTags(t)
	f.Back()
	if f.Step != StepRecs {
		t.Fatalf("expected recs step, got %d", f.Step)
	}
	if f.Rating != 5 || len(f.Recs) != 3 {
		t.Fatalf("state lost on back: rating=%d recs=%d", f.Rating, len(f.Recs))
	}
}

func TestSubmitRecSetPersistsEverything(t *testing.T) {
	a, memStore := newTestApp(t)

	session, err := a.SignUp("ana@example.com", "readerpass1", "Ana", "ana")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	userID := session.User.ID

	f := flowAtTags(t)
	if err := f.ToggleTag(0, "Plot"); err != nil {
		t.Fatalf("tag rec 0: %v", err)
	}
	if err := f.ToggleTag(1, "Setting"); err != nil {
		t.Fatalf("tag rec 1: %v", err)
	}
	if err := f.SetReview("Epic"); err != nil {
		t.Fatalf("set review: %v", err)
	}

	set, err := a.SubmitRecSet(userID, f)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if set.Rating != 5 || set.Review != "Epic" {
		t.Fatalf("unexpected set: %+v", set)
	}
	if len(set.Recs) != domain.RecsPerSet {
		t.Fatalf("expected %d recs, got %d", domain.RecsPerSet, len(set.Recs))
	}
	for i, rec := range set.Recs {
		if rec.Position != i+1 {
			t.Fatalf("rec %d has position %d", i, rec.Position)
		}
	}
	if set.Recs[0].Tags[0] != "Plot" || set.Recs[1].Tags[0] != "Setting" {
		t.Fatalf("tags lost: %+v", set.Recs)
	}

	// source and all three recs land on the read shelf
	entries, err := memStore.ListShelves(userID)
	if err != nil {
		t.Fatalf("list shelves: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 shelved books, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Status != domain.ShelfRead {
			t.Fatalf("entry %q not read: %q", entry.BookID, entry.Status)
		}
		if entry.DateFinished == nil {
			t.Fatalf("entry %q missing finished date", entry.BookID)
		}
	}

	// source rating carried onto its shelf entry
	var sourceRated bool
	for _, entry := range entries {
		if entry.BookID == set.SourceBookID && entry.Rating == 5 {
			sourceRated = true
		}
	}
	if !sourceRated {
		t.Fatalf("source shelf entry missing rating")
	}

	// the set shows up on the author's profile and the explore feed
	own, err := a.FollowedFeed(userID, 0)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(own) != 1 || own[0].ID != set.ID {
		t.Fatalf("rec set not in own feed: %+v", own)
	}
}

func TestSubmitRecSetRejectsIncompleteFlow(t *testing.T) {
	a, _ := newTestApp(t)
	f := NewFlow()
	if _, err := a.SubmitRecSet("u1", f); !errors.Is(err, ErrFlowIncomplete) {
		t.Fatalf("expected incomplete flow error, got %v", err)
	}
}

func flowAtTags(t *testing.T) *Flow {
	t.Helper()
	f := NewFlow()
	if err := f.SelectSource(catalogBook("/works/OL893415W", "Dune")); err != nil {
		t.Fatalf("select source: %v", err)
	}
	if err := f.SetRating(5); err != nil {
		t.Fatalf("set rating: %v", err)
	}
	if err := f.NextFromReview(); err != nil {
		t.Fatalf("next from review: %v", err)
	}
	for _, pick := range []catalog.Book{
		catalogBook("/works/OL1963268W", "Hyperion"),
		catalogBook("/works/OL59711W", "Foundation"),
		catalogBook("/works/OL17912W", "Left Hand of Darkness"),
	} {
		if err := f.AddRec(pick); err != nil {
			t.Fatalf("add rec: %v", err)
		}
	}
	if err := f.NextFromRecs(); err != nil {
		t.Fatalf("next from recs: %v", err)
	}
	return f
}

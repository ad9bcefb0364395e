package app

import (
	"errors"
	"testing"

	"threebr/pkg/domain"
)

func TestShelveCatalogBookCreatesRowAndLogsActivity(t *testing.T) {
	a, memStore := newTestApp(t)
	ana, err := a.SignUp("ana@example.com", "readerpass1", "Ana", "ana")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	hit := catalogBook("/works/OL893415W", "Dune")
	entry, err := a.ShelveCatalogBook(ana.User.ID, hit, domain.ShelfToBeRead)
	if err != nil {
		t.Fatalf("shelve: %v", err)
	}
	if entry.Book == nil || entry.Book.CatalogKey != hit.Key {
		t.Fatalf("expected joined book, got %+v", entry.Book)
	}
	if entry.DateFinished != nil {
		t.Fatalf("to-be-read must not be finished")
	}

	// shelving the same catalog record again reuses the book row
	again, err := a.ShelveCatalogBook(ana.User.ID, hit, domain.ShelfReading)
	if err != nil {
		t.Fatalf("re-shelve: %v", err)
	}
	if again.BookID != entry.BookID {
		t.Fatalf("book row duplicated: %q vs %q", again.BookID, entry.BookID)
	}

	activities, _ := memStore.ListActivities(0)
	var shelved int
	for _, act := range activities {
		if act.Type == domain.ActivityShelved {
			shelved++
		}
	}
	if shelved != 2 {
		t.Fatalf("expected 2 shelved activities, got %d", shelved)
	}
}

func TestShelveRejectsUnknownStatusAndBook(t *testing.T) {
	a, _ := newTestApp(t)
	if _, err := a.ShelveCatalogBook("u1", catalogBook("/works/OL1W", "A"), "loved-it"); !errors.Is(err, ErrInvalidShelf) {
		t.Fatalf("invalid shelf: %v", err)
	}
	if _, err := a.ShelveBook("u1", "missing", domain.ShelfReading); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing book: %v", err)
	}
}

func TestRateBookValidatesRange(t *testing.T) {
	a, _ := newTestApp(t)
	ana, _ := a.SignUp("ana@example.com", "readerpass1", "Ana", "ana")
	entry, err := a.ShelveCatalogBook(ana.User.ID, catalogBook("/works/OL1W", "A"), domain.ShelfRead)
	if err != nil {
		t.Fatalf("shelve: %v", err)
	}

	if err := a.RateBook(ana.User.ID, entry.BookID, 0); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("zero rating: %v", err)
	}
	if err := a.RateBook(ana.User.ID, entry.BookID, 6); !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("high rating: %v", err)
	}
	if err := a.RateBook(ana.User.ID, "missing", 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing entry: %v", err)
	}
	if err := a.RateBook(ana.User.ID, entry.BookID, 3); err != nil {
		t.Fatalf("rate: %v", err)
	}
}

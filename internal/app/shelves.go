package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"threebr/pkg/catalog"
	"threebr/pkg/domain"
	"threebr/pkg/store"
)

// ShelveCatalogBook finds or creates the book row for a catalog hit and puts
// it on the user's shelf. Shelving also appends to the activity log; that
// write is best-effort and never fails the shelve.
func (a *App) ShelveCatalogBook(userID string, hit catalog.Book, status domain.ShelfStatus) (domain.ShelfEntry, error) {
	if !domain.ValidShelfStatus(status) {
		return domain.ShelfEntry{}, ErrInvalidShelf
	}
	book, err := a.store.FindOrCreateBook(bookFromCatalog(hit))
	if err != nil {
		return domain.ShelfEntry{}, fmt.Errorf("find or create book: %w", err)
	}
	entry, err := a.store.UpsertShelf(userID, book.ID, status)
	if err != nil {
		return domain.ShelfEntry{}, fmt.Errorf("upsert shelf: %w", err)
	}
	a.logShelved(userID, book.ID, status)
	entry.Book = &book
	return entry, nil
}

// ShelveBook moves an already-stored book between shelves.
func (a *App) ShelveBook(userID, bookID string, status domain.ShelfStatus) (domain.ShelfEntry, error) {
	if !domain.ValidShelfStatus(status) {
		return domain.ShelfEntry{}, ErrInvalidShelf
	}
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.ShelfEntry{}, fmt.Errorf("lookup book: %w", err)
	}
	if !ok {
		return domain.ShelfEntry{}, ErrNotFound
	}
	entry, err := a.store.UpsertShelf(userID, bookID, status)
	if err != nil {
		return domain.ShelfEntry{}, fmt.Errorf("upsert shelf: %w", err)
	}
	a.logShelved(userID, bookID, status)
	entry.Book = &book
	return entry, nil
}

// RemoveFromShelf drops the book from the user's shelves.
func (a *App) RemoveFromShelf(userID, bookID string) error {
	return a.store.RemoveFromShelf(userID, bookID)
}

// RateBook stores a 1-5 star rating on an existing shelf entry.
func (a *App) RateBook(userID, bookID string, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	err := a.store.RateShelf(userID, bookID, rating)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// ListShelves returns all shelf entries for the user, newest-added first.
func (a *App) ListShelves(userID string) ([]domain.ShelfEntry, error) {
	return a.store.ListShelves(userID)
}

// Onboard shelves a batch of catalog picks in one call, used by the signup
// flow where new users seed their shelves.
func (a *App) Onboard(userID string, picks []OnboardPick) ([]domain.ShelfEntry, error) {
	entries := make([]domain.ShelfEntry, 0, len(picks))
	for _, pick := range picks {
		entry, err := a.ShelveCatalogBook(userID, pick.Book, pick.Status)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// OnboardPick pairs a catalog hit with the shelf it lands on.
type OnboardPick struct {
	Book   catalog.Book       `json:"book"`
	Status domain.ShelfStatus `json:"status"`
}

// SearchCatalog proxies a search to the catalog gateway.
func (a *App) SearchCatalog(ctx context.Context, query string) ([]catalog.Book, error) {
	return a.catalog.Search(ctx, query)
}

// CatalogDetails fetches the long description and subjects for one record.
func (a *App) CatalogDetails(ctx context.Context, key string) (catalog.WorkDetails, error) {
	return a.catalog.Details(ctx, key)
}

func (a *App) logShelved(userID, bookID string, status domain.ShelfStatus) {
	if err := a.store.CreateActivity(domain.Activity{
		UserID: userID,
		Type:   domain.ActivityShelved,
		BookID: bookID,
		Shelf:  status,
	}); err != nil {
		slog.Warn("shelved activity write failed", "userId", userID, "bookId", bookID, "error", err)
	}
}

func bookFromCatalog(hit catalog.Book) domain.Book {
	return domain.Book{
		Title:      hit.Title,
		Author:     hit.Author,
		ISBN:       hit.ISBN,
		Pages:      hit.Pages,
		PubYear:    hit.Year,
		CatalogKey: hit.Key,
		CoverID:    hit.CoverID,
		Subjects:   hit.Subjects,
	}
}

package app

import (
	"fmt"
	"strings"

	"threebr/pkg/catalog"
	"threebr/pkg/domain"
)

// Rec flow steps. The flow moves strictly forward through review, recs, and
// tagging before submit; Back returns to the previous step without losing
// state.
const (
	StepSource = 1
	StepReview = 2
	StepRecs   = 3
	StepTags   = 4
)

// Flow is the in-progress state of one "finished a book" submission. It is
// owned by a single client session and is not safe for concurrent use.
type Flow struct {
	Step   int          `json:"step"`
	Source catalog.Book `json:"source"`
	Rating int          `json:"rating"`
	Review string       `json:"review"`
	Recs   []FlowRec    `json:"recs"`
	Note   string       `json:"note"`
}

// FlowRec is one picked recommendation plus its similarity tags.
type FlowRec struct {
	Book catalog.Book `json:"book"`
	Tags []string     `json:"tags"`
}

// NewFlow starts an empty rec flow at the source-picking step.
func NewFlow() *Flow {
	return &Flow{Step: StepSource}
}

// SelectSource records the finished book and advances to the review step.
func (f *Flow) SelectSource(book catalog.Book) error {
	if f.Step != StepSource {
		return ErrFlowIncomplete
	}
	if strings.TrimSpace(book.Title) == "" {
		return ErrSourceRequired
	}
	f.Source = book
	f.Step = StepReview
	return nil
}

// SetRating stores the star rating. Allowed any time after the source is set.
func (f *Flow) SetRating(rating int) error {
	if f.Step < StepReview {
		return ErrFlowIncomplete
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	f.Rating = rating
	return nil
}

// SetReview stores the optional review text.
func (f *Flow) SetReview(review string) error {
	if f.Step < StepReview {
		return ErrFlowIncomplete
	}
	if len(review) > domain.MaxReviewLen {
		return ErrReviewTooLong
	}
	f.Review = review
	return nil
}

// NextFromReview advances to rec picking. A rating is mandatory; the review
// is not.
func (f *Flow) NextFromReview() error {
	if f.Step != StepReview {
		return ErrFlowIncomplete
	}
	if f.Rating == 0 {
		return ErrRatingRequired
	}
	f.Step = StepRecs
	return nil
}

// AddRec appends a recommendation. The same catalog record cannot be picked
// twice and the set is capped at three.
func (f *Flow) AddRec(book catalog.Book) error {
	if f.Step != StepRecs {
		return ErrFlowIncomplete
	}
	if len(f.Recs) >= domain.RecsPerSet {
		return ErrRecLimit
	}
	for _, rec := range f.Recs {
		if rec.Book.Key != "" && rec.Book.Key == book.Key {
			return ErrDuplicateRec
		}
	}
	f.Recs = append(f.Recs, FlowRec{Book: book, Tags: []string{}})
	return nil
}

// RemoveRec drops the i-th pick.
func (f *Flow) RemoveRec(i int) error {
	if f.Step != StepRecs && f.Step != StepTags {
		return ErrFlowIncomplete
	}
	if i < 0 || i >= len(f.Recs) {
		return ErrNotFound
	}
	f.Recs = append(f.Recs[:i], f.Recs[i+1:]...)
	return nil
}

// NextFromRecs advances to tagging once exactly three books are picked.
func (f *Flow) NextFromRecs() error {
	if f.Step != StepRecs {
		return ErrFlowIncomplete
	}
	if len(f.Recs) != domain.RecsPerSet {
		return ErrRecCount
	}
	f.Step = StepTags
	return nil
}

// ToggleTag flips one similarity tag on the i-th rec. Tags outside the fixed
// vocabulary are rejected.
func (f *Flow) ToggleTag(i int, tag string) error {
	if f.Step != StepTags {
		return ErrFlowIncomplete
	}
	if i < 0 || i >= len(f.Recs) {
		return ErrNotFound
	}
	if !domain.ValidSimilarityTag(tag) {
		return ErrUnknownTag
	}
	tags := f.Recs[i].Tags
	for j, t := range tags {
		if t == tag {
			f.Recs[i].Tags = append(tags[:j], tags[j+1:]...)
			return nil
		}
	}
	f.Recs[i].Tags = append(tags, tag)
	return nil
}

// SetNote stores the optional note attached to the whole set.
func (f *Flow) SetNote(note string) error {
	if f.Step != StepTags {
		return ErrFlowIncomplete
	}
	if len(note) > domain.MaxNoteLen {
		return ErrNoteTooLong
	}
	f.Note = note
	return nil
}

// Back steps the flow backwards one step, keeping collected state.
func (f *Flow) Back() {
	if f.Step > StepSource {
		f.Step--
	}
}

// SubmitRecSet persists a completed flow: the source book lands on the read
// shelf with its rating, each recommended book is stored and shelved read,
// and the rec set rows are written last. Partial failure leaves already
// shelved books in place, matching the step-by-step nature of the flow.
func (a *App) SubmitRecSet(userID string, f *Flow) (domain.RecSet, error) {
	if f.Step != StepTags {
		return domain.RecSet{}, ErrFlowIncomplete
	}
	if f.Rating == 0 {
		return domain.RecSet{}, ErrRatingRequired
	}
	if len(f.Recs) != domain.RecsPerSet {
		return domain.RecSet{}, ErrRecCount
	}

	source, err := a.store.FindOrCreateBook(bookFromCatalog(f.Source))
	if err != nil {
		return domain.RecSet{}, fmt.Errorf("store source book: %w", err)
	}
	if _, err := a.store.UpsertShelf(userID, source.ID, domain.ShelfRead); err != nil {
		return domain.RecSet{}, fmt.Errorf("shelve source book: %w", err)
	}
	if err := a.store.RateShelf(userID, source.ID, f.Rating); err != nil {
		return domain.RecSet{}, fmt.Errorf("rate source book: %w", err)
	}
	a.logShelved(userID, source.ID, domain.ShelfRead)

	recs := make([]domain.Rec, 0, domain.RecsPerSet)
	for _, pick := range f.Recs {
		book, err := a.store.FindOrCreateBook(bookFromCatalog(pick.Book))
		if err != nil {
			return domain.RecSet{}, fmt.Errorf("store rec book: %w", err)
		}
		if _, err := a.store.UpsertShelf(userID, book.ID, domain.ShelfRead); err != nil {
			return domain.RecSet{}, fmt.Errorf("shelve rec book: %w", err)
		}
		recs = append(recs, domain.Rec{BookID: book.ID, Tags: pick.Tags})
	}

	set, err := a.store.CreateRecSet(domain.RecSet{
		UserID:       userID,
		SourceBookID: source.ID,
		Rating:       f.Rating,
		Review:       f.Review,
		Note:         f.Note,
	}, recs)
	if err != nil {
		return domain.RecSet{}, fmt.Errorf("create rec set: %w", err)
	}
	return set, nil
}

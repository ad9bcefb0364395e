package app

import "errors"

// Sentinel errors the HTTP layer maps to status codes.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrHandleExists       = errors.New("handle already taken")
	ErrNotFound           = errors.New("not found")
	ErrInvalidShelf       = errors.New("invalid shelf status")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrRatingRequired     = errors.New("rating required before continuing")
	ErrReviewTooLong      = errors.New("review exceeds maximum length")
	ErrNoteTooLong        = errors.New("note exceeds maximum length")
	ErrRecLimit           = errors.New("rec set already holds three books")
	ErrDuplicateRec       = errors.New("book already picked for this rec set")
	ErrRecCount           = errors.New("rec set requires exactly three books")
	ErrUnknownTag         = errors.New("unknown similarity tag")
	ErrFlowIncomplete     = errors.New("rec flow step not complete")
	ErrSourceRequired     = errors.New("source book required")
	ErrSelfFollow         = errors.New("cannot follow yourself")
	ErrProfileIncomplete  = errors.New("display name and handle required")
)

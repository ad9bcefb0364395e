package catalog

import "fmt"

const coversBaseURL = "https://covers.openlibrary.org"

// CoverURL maps a cover identifier and size token (S, M, L) to an image URL.
// Returns "" when no identifier is present. Unknown sizes fall back to M.
func CoverURL(coverID int64, size string) string {
	if coverID == 0 {
		return ""
	}
	return fmt.Sprintf("%s/b/id/%d-%s.jpg", coversBaseURL, coverID, normalizeSize(size))
}

// CoverURLByISBN maps an ISBN to a cover image URL.
func CoverURLByISBN(isbn, size string) string {
	if isbn == "" {
		return ""
	}
	return fmt.Sprintf("%s/b/isbn/%s-%s.jpg", coversBaseURL, isbn, normalizeSize(size))
}

func normalizeSize(size string) string {
	switch size {
	case "S", "M", "L":
		return size
	}
	return "M"
}

// Package catalog wraps the Open Library search API and normalizes raw
// records into the canonical book shape used across the app.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://openlibrary.org"

	// searchLimit caps one search request's result count.
	searchLimit = 12
	// minQueryLen is the shortest query that triggers a request.
	minQueryLen = 2

	maxSearchSubjects  = 6
	maxDetailsSubjects = 12

	searchFields = "key,title,author_name,first_publish_year,isbn,number_of_pages_median,subject,cover_i,edition_count"
)

// Book is a normalized catalog search hit.
type Book struct {
	Key          string   `json:"key"`
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	Year         int      `json:"year,omitempty"`
	ISBN         string   `json:"isbn,omitempty"`
	Pages        int      `json:"pages,omitempty"`
	CoverID      int64    `json:"coverId,omitempty"`
	CoverURL     string   `json:"coverUrl,omitempty"`
	Subjects     []string `json:"subjects,omitempty"`
	EditionCount int      `json:"editionCount"`
}

// WorkDetails holds the extra fields fetched for one catalog record.
type WorkDetails struct {
	Description string   `json:"description"`
	Subjects    []string `json:"subjects"`
}

// Client calls the Open Library API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a catalog client. baseURL defaults to the public
// Open Library endpoint when empty.
func NewClient(baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type searchDoc struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	AuthorName          []string `json:"author_name"`
	FirstPublishYear    int      `json:"first_publish_year"`
	ISBN                []string `json:"isbn"`
	NumberOfPagesMedian int      `json:"number_of_pages_median"`
	Subject             []string `json:"subject"`
	CoverI              int64    `json:"cover_i"`
	EditionCount        int      `json:"edition_count"`
}

type searchResponse struct {
	Docs []searchDoc `json:"docs"`
}

// Search returns up to 12 normalized hits for the query. Queries shorter
// than two characters return an empty slice without making a request.
// Failures propagate to the caller; there is no retry.
func (c *Client) Search(ctx context.Context, query string) ([]Book, error) {
	query = strings.TrimSpace(query)
	if len(query) < minQueryLen {
		return []Book{}, nil
	}

	u := fmt.Sprintf("%s/search.json?q=%s&limit=%d&fields=%s",
		c.baseURL, url.QueryEscape(query), searchLimit, searchFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	books := make([]Book, 0, len(resp.Docs))
	for _, doc := range resp.Docs {
		books = append(books, normalizeDoc(doc))
	}
	return books, nil
}

func normalizeDoc(doc searchDoc) Book {
	author := "Unknown"
	if len(doc.AuthorName) > 0 {
		author = doc.AuthorName[0]
	}
	isbn := ""
	if len(doc.ISBN) > 0 {
		isbn = doc.ISBN[0]
	}
	subjects := doc.Subject
	if len(subjects) > maxSearchSubjects {
		subjects = subjects[:maxSearchSubjects]
	}
	coverURL := CoverURL(doc.CoverI, "M")
	if coverURL == "" {
		coverURL = CoverURLByISBN(isbn, "M")
	}
	return Book{
		Key:          doc.Key,
		Title:        doc.Title,
		Author:       author,
		Year:         doc.FirstPublishYear,
		ISBN:         isbn,
		Pages:        doc.NumberOfPagesMedian,
		CoverID:      doc.CoverI,
		CoverURL:     coverURL,
		Subjects:     subjects,
		EditionCount: doc.EditionCount,
	}
}

type detailsResponse struct {
	Description json.RawMessage `json:"description"`
	Subjects    []string        `json:"subjects"`
}

// Details fetches one record by its catalog key (e.g. "/works/OL45883W").
// The description field comes in two shapes: a plain string or {"value": s}.
func (c *Client) Details(ctx context.Context, key string) (WorkDetails, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return WorkDetails{}, fmt.Errorf("catalog key required")
	}
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+key+".json", nil)
	if err != nil {
		return WorkDetails{}, err
	}
	var resp detailsResponse
	if err := c.do(req, &resp); err != nil {
		return WorkDetails{}, err
	}

	details := WorkDetails{
		Description: parseDescription(resp.Description),
		Subjects:    resp.Subjects,
	}
	if len(details.Subjects) > maxDetailsSubjects {
		details.Subjects = details.Subjects[:maxDetailsSubjects]
	}
	return details, nil
}

func parseDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Value
	}
	return ""
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("catalog request failed: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

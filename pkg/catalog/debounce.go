package catalog

import (
	"context"
	"strings"
	"sync"
	"time"
)

const defaultDebounce = 400 * time.Millisecond

// SearchResult carries the outcome of a debounced search along with the
// query it answers.
type SearchResult struct {
	Query string
	Books []Book
	Err   error
}

// DebouncedSearcher serializes a stream of keystrokes into at most one
// in-flight search. Each Query call restarts the delay timer and cancels the
// context of any request already in flight, so a superseded search can never
// deliver a stale result over a newer one.
type DebouncedSearcher struct {
	client  *Client
	delay   time.Duration
	deliver func(SearchResult)

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
}

// NewDebouncedSearcher builds a searcher that calls deliver with each
// completed search.
func NewDebouncedSearcher(client *Client, delay time.Duration, deliver func(SearchResult)) *DebouncedSearcher {
	if delay <= 0 {
		delay = defaultDebounce
	}
	return &DebouncedSearcher{
		client:  client,
		delay:   delay,
		deliver: deliver,
	}
}

// Query registers a new keystroke. Queries shorter than two characters
// deliver an empty result immediately without scheduling a request.
func (d *DebouncedSearcher) Query(query string) {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.stopPendingLocked()
	if len(query) < minQueryLen {
		d.mu.Unlock()
		d.deliver(SearchResult{Query: query, Books: []Book{}})
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.timer = time.AfterFunc(d.delay, func() {
		d.run(ctx, query)
	})
	d.mu.Unlock()
}

func (d *DebouncedSearcher) run(ctx context.Context, query string) {
	books, err := d.client.Search(ctx, query)
	if ctx.Err() != nil {
		// Superseded by a newer keystroke.
		return
	}
	d.deliver(SearchResult{Query: query, Books: books, Err: err})
}

// Close stops the pending timer and cancels any in-flight request.
func (d *DebouncedSearcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopPendingLocked()
	d.closed = true
}

func (d *DebouncedSearcher) stopPendingLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

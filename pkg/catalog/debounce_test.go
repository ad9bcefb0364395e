package catalog

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebounceFiresOnceAfterWindow(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"docs":[{"key":"/works/OL1W","title":"Dune"}]}`))
	}))
	defer srv.Close()

	results := make(chan SearchResult, 4)
	searcher := NewDebouncedSearcher(NewClient(srv.URL), 30*time.Millisecond, func(res SearchResult) {
		results <- res
	})
	defer searcher.Close()

	searcher.Query("du")
	select {
	case res := <-results:
		if res.Err != nil {
			t.Fatalf("search err: %v", res.Err)
		}
		if res.Query != "du" || len(res.Books) != 1 {
			t.Fatalf("unexpected result: %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("debounced search never delivered")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one request, got %d", got)
	}
}

func TestDebounceKeystrokeCancelsPendingTrigger(t *testing.T) {
	var calls int32
	var lastQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		lastQuery.Store(r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"docs":[]}`))
	}))
	defer srv.Close()

	results := make(chan SearchResult, 4)
	searcher := NewDebouncedSearcher(NewClient(srv.URL), 50*time.Millisecond, func(res SearchResult) {
		results <- res
	})
	defer searcher.Close()

	searcher.Query("du")
	time.Sleep(10 * time.Millisecond) // well inside the window
	searcher.Query("dune")

	select {
	case res := <-results:
		if res.Query != "dune" {
			t.Fatalf("delivered query = %q, want dune", res.Query)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("debounced search never delivered")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("superseded keystroke must not trigger a request, got %d", got)
	}
	if got := lastQuery.Load(); got != "dune" {
		t.Fatalf("request query = %v, want dune", got)
	}
}

func TestDebounceShortQueryDeliversEmptyWithoutRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"docs":[]}`))
	}))
	defer srv.Close()

	results := make(chan SearchResult, 4)
	searcher := NewDebouncedSearcher(NewClient(srv.URL), 20*time.Millisecond, func(res SearchResult) {
		results <- res
	})
	defer searcher.Close()

	searcher.Query("d")
	select {
	case res := <-results:
		if len(res.Books) != 0 {
			t.Fatalf("short query should deliver empty result, got %d books", len(res.Books))
		}
	case <-time.After(time.Second):
		t.Fatalf("short query should deliver immediately")
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("short query must not hit the network, got %d calls", got)
	}
}

func TestDebounceCancelsInFlightRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "slow query" {
			<-release
		}
		_, _ = w.Write([]byte(`{"docs":[]}`))
	}))
	defer srv.Close()
	defer close(release)

	results := make(chan SearchResult, 4)
	searcher := NewDebouncedSearcher(NewClient(srv.URL), 5*time.Millisecond, func(res SearchResult) {
		results <- res
	})
	defer searcher.Close()

	searcher.Query("slow query")
	time.Sleep(30 * time.Millisecond) // let the slow request take flight
	searcher.Query("fast query")

	res := <-results
	if res.Query != "fast query" {
		t.Fatalf("first delivery = %q, want fast query", res.Query)
	}
	select {
	case res := <-results:
		t.Fatalf("stale in-flight request must not deliver, got %q", res.Query)
	case <-time.After(100 * time.Millisecond):
	}
}

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"threebr/internal/app"
	"threebr/pkg/catalog"
	"threebr/pkg/domain"
	"threebr/pkg/feed"
	"threebr/pkg/store"
)

type testEnv struct {
	server *httptest.Server
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.RedisAddr = mr.Addr()
	if cfg.App == nil {
		cfg.App = newServerApp(t, nil)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts}
}

func newServerApp(t *testing.T, catalogClient *catalog.Client) *app.App {
	t.Helper()
	sessions, err := store.NewJWTSessionStore("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	a, err := app.New(app.Config{
		Store:    store.NewMemoryStore(),
		Sessions: sessions,
		Catalog:  catalogClient,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp
}

func (e *testEnv) signup(t *testing.T, email, handle string) app.Session {
	t.Helper()
	var session app.Session
	resp := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":       email,
		"password":    "readerpass1",
		"displayName": handle,
		"handle":      handle,
	}, &session)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}
	return session
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, Config{})
	session := env.signup(t, "ana@example.com", "ana")
	if session.Token == "" {
		t.Fatalf("expected session token")
	}

	var login app.Session
	resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ana@example.com",
		"password": "readerpass1",
	}, &login)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ana@example.com",
		"password": "wrongpass1",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", resp.StatusCode)
	}

	var me meResponse
	resp = env.do(t, http.MethodGet, "/api/users/me", login.Token, nil, &me)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	if me.Profile.Handle != "ana" {
		t.Fatalf("unexpected profile: %+v", me.Profile)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, Config{})
	for _, path := range []string{"/api/feed", "/api/shelves", "/api/users/me", "/api/catalog/search?q=dune"} {
		resp := env.do(t, http.MethodGet, path, "", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s without token: status = %d", path, resp.StatusCode)
		}
	}
}

func TestSignupRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{SignupRateLimitPerMinute: 2})
	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"email":       fmt.Sprintf("user%d@example.com", i),
			"password":    "readerpass1",
			"displayName": "User",
			"handle":      fmt.Sprintf("user%d", i),
		}, nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("signup %d status = %d", i, resp.StatusCode)
		}
	}
	resp := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":       "user3@example.com",
		"password":    "readerpass1",
		"displayName": "User",
		"handle":      "user3",
	}, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRecSetSubmitAndFeeds(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana := env.signup(t, "ana@example.com", "ana")
	ben := env.signup(t, "ben@example.com", "ben")

	payload := map[string]any{
		"source": map[string]any{"key": "/works/OL893415W", "title": "Dune", "author": "Frank Herbert"},
		"rating": 5,
		"review": "Epic",
		"recs": []map[string]any{
			{"book": map[string]any{"key": "/works/OL1963268W", "title": "Hyperion", "author": "Dan Simmons"}, "tags": []string{"Plot"}},
			{"book": map[string]any{"key": "/works/OL59711W", "title": "Foundation", "author": "Isaac Asimov"}, "tags": []string{"Setting"}},
			{"book": map[string]any{"key": "/works/OL17912W", "title": "The Left Hand of Darkness", "author": "Ursula K. Le Guin"}, "tags": []string{}},
		},
		"note": "Start with Hyperion",
	}
	var set domain.RecSet
	resp := env.do(t, http.MethodPost, "/api/recsets", ana.Token, payload, &set)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	if len(set.Recs) != 3 {
		t.Fatalf("expected 3 recs, got %d", len(set.Recs))
	}

	// ben does not follow ana yet, so his followed feed is empty
	var benFeed recSetsResponse
	env.do(t, http.MethodGet, "/api/feed", ben.Token, nil, &benFeed)
	if len(benFeed.RecSets) != 0 {
		t.Fatalf("expected empty feed, got %d", len(benFeed.RecSets))
	}

	resp = env.do(t, http.MethodPost, "/api/profiles/"+ana.User.ID+"/follow", ben.Token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("follow status = %d", resp.StatusCode)
	}
	env.do(t, http.MethodGet, "/api/feed", ben.Token, nil, &benFeed)
	if len(benFeed.RecSets) != 1 || benFeed.RecSets[0].ID != set.ID {
		t.Fatalf("expected ana's set in ben's feed: %+v", benFeed.RecSets)
	}
	if benFeed.RecSets[0].Author == nil || benFeed.RecSets[0].Author.Handle != "ana" {
		t.Fatalf("expected joined author")
	}

	// likes
	var like likeResponse
	env.do(t, http.MethodPost, "/api/recsets/"+set.ID+"/like", ben.Token, nil, &like)
	if !like.Liked || like.LikeCount != 1 {
		t.Fatalf("unexpected like response: %+v", like)
	}
	env.do(t, http.MethodPost, "/api/recsets/"+set.ID+"/like", ben.Token, nil, &like)
	if like.Liked || like.LikeCount != 0 {
		t.Fatalf("unexpected unlike response: %+v", like)
	}
}

func TestRecSetSubmitRejectsBadFlow(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana := env.signup(t, "ana@example.com", "ana")

	// only two recs
	payload := map[string]any{
		"source": map[string]any{"key": "/works/OL893415W", "title": "Dune", "author": "Frank Herbert"},
		"rating": 5,
		"recs": []map[string]any{
			{"book": map[string]any{"key": "/works/OL1W", "title": "A", "author": "a"}, "tags": []string{}},
			{"book": map[string]any{"key": "/works/OL2W", "title": "B", "author": "b"}, "tags": []string{}},
		},
	}
	resp := env.do(t, http.MethodPost, "/api/recsets", ana.Token, payload, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("two recs: status = %d", resp.StatusCode)
	}

	// unknown tag
	payload["recs"] = []map[string]any{
		{"book": map[string]any{"key": "/works/OL1W", "title": "A", "author": "a"}, "tags": []string{"Vibes"}},
		{"book": map[string]any{"key": "/works/OL2W", "title": "B", "author": "b"}, "tags": []string{}},
		{"book": map[string]any{"key": "/works/OL3W", "title": "C", "author": "c"}, "tags": []string{}},
	}
	resp = env.do(t, http.MethodPost, "/api/recsets", ana.Token, payload, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown tag: status = %d", resp.StatusCode)
	}

	// missing rating
	payload["rating"] = 0
	resp = env.do(t, http.MethodPost, "/api/recsets", ana.Token, payload, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing rating: status = %d", resp.StatusCode)
	}
}

func TestHomeTimeline(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana := env.signup(t, "ana@example.com", "ana")

	payload := map[string]any{
		"source": map[string]any{"key": "/works/OL893415W", "title": "Dune", "author": "Frank Herbert"},
		"rating": 4,
		"recs": []map[string]any{
			{"book": map[string]any{"key": "/works/OL1W", "title": "A", "author": "a"}, "tags": []string{}},
			{"book": map[string]any{"key": "/works/OL2W", "title": "B", "author": "b"}, "tags": []string{}},
			{"book": map[string]any{"key": "/works/OL3W", "title": "C", "author": "c"}, "tags": []string{}},
		},
	}
	if resp := env.do(t, http.MethodPost, "/api/recsets", ana.Token, payload, nil); resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}

	var timeline timelineResponse
	resp := env.do(t, http.MethodGet, "/api/home", ana.Token, nil, &timeline)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("home status = %d", resp.StatusCode)
	}
	var haveSet, haveActivity bool
	for _, item := range timeline.Items {
		switch item.Kind {
		case feed.KindRecSet:
			haveSet = true
		case feed.KindActivity:
			haveActivity = true
		}
	}
	if !haveSet || !haveActivity {
		t.Fatalf("timeline missing kinds: set=%v activity=%v", haveSet, haveActivity)
	}
	for i := 1; i < len(timeline.Items); i++ {
		if timeline.Items[i].CreatedAt.After(timeline.Items[i-1].CreatedAt) {
			t.Fatalf("timeline not sorted newest first")
		}
	}
}

func TestShelvesOverHTTP(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana := env.signup(t, "ana@example.com", "ana")

	var entry domain.ShelfEntry
	resp := env.do(t, http.MethodPost, "/api/shelves", ana.Token, map[string]any{
		"book":   map[string]any{"key": "/works/OL893415W", "title": "Dune", "author": "Frank Herbert"},
		"status": "to-be-read",
	}, &entry)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("shelve status = %d", resp.StatusCode)
	}
	if entry.Status != domain.ShelfToBeRead {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	resp = env.do(t, http.MethodPut, "/api/shelves/"+entry.BookID, ana.Token, map[string]string{"status": "read"}, &entry)
	if resp.StatusCode != http.StatusOK || entry.Status != domain.ShelfRead {
		t.Fatalf("move to read: status=%d entry=%+v", resp.StatusCode, entry)
	}

	resp = env.do(t, http.MethodPut, "/api/shelves/"+entry.BookID+"/rating", ana.Token, map[string]int{"rating": 4}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rate status = %d", resp.StatusCode)
	}

	var shelves shelvesResponse
	env.do(t, http.MethodGet, "/api/shelves", ana.Token, nil, &shelves)
	if len(shelves.Entries) != 1 || shelves.Entries[0].Rating != 4 {
		t.Fatalf("unexpected shelves: %+v", shelves.Entries)
	}

	resp = env.do(t, http.MethodDelete, "/api/shelves/"+entry.BookID, ana.Token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	env.do(t, http.MethodGet, "/api/shelves", ana.Token, nil, &shelves)
	if len(shelves.Entries) != 0 {
		t.Fatalf("expected empty shelves")
	}
}

func TestCatalogSearchProxied(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"docs":[{"key":"/works/OL893415W","title":"Dune","author_name":["Frank Herbert"],"first_publish_year":1965}]}`)
	}))
	defer backend.Close()

	env := newTestEnv(t, Config{App: newServerApp(t, catalog.NewClient(backend.URL))})
	ana := env.signup(t, "ana@example.com", "ana")

	var res searchResponse
	resp := env.do(t, http.MethodGet, "/api/catalog/search?q=dune", ana.Token, nil, &res)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", resp.StatusCode)
	}
	if len(res.Results) != 1 || res.Results[0].Title != "Dune" {
		t.Fatalf("unexpected results: %+v", res.Results)
	}

	// short queries never reach the backend and return an empty list
	resp = env.do(t, http.MethodGet, "/api/catalog/search?q=d", ana.Token, nil, &res)
	if resp.StatusCode != http.StatusOK || len(res.Results) != 0 {
		t.Fatalf("short query: status=%d results=%+v", resp.StatusCode, res.Results)
	}
}

func TestProfileSearchAndView(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana := env.signup(t, "ana@example.com", "ana")
	env.signup(t, "ben@example.com", "ben")

	var res profilesResponse
	env.do(t, http.MethodGet, "/api/profiles/search?q=be", ana.Token, nil, &res)
	if len(res.Profiles) != 1 || res.Profiles[0].Handle != "ben" {
		t.Fatalf("unexpected search results: %+v", res.Profiles)
	}

	var view app.ProfileView
	resp := env.do(t, http.MethodGet, "/api/profiles/"+res.Profiles[0].ID, ana.Token, nil, &view)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("view status = %d", resp.StatusCode)
	}
	if view.Profile.Handle != "ben" || view.Following {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestValidationErrorsSurfaceInline(t *testing.T) {
	env := newTestEnv(t, Config{})
	ana := env.signup(t, "ana@example.com", "ana")

	var body map[string]string
	resp := env.do(t, http.MethodPost, "/api/profiles/"+ana.User.ID+"/follow", ana.Token, nil, &body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("self-follow status = %d, want 400", resp.StatusCode)
	}
	if body["error"] != "cannot follow yourself" {
		t.Fatalf("self-follow error = %q", body["error"])
	}

	body = nil
	resp = env.do(t, http.MethodPut, "/api/users/me", ana.Token, map[string]string{
		"displayName": "",
		"handle":      "",
	}, &body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty profile status = %d, want 400", resp.StatusCode)
	}
	if body["error"] != "display name and handle required" {
		t.Fatalf("empty profile error = %q", body["error"])
	}
}

func TestSignupDuplicateHandleConflicts(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.signup(t, "ana@example.com", "ana")

	resp := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":       "ana2@example.com",
		"password":    "readerpass1",
		"displayName": "Other Ana",
		"handle":      "ana",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate handle status = %d, want 409", resp.StatusCode)
	}
}

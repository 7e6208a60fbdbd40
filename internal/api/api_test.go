package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/sous/internal/api"
	"github.com/abhisek/sous/internal/app"
	"github.com/abhisek/sous/internal/progress"
	"github.com/abhisek/sous/internal/store"
)

const secret = "testsecret"

type fixture struct {
	t     *testing.T
	srv   *httptest.Server
	store *store.Store
	token string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "sous.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e := app.NewEngine(s, app.Options{})
	t.Cleanup(e.Wait)

	srv := httptest.NewServer(api.NewServer(e, "test").Routes(secret))
	t.Cleanup(srv.Close)

	tok, err := api.IssueToken(secret, "alice", time.Hour)
	require.NoError(t, err)
	return &fixture{t: t, srv: srv, store: s, token: tok}
}

// do sends a request and decodes a JSON response into out when non-nil.
func (f *fixture) do(method, path string, body any, out any) int {
	f.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	require.NoError(f.t, err)
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	res, err := f.srv.Client().Do(req)
	require.NoError(f.t, err)
	defer res.Body.Close()
	if out != nil && res.StatusCode < 300 {
		require.NoError(f.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

type goalResp struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Progress  int    `json:"progress"`
	State     string `json:"state"`
	Public    bool   `json:"public"`
	Completed int    `json:"completed_milestones"`
}

type itemResp struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

func TestHealthIsOpen(t *testing.T) {
	f := newFixture(t)
	f.token = ""
	var body map[string]string
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAuth(t *testing.T) {
	f := newFixture(t)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	wrongKey, err := api.IssueToken("other", "alice", time.Hour)
	require.NoError(t, err)
	expired, err := api.IssueToken(secret, "alice", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"no subject", noSub, http.StatusUnauthorized},
		{"wrong key", wrongKey, http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"valid", f.token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := *f
			g.t = t
			g.token = tt.token
			assert.Equal(t, tt.want, g.do(http.MethodGet, "/v1/goals", nil, nil))
		})
	}
}

func TestGoalFlow(t *testing.T) {
	f := newFixture(t)

	var g goalResp
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/goals", map[string]any{
		"title": "Hand-made pasta", "category": "cuisine", "description": "Tagliatelle from scratch",
	}, &g))
	assert.Equal(t, 0, g.Progress)
	assert.Equal(t, "active", g.State)

	var ms []itemResp
	for _, title := range []string{"Make dough", "Roll thin"} {
		var m itemResp
		require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/goals/"+g.ID+"/milestones", map[string]string{"title": title}, &m))
		ms = append(ms, m)
	}

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/v1/goals/"+g.ID+"/milestones/"+ms[0].ID+"/toggle", nil, &g))
	assert.Equal(t, 50, g.Progress)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/v1/goals/"+g.ID+"/milestones/"+ms[1].ID+"/toggle", nil, &g))
	assert.Equal(t, 100, g.Progress)
	assert.Equal(t, "completed", g.State)
	assert.Equal(t, 2, g.Completed)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPatch, "/v1/goals/"+g.ID+"/milestones/"+ms[0].ID, map[string]string{"title": "Make egg dough"}, nil))

	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/v1/goals/"+g.ID+"/visibility", map[string]bool{"public": true}, &g))
	assert.True(t, g.Public)

	var res itemResp
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/goals/"+g.ID+"/resources", map[string]string{
		"type": "video", "title": "Rolling technique", "url": "https://example.com/roll",
	}, &res))
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/v1/goals/"+g.ID+"/resources/"+res.ID, nil, nil))

	var items []itemResp
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/timeline?category=achievement", nil, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Goal completed: Hand-made pasta", items[0].Title)

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/timeline?category=milestone,social&limit=1", nil, &items))
	assert.Len(t, items, 1)

	var sum app.Summary
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/summary", nil, &sum))
	assert.Equal(t, 1, sum.CompletedGoals)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/v1/goals/"+g.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/v1/goals/"+g.ID, nil, nil))
}

func TestGoalErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"set progress on create", http.MethodPost, "/v1/goals", map[string]any{"title": "x", "category": "baking", "description": "y", "progress": 40}, http.StatusUnprocessableEntity},
		{"unknown category", http.MethodPost, "/v1/goals", map[string]any{"title": "x", "category": "grilling", "description": "y"}, http.StatusUnprocessableEntity},
		{"empty title", http.MethodPost, "/v1/goals", map[string]any{"title": "", "category": "baking", "description": "y"}, http.StatusUnprocessableEntity},
		{"malformed body", http.MethodPost, "/v1/goals", "not an object", http.StatusBadRequest},
		{"unknown goal", http.MethodGet, "/v1/goals/nope", nil, http.StatusNotFound},
		{"toggle unknown goal", http.MethodPost, "/v1/goals/nope/milestones/m/toggle", nil, http.StatusNotFound},
		{"bad timeline category", http.MethodGet, "/v1/timeline?category=badge", nil, http.StatusBadRequest},
		{"bad timeline date", http.MethodGet, "/v1/timeline?from=yesterday", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := *f
			g.t = t
			assert.Equal(t, tt.want, g.do(tt.method, tt.path, tt.body, nil))
		})
	}
}

func TestUpdateGoal_RejectsProgress(t *testing.T) {
	f := newFixture(t)
	var g goalResp
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/goals", map[string]any{
		"title": "Bread", "category": "baking", "description": "Weekly loaf",
	}, &g))

	assert.Equal(t, http.StatusUnprocessableEntity, f.do(http.MethodPatch, "/v1/goals/"+g.ID, map[string]any{"progress": 100}, nil))
	require.Equal(t, http.StatusOK, f.do(http.MethodPatch, "/v1/goals/"+g.ID, map[string]any{"title": "Sourdough"}, &g))
	assert.Equal(t, "Sourdough", g.Title)
	assert.Equal(t, 0, g.Progress)
}

func TestSkillFlow(t *testing.T) {
	f := newFixture(t)

	type skillResp struct {
		ID           string `json:"id"`
		Level        int    `json:"level"`
		Endorsements int    `json:"endorsements"`
		Stars        int    `json:"stars"`
	}

	var sk skillResp
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/v1/skills", map[string]any{"name": "Knife work", "level": 41}, &sk))
	assert.Equal(t, 3, sk.Stars)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/v1/skills/"+sk.ID+"/practice", map[string]any{"hours": 2.5, "level": 60}, &sk))
	assert.Equal(t, 60, sk.Level)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/v1/skills/"+sk.ID+"/endorsements", nil, &sk))
	assert.Equal(t, 1, sk.Endorsements)
	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/v1/skills/"+sk.ID+"/endorsements", nil, &sk))
	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/v1/skills/"+sk.ID+"/endorsements", nil, &sk))
	assert.Equal(t, 0, sk.Endorsements)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/v1/skills/"+sk.ID+"/assessment", nil, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(http.MethodPut, "/v1/skills/"+sk.ID+"/assessment", map[string]any{"suggested_level": 140}, nil))

	var res struct {
		CurrentLevel   int `json:"current_level"`
		SuggestedLevel int `json:"suggested_level"`
	}
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/v1/skills/"+sk.ID+"/assessment", map[string]any{
		"suggested_level": 70, "feedback": "Keep the claw grip", "recommended_practice": []string{"Brunoise an onion"},
	}, &res))
	assert.Equal(t, 60, res.CurrentLevel)
	assert.Equal(t, 70, res.SuggestedLevel)

	// Advisory only: the level is unchanged.
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/skills/"+sk.ID, nil, &sk))
	assert.Equal(t, 60, sk.Level)

	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/v1/skills/"+sk.ID+"/assessment/refresh", nil, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(http.MethodPost, "/v1/skills", map[string]any{"name": "Plating", "level": 101}, nil))
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/v1/skills/nope/endorsements", nil, nil))
}

func TestPersistenceFailureIsServiceUnavailable(t *testing.T) {
	f := newFixture(t)
	// First request loads the owner.
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/goals", nil, nil))
	require.NoError(t, f.store.Close())

	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/v1/goals", map[string]any{
		"title": "Stock", "category": "technique", "description": "Brown stock",
	}, nil))

	var list []goalResp
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/v1/goals", nil, &list))
	assert.Empty(t, list, "failed create is rolled back")
}

func TestRecoveryMiddleware(t *testing.T) {
	h := api.RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// gatedStore holds FetchGoals for one owner until the gate opens.
type gatedStore struct {
	*store.Store
	owner   string
	gate    chan struct{}
	entered chan struct{}
	fetches atomic.Int32
}

func (g *gatedStore) FetchGoals(ctx context.Context, ownerID string) ([]progress.Goal, error) {
	if ownerID == g.owner {
		if g.fetches.Add(1) == 1 {
			close(g.entered)
		}
		<-g.gate
	}
	return g.Store.FetchGoals(ctx, ownerID)
}

func TestFirstLoad_PerOwner(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "sous.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	gs := &gatedStore{Store: s, owner: "bob", gate: make(chan struct{}), entered: make(chan struct{})}
	e := app.NewEngine(gs, app.Options{})
	t.Cleanup(e.Wait)
	srv := httptest.NewServer(api.NewServer(e, "test").Routes(secret))
	t.Cleanup(srv.Close)

	client := func(owner string) *fixture {
		tok, err := api.IssueToken(secret, owner, time.Hour)
		require.NoError(t, err)
		return &fixture{t: t, srv: srv, store: s, token: tok}
	}

	// Two first requests for bob share one load that stays blocked.
	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, _ := api.IssueToken(secret, "bob", time.Hour)
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/goals", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			res, err := srv.Client().Do(req)
			if err != nil {
				return
			}
			res.Body.Close()
			codes[i] = res.StatusCode
		}()
	}
	select {
	case <-gs.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("bob's load never started")
	}

	// alice is served while bob is still loading.
	assert.Equal(t, http.StatusOK, client("alice").do(http.MethodGet, "/v1/goals", nil, nil))

	close(gs.gate)
	wg.Wait()
	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)
	assert.Equal(t, int32(1), gs.fetches.Load())

	// Later requests do not load again.
	before := gs.fetches.Load()
	assert.Equal(t, http.StatusOK, client("bob").do(http.MethodGet, "/v1/goals", nil, nil))
	assert.Equal(t, before, gs.fetches.Load())
}

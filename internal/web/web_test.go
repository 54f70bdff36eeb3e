package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memocal/internal/calsync"
	"memocal/internal/config"
	"memocal/internal/editor"
	"memocal/internal/extract"
	"memocal/internal/grammar"
	"memocal/internal/model"
	"memocal/internal/suggest"
)

var jst = time.FixedZone("JST", 9*60*60)

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *calsync.FileStore) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	now := time.Date(2026, time.October, 17, 9, 30, 0, 0, jst)
	engine := extract.NewEngine(grammar.NewJapanese(), nil, extract.Options{
		Location: jst,
		Now:      func() time.Time { return now },
	})
	files := calsync.NewFileStore(t.TempDir(), jst)
	disp := calsync.NewDispatcher(nil, files)
	session := editor.New(engine, disp, editor.Options{DefaultTarget: model.TargetGoogle})
	disp.OnResult(session.ApplyResult)
	disp.Start(t.Context())
	t.Cleanup(func() {
		session.Close()
		disp.Close()
	})

	srv := httptest.NewServer(NewServer(cfg, session).Handler())
	t.Cleanup(srv.Close)
	return srv, files
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthAndBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "memo", Password: "secret"}
	srv, _ := newTestServer(t, cfg)

	resp := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/events", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	req.SetBasicAuth("memo", "secret")
	authed, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}

func TestExtractAcceptRemove(t *testing.T) {
	srv, files := newTestServer(t, nil)

	resp := do(t, srv, http.MethodPost, "/api/extract", map[string]string{"text": "明日 10時 ミーティング"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[editor.Snapshot](t, resp)
	require.Len(t, snap.Result.Mentions, 1)
	id := snap.Result.Mentions[0].Identity

	resp = do(t, srv, http.MethodPost, "/api/mentions/accept", map[string]any{
		"identity":  id,
		"reminders": []string{"30m", "1日"},
		"target":    "google",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ev := decode[model.Event](t, resp)
	assert.Equal(t, id, ev.ID())
	assert.Equal(t, "ミーティング", ev.Candidate.Title)
	// No credential: the Google choice is booked as a file event.
	assert.Equal(t, model.TargetFile, ev.Target)

	resp = do(t, srv, http.MethodGet, "/api/suggestions", nil)
	snap = decode[editor.Snapshot](t, resp)
	assert.Empty(t, snap.Result.Mentions)

	resp = do(t, srv, http.MethodGet, "/api/events", nil)
	list := decode[struct {
		Events []model.Event `json:"events"`
	}](t, resp)
	require.Len(t, list.Events, 1)

	path := "/api/events/" + url.PathEscape(id)
	resp = do(t, srv, http.MethodGet, path+"/ics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
	var body bytes.Buffer
	_, err := body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "DTSTART:20261018T100000")

	// The dispatcher exports the file in the background.
	require.Eventually(t, func() bool {
		entries, err := files.List(t.Context(), time.Date(2026, 10, 18, 0, 0, 0, 0, jst), time.Date(2026, 10, 19, 0, 0, 0, 0, jst))
		return err == nil && len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp = do(t, srv, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/notices", nil)
	notices := decode[struct {
		Notices []model.Notice `json:"notices"`
	}](t, resp)
	require.NotEmpty(t, notices.Notices)
	assert.Contains(t, notices.Notices[0].Message, "手動削除")

	resp = do(t, srv, http.MethodPost, "/api/extract", map[string]string{"text": "明日 10時 ミーティング"})
	snap = decode[editor.Snapshot](t, resp)
	assert.Len(t, snap.Result.Mentions, 1)
}

func TestResolveGroupRoutes(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := do(t, srv, http.MethodPost, "/api/extract", map[string]string{"text": "25, 8 遠足"})
	snap := decode[editor.Snapshot](t, resp)
	require.Len(t, snap.Result.Groups, 1)
	gid := snap.Result.Groups[0].ID

	resp = do(t, srv, http.MethodPost, "/api/groups/resolve", map[string]any{"group_id": gid, "field": "year"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/groups/resolve", map[string]any{"group_id": "g:99", "field": "month"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/groups/resolve", map[string]any{"group_id": gid, "field": "月"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decode[resolveResponse](t, resp)
	require.Len(t, out.Events, 1)
	assert.NotEmpty(t, out.Warning)
}

func TestDismissRoute(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := do(t, srv, http.MethodPost, "/api/extract", map[string]string{"text": "明日 ランチ"})
	snap := decode[editor.Snapshot](t, resp)
	require.Len(t, snap.Result.Mentions, 1)

	resp = do(t, srv, http.MethodPost, "/api/dismiss", map[string]string{"identity": snap.Result.Mentions[0].Identity})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/dismiss", map[string]string{"identity": "m:0:none"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveFormRoute(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := do(t, srv, http.MethodPost, "/api/events", map[string]any{"date_input": "", "content": "歯医者"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/events", map[string]any{"date_input": "いつか", "content": "歯医者"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/events", map[string]any{"date_input": "明日", "content": "歯医者", "reminders": []string{"2分"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/events", map[string]any{"date_input": "明日 15時", "content": "歯医者", "target": "apple"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ev := decode[model.Event](t, resp)
	assert.True(t, strings.HasPrefix(ev.ID(), "manual:"))
	assert.Equal(t, model.TargetFile, ev.Target)

	resp = do(t, srv, http.MethodPost, "/api/events", map[string]any{"editing_id": ev.ID(), "date_input": "明日 16時", "content": "歯医者"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	edited := decode[model.Event](t, resp)
	assert.Equal(t, 16, edited.Candidate.Start.In(jst).Hour())

	resp = do(t, srv, http.MethodGet, "/api/events?days=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTextAndDateSuggestions(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := do(t, srv, http.MethodPut, "/api/text", map[string]string{"text": "明日"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = do(t, srv, http.MethodPut, "/api/text", "not an object")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/date-suggestions", map[string]string{"input": ""})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[suggest.Result](t, resp)
	assert.Equal(t, suggest.Presets, res.Suggestions)

	resp = do(t, srv, http.MethodPost, "/api/date-suggestions", map[string]string{"input": "明日"})
	res = decode[suggest.Result](t, resp)
	require.NotNil(t, res.Parsed)
	assert.True(t, res.Suggestions[0].Resolved)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusOf(editor.ErrNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(extract.ErrUnrecognizedDate))
	assert.Equal(t, http.StatusInternalServerError, statusOf(extract.ErrGrammar))
}

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/metrics"
	"github.com/AdamBeresnev/bracket-manager/internal/middleware"
	"github.com/AdamBeresnev/bracket-manager/internal/service"
	"github.com/AdamBeresnev/bracket-manager/internal/storage"
	"github.com/AdamBeresnev/bracket-manager/internal/store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type testApp struct {
	srv     *httptest.Server
	handler http.Handler
	db      *sqlx.DB
}

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "sqlite3", driver)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	t.Cleanup(func() { database.Close() })
	return database
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	database := setupTestDB(t)

	sessionManager := scs.New()
	sessionManager.Store = memstore.New()

	uploader, err := storage.NewDiskUploader(t.TempDir(), "http://localhost/files")
	require.NoError(t, err)

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	quota := service.NewQuotaService(store.NewUsageStore(database), 1000, 500, m)
	saves := service.NewSaveService(store.NewSavedBracketStore(database), quota, "https://brackets.example.com", m)

	handler := newRouter(&deps{
		sessionManager: sessionManager,
		brackets:       service.NewBracketService(store.NewWorkspaceStore(database), saves, m),
		uploads: service.NewUploadService(uploader, quota, 10<<20,
			[]string{"image/jpeg", "image/png", "image/gif", "image/webp", "application/pdf"}, m),
		saves:          saves,
		limiter:        middleware.NewIPRateLimiter(1000, 1000),
		allowedOrigins: []string{"*"},
		fileDir:        uploader.Root(),
		registry:       registry,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testApp{srv: srv, handler: handler, db: database}
}

// browser returns a client that keeps its session cookie, like one editor tab.
func (a *testApp) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func (a *testApp) htmx(t *testing.T, c *http.Client, target string, form url.Values) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.srv.URL+target, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	resp, err := c.Do(req)
	require.NoError(t, err)
	return resp
}

func multipartFile(t *testing.T, field, name string, content []byte, extra map[string]string) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	if name != "" {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), &buf
}

func setUploads(t *testing.T, db *sqlx.DB, count int) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO usage (month, upload_count, save_count) VALUES (?, ?, 0)
		ON CONFLICT(month) DO UPDATE SET upload_count = excluded.upload_count`,
		time.Now().UTC().Format("2006-01"), count)
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Get(app.srv.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.Equal(t, "API is alive", body["message"])
	assert.NotEmpty(t, body["time"])
}

func TestUploadAPI(t *testing.T) {
	app := newTestApp(t)

	t.Run("rejects non multipart bodies", func(t *testing.T) {
		resp, err := http.Post(app.srv.URL+"/api/upload", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Content-Type must be multipart/form-data", decodeJSON(t, resp)["error"])
	})

	t.Run("requires a file", func(t *testing.T) {
		ct, body := multipartFile(t, "file", "", nil, map[string]string{"note": "x"})
		resp, err := http.Post(app.srv.URL+"/api/upload", ct, body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "No file uploaded", decodeJSON(t, resp)["error"])
	})

	t.Run("rejects disallowed types", func(t *testing.T) {
		ct, body := multipartFile(t, "file", "notes.txt", []byte("just some text"), nil)
		resp, err := http.Post(app.srv.URL+"/api/upload", ct, body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		got := decodeJSON(t, resp)
		assert.Equal(t, "text/plain", got["receivedType"])
	})

	t.Run("rejects oversized files with their size", func(t *testing.T) {
		content := append(append([]byte{}, pngHeader...), make([]byte, 12<<20)...)
		ct, body := multipartFile(t, "file", "huge.png", content, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ct)
		sent := req.ContentLength
		require.Greater(t, sent, int64(12<<20))

		rec := httptest.NewRecorder()
		app.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "File too large. Maximum size is 10MB", got["error"])
		assert.EqualValues(t, sent, got["size"])
		assert.EqualValues(t, 10<<20, got["maxSize"])
	})

	t.Run("stores and serves the file", func(t *testing.T) {
		ct, body := multipartFile(t, "file", "deck.png", pngHeader, nil)
		resp, err := http.Post(app.srv.URL+"/api/upload", ct, body)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		got := decodeJSON(t, resp)
		assert.Equal(t, true, got["success"])
		assert.Equal(t, "deck.png", got["originalName"])
		assert.EqualValues(t, len(pngHeader), got["size"])
		assert.EqualValues(t, 1, got["uploadCount"])
		assert.EqualValues(t, 1000, got["limit"])
		assert.Contains(t, got["url"], "/decklists/")
		fileName, _ := got["fileName"].(string)
		assert.Regexp(t, `^\d+_[0-9a-f]{8}\.png$`, fileName)

		served, err := http.Get(app.srv.URL + "/files/" + path.Join("decklists", fileName))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, served.StatusCode)
		assert.Equal(t, string(pngHeader), readBody(t, served))
	})

	t.Run("logos go under their own prefix", func(t *testing.T) {
		ct, body := multipartFile(t, "file", "logo.png", pngHeader, nil)
		resp, err := http.Post(app.srv.URL+"/api/upload?kind=logo", ct, body)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, decodeJSON(t, resp)["url"], "/logos/")
	})

	t.Run("monthly limit", func(t *testing.T) {
		setUploads(t, app.db, 1000)

		ct, body := multipartFile(t, "file", "deck.png", pngHeader, nil)
		resp, err := http.Post(app.srv.URL+"/api/upload", ct, body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

		got := decodeJSON(t, resp)
		assert.Equal(t, uploadQuotaMessage, got["error"])
		assert.EqualValues(t, 1000, got["limit"])
		assert.EqualValues(t, 1000, got["current"])
		assert.NotEmpty(t, got["resetDate"])
	})
}

func TestBracketsAPI(t *testing.T) {
	app := newTestApp(t)

	post := func(body string) *http.Response {
		resp, err := http.Post(app.srv.URL+"/api/brackets", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		return resp
	}

	resp := post(`{"config":{"type":"singles","bracketSize":4}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Bracket title is required", decodeJSON(t, resp)["error"])

	resp = post(`not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = post(`{"title":"Yavin Open","config":{"type":"singles","bracketSize":4},"winners":{"r0m0":1}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decodeJSON(t, resp)
	assert.Equal(t, true, saved["success"])
	id, _ := saved["id"].(string)
	assert.Regexp(t, `^bracket_\d+_[0-9a-f]{9}$`, id)
	assert.Equal(t, "https://brackets.example.com/tools/bracket-manager?id="+id, saved["shareUrl"])
	assert.EqualValues(t, 1, saved["saveCount"])
	assert.EqualValues(t, 500, saved["limit"])

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"by path", "/api/brackets/" + id, http.StatusOK},
		{"by query", "/api/brackets?id=" + id, http.StatusOK},
		{"missing id", "/api/brackets", http.StatusBadRequest},
		{"unknown id", "/api/brackets/bracket_1_nothere", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(app.srv.URL + tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeJSON(t, resp)

			switch tt.status {
			case http.StatusOK:
				assert.Equal(t, "public, max-age=300", resp.Header.Get("Cache-Control"))
				doc := body["bracket"].(map[string]any)
				assert.Equal(t, "Yavin Open", doc["title"])
				assert.Equal(t, "2.0", doc["version"])
				assert.EqualValues(t, 1, doc["winners"].(map[string]any)["r0m0"])
			case http.StatusNotFound:
				assert.Equal(t, "Bracket not found", body["error"])
				assert.Equal(t, "bracket_1_nothere", body["id"])
			}
		})
	}
}

func TestAPICORS(t *testing.T) {
	app := newTestApp(t)

	req, err := http.NewRequest(http.MethodOptions, app.srv.URL+"/api/brackets", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestParseSettings(t *testing.T) {
	tests := []struct {
		name          string
		form          url.Values
		matchOpacity  float64
		borderOpacity float64
		logoSize      int
	}{
		{name: "valid", form: url.Values{"matchOpacity": {"0.5"}, "borderOpacity": {"0.25"}, "logoSize": {"90"}}, matchOpacity: 0.5, borderOpacity: 0.25, logoSize: 90},
		{name: "blank falls back to default", form: url.Values{}, matchOpacity: 0, borderOpacity: 0},
		{name: "not a number", form: url.Values{"matchOpacity": {"NaN"}, "borderOpacity": {"nan"}}},
		{name: "infinite", form: url.Values{"matchOpacity": {"Inf"}, "borderOpacity": {"-Infinity"}}},
		{name: "clamped", form: url.Values{"matchOpacity": {"7"}, "borderOpacity": {"-2"}, "logoSize": {"abc"}}, matchOpacity: 1, borderOpacity: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/bracket/settings", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			require.NoError(t, req.ParseForm())

			got := parseSettings(req)
			assert.Equal(t, tt.matchOpacity, got.MatchOpacity)
			assert.Equal(t, tt.borderOpacity, got.BorderOpacity)
			assert.Equal(t, tt.logoSize, got.LogoSize)

			resolved := got.Resolve(8)
			assert.False(t, math.IsNaN(resolved.MatchOpacity))
			assert.LessOrEqual(t, resolved.MatchOpacity, 1.0)
			assert.LessOrEqual(t, resolved.BorderOpacity, 1.0)
		})
	}
}

func TestEditorFlow(t *testing.T) {
	app := newTestApp(t)
	c := app.browser(t)

	resp, err := c.Get(app.srv.URL + "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := readBody(t, resp)
	assert.Contains(t, page, `<div id="bracket-grid">`)
	assert.Contains(t, page, `htmx.org`)

	t.Run("field edits persist for the session", func(t *testing.T) {
		resp := app.htmx(t, c, "/bracket/field", url.Values{"key": {"r0m0t0-name"}, "value": {"Rebels"}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), `id="status"`)

		resp, err := c.Get(app.srv.URL + "/tools/bracket-manager")
		require.NoError(t, err)
		assert.Contains(t, readBody(t, resp), `value="Rebels"`)

		// another browser has its own workspace
		resp, err = app.browser(t).Get(app.srv.URL + "/")
		require.NoError(t, err)
		assert.NotContains(t, readBody(t, resp), `value="Rebels"`)
	})

	t.Run("bad input is rejected", func(t *testing.T) {
		resp := app.htmx(t, c, "/bracket/field", url.Values{"key": {"r9m0t0-name"}, "value": {"x"}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "#status", resp.Header.Get("HX-Retarget"))
		assert.Contains(t, readBody(t, resp), `class="status status-error"`)

		form := url.Values{"match": {"r0m0"}, "side": {"2"}}
		req, err := http.NewRequest(http.MethodPost, app.srv.URL+"/bracket/winner", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err = c.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "side must be 0 or 1")
	})

	t.Run("winner advances", func(t *testing.T) {
		resp := app.htmx(t, c, "/bracket/winner", url.Values{"match": {"r0m0"}, "side": {"0"}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		grid := readBody(t, resp)
		assert.Equal(t, 1, strings.Count(grid, `winner-btn selected`))
		assert.Contains(t, grid, `id="r1m0t0-name" value="Rebels"`)
	})

	t.Run("decklist upload attaches to the player", func(t *testing.T) {
		ct, body := multipartFile(t, "file", "deck.png", pngHeader, map[string]string{"key": "r0m0t0p1"})
		req, err := http.NewRequest(http.MethodPost, app.srv.URL+"/bracket/decklist", body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("HX-Request", "true")
		resp, err := c.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		grid := readBody(t, resp)
		assert.Contains(t, grid, "Decklist uploaded: deck.png")
		assert.Contains(t, grid, "has-file")
	})

	t.Run("export", func(t *testing.T) {
		resp, err := c.Get(app.srv.URL + "/bracket/export")
		require.NoError(t, err)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), `attachment; filename="bracket_teams_8_`)

		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &doc))
		assert.EqualValues(t, 0, doc["winners"].(map[string]any)["r0m0"])
	})

	t.Run("reconfigure asks for confirmation", func(t *testing.T) {
		form := url.Values{"type": {"singles"}, "bracketSize": {"4"}}

		resp := app.htmx(t, c, "/bracket/config", form)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "#status", resp.Header.Get("HX-Retarget"))
		assert.Contains(t, readBody(t, resp), `name="confirmed" value="true"`)

		req, err := http.NewRequest(http.MethodPost, app.srv.URL+"/bracket/config", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err = c.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()

		form.Set("confirmed", "true")
		resp = app.htmx(t, c, "/bracket/config", form)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		grid := readBody(t, resp)
		assert.Contains(t, grid, `<div class="section-title">Semi Finals</div>`)
		assert.NotContains(t, grid, `winner-btn selected`)
	})

	t.Run("settings", func(t *testing.T) {
		resp := app.htmx(t, c, "/bracket/settings", url.Values{"tournamentTitle": {"Yavin Open"}, "logoSize": {"120"}, "matchOpacity": {"0.5"}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		panel := readBody(t, resp)
		assert.Contains(t, panel, "Settings saved")
		assert.Contains(t, panel, `name="logoSize" step="1" value="120"`)

		resp, err := c.Get(app.srv.URL + "/presentation?download=1")
		require.NoError(t, err)
		assert.Contains(t, resp.Header.Get("Content-Disposition"), `attachment; filename="tournament_bracket_`)
		assert.Contains(t, readBody(t, resp), `<title>Yavin Open - Tournament Bracket</title>`)

		resp = app.htmx(t, c, "/bracket/settings/reset", nil)
		assert.Contains(t, readBody(t, resp), `name="logoSize" step="1" value="80"`)
	})

	t.Run("share and load in another browser", func(t *testing.T) {
		resp := app.htmx(t, c, "/bracket/field", url.Values{"key": {"r0m1t1-name"}, "value": {"Empire"}})
		resp.Body.Close()

		resp = app.htmx(t, c, "/bracket/share", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		status := readBody(t, resp)
		assert.Contains(t, status, "Share link:")

		i := strings.Index(status, "?id=")
		require.NotEqual(t, -1, i)
		id := status[i+4 : i+4+strings.IndexByte(status[i+4:], '"')]

		resp, err := app.browser(t).Get(app.srv.URL + "/tools/bracket-manager?id=" + url.QueryEscape(id))
		require.NoError(t, err)
		page := readBody(t, resp)
		assert.Contains(t, page, "Loaded shared bracket")
		assert.Contains(t, page, `value="Empire"`)

		resp, err = app.browser(t).Get(app.srv.URL + "/?id=bracket_1_missing")
		require.NoError(t, err)
		assert.Contains(t, readBody(t, resp), "Bracket not found")
	})

	t.Run("import", func(t *testing.T) {
		legacy := `{"winners":{"qf1":1},"inputs":{"qf1-t1-name":"Rebels","champ-name":"x"}}`
		ct, body := multipartFile(t, "file", "old.json", []byte(legacy), nil)
		req, err := http.NewRequest(http.MethodPost, app.srv.URL+"/bracket/import", body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("HX-Request", "true")
		resp, err := c.Do(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "bracket-rendered", resp.Header.Get("HX-Trigger-After-Settle"))
		grid := readBody(t, resp)
		assert.Contains(t, grid, "Legacy bracket imported; skipped 1 entries: inputs.champ-name")
		assert.Contains(t, grid, `value="Rebels"`)

		ct, body = multipartFile(t, "file", "bad.json", []byte("{nope"), nil)
		req, err = http.NewRequest(http.MethodPost, app.srv.URL+"/bracket/import", body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", ct)
		resp, err = c.Do(req)
		require.NoError(t, err)
		assert.Equal(t, "#status", resp.Header.Get("HX-Retarget"))
		assert.Contains(t, readBody(t, resp), "Invalid bracket file")
	})

	t.Run("clear results and reset", func(t *testing.T) {
		resp := app.htmx(t, c, "/bracket/clear-results", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotContains(t, readBody(t, resp), `winner-btn selected`)

		resp = app.htmx(t, c, "/bracket/reset", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotContains(t, readBody(t, resp), `value="Rebels"`)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Post(app.srv.URL+"/api/brackets", "application/json", strings.NewReader(`{"title":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(app.srv.URL + "/metrics")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Contains(t, body, "bracket_saves_total 1")
	assert.Contains(t, body, "go_goroutines")
}

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsp-search/internal/session"
	"tsp-search/internal/testutil"
	"tsp-search/web"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	return newTestServerWith(t, Config{})
}

func newTestServerWith(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	cfg.DBPath = ":memory:"
	cfg.Session = session.Config{
		Tick: time.Hour,
		Rand: testutil.NewLockedSource(3),
	}
	srv, err := New(cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv, ts
}

func fetch(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestLoadTemplates(t *testing.T) {
	set, err := loadTemplates(web.Templates)
	require.NoError(t, err)

	assert.NotNil(t, set.Base.Lookup("layout.html"))
	assert.NotNil(t, set.Base.Lookup("search_status.html"))
	for _, page := range []string{"index.html", "settings.html", "history.html"} {
		assert.Contains(t, set.Pages, page)
	}
}

func TestPages(t *testing.T) {
	_, ts := newTestServer(t)

	for _, tc := range []struct {
		path string
		want string
	}{
		{"/", "Load instance"},
		{"/history", "No runs archived yet"},
		{"/settings", `name="tick_millis"`},
	} {
		t.Run(tc.path, func(t *testing.T) {
			resp, body := fetch(t, http.MethodGet, ts.URL+tc.path, "")
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, body, tc.want)
		})
	}

	resp, _ := fetch(t, http.MethodGet, ts.URL+"/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchFlow(t *testing.T) {
	srv, ts := newTestServer(t)

	resp, _ := fetch(t, http.MethodPost, ts.URL+"/api/v1/instance", testutil.TSPLIB)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = fetch(t, http.MethodGet, ts.URL+"/api/v1/search/step", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = fetch(t, http.MethodPost, ts.URL+"/api/v1/search/step", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := fetch(t, http.MethodGet, ts.URL+"/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "<polyline", "tour hidden until toggled")
	assert.Contains(t, body, "Show path")

	resp, _ = fetch(t, http.MethodPost, ts.URL+"/api/v1/search/path", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	snap, ok := srv.Session().Snapshot()
	require.True(t, ok)
	assert.Equal(t, 1, snap.Iteration)

	resp, body = fetch(t, http.MethodGet, ts.URL+"/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "five")
	assert.Contains(t, body, "<polyline")
	assert.Contains(t, body, "Hide path")
	assert.Contains(t, body, " -&gt; ")

	resp, body = fetch(t, http.MethodGet, ts.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "tsp_search_cities 5")
	assert.Contains(t, body, "tsp_search_steps_total 1")
}

func TestStreamThroughMiddleware(t *testing.T) {
	srv, ts := newTestServer(t)
	_, err := srv.Session().Load(context.Background(), testutil.Instance("sq", testutil.UnitSquare()))
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/search/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "sq", msg["instance"])
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/search", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestDesktopExternalLinks(t *testing.T) {
	srv, ts := newTestServerWith(t, Config{Desktop: true})
	ctx := context.Background()

	_, err := srv.Session().Load(ctx, testutil.Instance("first", testutil.UnitSquare()))
	require.NoError(t, err)
	_, err = srv.Session().Step()
	require.NoError(t, err)
	_, err = srv.Session().Load(ctx, testutil.Instance("second", testutil.Triangle()))
	require.NoError(t, err)

	resp, body := fetch(t, http.MethodGet, ts.URL+"/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-desktop="true"`)
	assert.Contains(t, body, "<td>1</td>")
	assert.Contains(t, body, "first")
	assert.Contains(t, body, "/chart.png\" target=\"_blank\" data-external>")

	resp, body = fetch(t, http.MethodGet, ts.URL+"/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "route.geojson")
	assert.Contains(t, body, "data-external")

	_, ts = newTestServer(t)
	_, body = fetch(t, http.MethodGet, ts.URL+"/", "")
	assert.NotContains(t, body, "data-desktop")
}

func TestOpenURLValidation(t *testing.T) {
	_, ts := newTestServer(t)

	resp, _ := fetch(t, http.MethodGet, ts.URL+"/api/v1/open-url", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	for _, body := range []string{
		`{`,
		`{"url":""}`,
		`{"url":"file:///etc/passwd"}`,
		`{"url":"javascript:alert(1)"}`,
	} {
		resp, _ = fetch(t, http.MethodPost, ts.URL+"/api/v1/open-url", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

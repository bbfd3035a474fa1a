package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betateam/betabench/internal/adapter"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

// fakeGrid is a minimal WebDriver endpoint: one session, a fixed page
// title, and a configurable set of locatable elements.
type fakeGrid struct {
	title    string
	elements map[string]string // selector -> element id
	texts    map[string]string // element id -> text
	dead     atomic.Bool       // every session call answers invalid session id
	requests atomic.Int64
}

func newFakeGrid(t *testing.T) (*fakeGrid, *httptest.Server) {
	t.Helper()

	g := &fakeGrid{
		title:    "Welcome — Beta Portal",
		elements: map[string]string{},
		texts:    map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		g.requests.Add(1)
		writeValue(w, http.StatusOK, map[string]any{"sessionId": "sess-1"})
	})
	mux.HandleFunc("/session/sess-1/", func(w http.ResponseWriter, r *http.Request) {
		g.requests.Add(1)

		if g.dead.Load() {
			writeValue(w, http.StatusNotFound, map[string]any{
				"error":   "invalid session id",
				"message": "session deleted",
			})
			return
		}

		g.handle(w, r)
	})
	mux.HandleFunc("DELETE /session/sess-1", func(w http.ResponseWriter, r *http.Request) {
		g.requests.Add(1)
		writeValue(w, http.StatusOK, nil)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return g, srv
}

func (g *fakeGrid) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/session/sess-1/url":
		writeValue(w, http.StatusOK, nil)
	case r.URL.Path == "/session/sess-1/title":
		writeValue(w, http.StatusOK, g.title)
	case r.URL.Path == "/session/sess-1/element":
		var req struct {
			Value string `json:"value"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		id, ok := g.elements[req.Value]
		if !ok {
			// W3C answers missing elements with 404 on a live session.
			writeValue(w, http.StatusNotFound, map[string]any{
				"error":   "no such element",
				"message": fmt.Sprintf("no such element: %s", req.Value),
			})
			return
		}

		writeValue(w, http.StatusOK, map[string]string{"element-6066-11e4-a52e-4f735466cecf": id})
	case r.URL.Path == "/session/sess-1/screenshot":
		writeValue(w, http.StatusOK, base64.StdEncoding.EncodeToString([]byte("fake png bytes")))
	default:
		// element text, click, value
		for _, id := range g.elements {
			if r.URL.Path == "/session/sess-1/element/"+id+"/text" {
				writeValue(w, http.StatusOK, g.texts[id])
				return
			}
		}

		writeValue(w, http.StatusOK, nil)
	}
}

func writeValue(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"value": value})
}

func connectedAdapter(t *testing.T, gridURL string) *Adapter {
	t.Helper()

	a := New(testLogger())
	require.NoError(t, a.Configure(&adapter.WebOptions{
		Browser: "chromium",
		GridURL: gridURL,
	}))
	require.NoError(t, a.Connect(context.Background(), adapter.TargetDescriptor{
		Location: "https://beta.example.com",
		Category: adapter.CategoryWeb,
	}))

	return a
}

func TestAdapter_Lifecycle(t *testing.T) {
	t.Parallel()

	_, srv := newFakeGrid(t)
	a := connectedAdapter(t, srv.URL)

	// Reconnecting a live instance is rejected.
	err := a.Connect(context.Background(), adapter.TargetDescriptor{Location: "https://beta.example.com"})
	assert.ErrorIs(t, err, adapter.ErrAlreadyConnected)

	require.NoError(t, a.Disconnect())

	// A disconnected instance is spent; the factory makes new ones.
	assert.ErrorIs(t, a.Disconnect(), adapter.ErrNotConnected)
	err = a.Connect(context.Background(), adapter.TargetDescriptor{Location: "https://beta.example.com"})
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}

func TestAdapter_ConnectRequiresConfigure(t *testing.T) {
	t.Parallel()

	a := New(testLogger())

	err := a.Connect(context.Background(), adapter.TargetDescriptor{Location: "https://beta.example.com"})

	var cfgErr *adapter.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestAdapter_ConnectUnreachableGrid(t *testing.T) {
	t.Parallel()

	a := New(testLogger())
	require.NoError(t, a.Configure(&adapter.WebOptions{
		Browser:        "chromium",
		GridURL:        "http://127.0.0.1:1",
		ConnectTimeout: 100 * time.Millisecond,
	}))

	err := a.Connect(context.Background(), adapter.TargetDescriptor{Location: "https://beta.example.com"})

	var connErr *adapter.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "https://beta.example.com", connErr.Target)
}

func TestAdapter_NavigationCheck(t *testing.T) {
	t.Parallel()

	_, srv := newFakeGrid(t)
	a := connectedAdapter(t, srv.URL)

	res, err := a.RunTest(context.Background(), "navigation", adapter.Params{"expected_title": "Beta Portal"})
	require.NoError(t, err)
	assert.Equal(t, adapter.StatusPassed, res.Status)
	assert.Equal(t, "chromium", res.Metadata["browser"])

	res, err = a.RunTest(context.Background(), "navigation", adapter.Params{"expected_title": "Checkout"})
	require.NoError(t, err)
	assert.Equal(t, adapter.StatusFailed, res.Status)
	assert.Contains(t, res.ErrorMessage, "Checkout")
}

func TestAdapter_ElementCheck(t *testing.T) {
	t.Parallel()

	g, srv := newFakeGrid(t)
	g.elements["#welcome"] = "elem-1"
	g.texts["elem-1"] = "Welcome back, tester"

	a := connectedAdapter(t, srv.URL)

	res, err := a.RunTest(context.Background(), "element_check", adapter.Params{
		"selector":      "#welcome",
		"expected_text": "Welcome",
	})
	require.NoError(t, err)
	assert.Equal(t, adapter.StatusPassed, res.Status)

	// A missing element fails the test but keeps the session usable,
	// even though the grid answers it with a 404.
	res, err = a.RunTest(context.Background(), "element_check", adapter.Params{"selector": "#absent"})
	require.NoError(t, err)
	assert.Equal(t, adapter.StatusFailed, res.Status)
	assert.Contains(t, res.ErrorMessage, "no such element")

	res, err = a.RunTest(context.Background(), "element_check", adapter.Params{
		"selector":      "#welcome",
		"expected_text": "Welcome",
	})
	require.NoError(t, err)
	assert.Equal(t, adapter.StatusPassed, res.Status)

	res, err = a.RunTest(context.Background(), "element_check", adapter.Params{})
	require.NoError(t, err)
	assert.Equal(t, adapter.StatusFailed, res.Status)
}

func TestAdapter_FormSubmit(t *testing.T) {
	t.Parallel()

	g, srv := newFakeGrid(t)
	g.elements["#email"] = "elem-1"
	g.elements["#submit"] = "elem-2"

	a := connectedAdapter(t, srv.URL)

	res, err := a.RunTest(context.Background(), "form_submit", adapter.Params{
		"field:#email":    "tester@example.com",
		"submit_selector": "#submit",
	})
	require.NoError(t, err)
	assert.Equal(t, adapter.StatusPassed, res.Status)

	res, err = a.RunTest(context.Background(), "form_submit", adapter.Params{})
	require.NoError(t, err)
	assert.Equal(t, adapter.StatusFailed, res.Status)
	assert.Contains(t, res.ErrorMessage, "submit_selector")
}

func TestAdapter_VisualRegressionRecordsScreenshot(t *testing.T) {
	t.Parallel()

	_, srv := newFakeGrid(t)

	shotDir := t.TempDir()

	a := New(testLogger())
	require.NoError(t, a.Configure(&adapter.WebOptions{
		Browser:       "chromium",
		GridURL:       srv.URL,
		ScreenshotDir: shotDir,
		BaselineDir:   "baselines",
	}))
	require.NoError(t, a.Connect(context.Background(), adapter.TargetDescriptor{
		Location: "https://beta.example.com",
		Category: adapter.CategoryWeb,
	}))

	res, err := a.RunTest(context.Background(), "visual_regression", adapter.Params{"visual_baseline": "login"})
	require.NoError(t, err)
	assert.Equal(t, adapter.StatusPassed, res.Status)

	// The capture lands on the result so the report layer can pair it
	// with its baseline.
	require.Equal(t, filepath.Join(shotDir, "login_current.png"), res.ScreenshotPath)
	assert.Equal(t, filepath.Join("baselines", "login.png"), res.Metadata["baseline"])

	data, err := os.ReadFile(res.ScreenshotPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake png bytes"), data)

	// The capture belongs to one result only.
	res, err = a.RunTest(context.Background(), "navigation", nil)
	require.NoError(t, err)
	assert.Empty(t, res.ScreenshotPath)
}

func TestAdapter_UnknownOperation(t *testing.T) {
	t.Parallel()

	_, srv := newFakeGrid(t)
	a := connectedAdapter(t, srv.URL)

	res, err := a.RunTest(context.Background(), "teleport", nil)
	require.NoError(t, err)
	assert.Equal(t, adapter.StatusFailed, res.Status)
}

func TestAdapter_SessionGoneIsLost(t *testing.T) {
	t.Parallel()

	g, srv := newFakeGrid(t)
	a := connectedAdapter(t, srv.URL)

	g.dead.Store(true)

	_, err := a.RunTest(context.Background(), "navigation", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrSessionLost)

	// The instance is unusable after the loss.
	_, err = a.RunTest(context.Background(), "navigation", nil)
	assert.ErrorIs(t, err, adapter.ErrNotConnected)

	_, err = a.CollectMetrics(context.Background())
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}

func TestAdapter_CollectMetrics(t *testing.T) {
	t.Parallel()

	_, srv := newFakeGrid(t)
	a := connectedAdapter(t, srv.URL)

	m, err := a.CollectMetrics(context.Background())
	require.NoError(t, err)

	assert.True(t, m.LoadTimeMs.Available)
	assert.False(t, m.MemoryMB.Available)
	assert.False(t, m.FPS.Available)
	assert.Zero(t, m.CrashCount)
}

func TestAdapter_RunTestBeforeConnect(t *testing.T) {
	t.Parallel()

	a := New(testLogger())

	_, err := a.RunTest(context.Background(), "navigation", nil)
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}

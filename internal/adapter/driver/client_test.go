package driver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func newSessionAgainst(t *testing.T, handle http.HandlerFunc) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		writeWire(w, http.StatusOK, map[string]any{"sessionId": "sess-1"})
	})
	mux.HandleFunc("/session/sess-1/", handle)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewSession(context.Background(), testLogger(), srv.URL, map[string]any{"browserName": "chromium"}, time.Second)
	require.NoError(t, err)

	return c
}

func writeWire(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"value": value})
}

func TestClient_NoSuchElementIsNotSessionGone(t *testing.T) {
	t.Parallel()

	c := newSessionAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		// A conformant grid answers a missing element with 404 while the
		// session is perfectly alive.
		writeWire(w, http.StatusNotFound, map[string]any{
			"error":   "no such element",
			"message": "no such element: #absent",
		})
	})

	_, err := c.FindElement(context.Background(), "css selector", "#absent")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionGone)
	assert.Contains(t, err.Error(), "no such element")
}

func TestClient_InvalidSessionIDIsSessionGone(t *testing.T) {
	t.Parallel()

	c := newSessionAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		writeWire(w, http.StatusNotFound, map[string]any{
			"error":   "invalid session id",
			"message": "session deleted",
		})
	})

	err := c.Navigate(context.Background(), "https://beta.example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionGone)
}

func TestClient_TransportDeathIsSessionGone(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		writeWire(w, http.StatusOK, map[string]any{"sessionId": "sess-1"})
	})

	srv := httptest.NewServer(mux)

	c, err := NewSession(context.Background(), testLogger(), srv.URL, map[string]any{"browserName": "chromium"}, time.Second)
	require.NoError(t, err)

	srv.Close()

	err = c.Navigate(context.Background(), "https://beta.example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionGone)
}

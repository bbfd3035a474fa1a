// Package driver implements a minimal WebDriver wire-protocol client.
// Both the Selenium grid used by the web adapter and WinAppDriver speak
// this JSON-over-HTTP protocol, so one client serves both backends.
package driver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrSessionGone indicates the remote end no longer knows the session:
// the driver process died or the session was reaped.
var ErrSessionGone = errors.New("webdriver session gone")

// Client is a live WebDriver session against one remote endpoint.
type Client struct {
	log       logrus.FieldLogger
	baseURL   string
	sessionID string
	http      *http.Client
}

type wireResponse struct {
	Value json.RawMessage `json:"value"`
}

type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewSession creates a session at the endpoint with the given
// capabilities. The timeout bounds the whole handshake.
func NewSession(ctx context.Context, log logrus.FieldLogger, baseURL string, capabilities map[string]any, timeout time.Duration) (*Client, error) {
	c := &Client{
		log:     log.WithField("component", "webdriver_client"),
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}

	body := map[string]any{
		"capabilities":        map[string]any{"alwaysMatch": capabilities},
		"desiredCapabilities": capabilities,
	}

	raw, err := c.do(ctx, http.MethodPost, "/session", body)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding session response: %w", err)
	}

	if payload.SessionID == "" {
		return nil, errors.New("endpoint returned no session id")
	}

	c.sessionID = payload.SessionID
	c.log.WithField("session", c.sessionID).Debug("session created")

	return c, nil
}

// Navigate loads the given URL in the session.
func (c *Client) Navigate(ctx context.Context, url string) error {
	_, err := c.do(ctx, http.MethodPost, c.sessionPath("/url"), map[string]any{"url": url})
	return err
}

// Title returns the current page or window title.
func (c *Client) Title(ctx context.Context) (string, error) {
	raw, err := c.do(ctx, http.MethodGet, c.sessionPath("/title"), nil)
	if err != nil {
		return "", err
	}

	var title string
	if err := json.Unmarshal(raw, &title); err != nil {
		return "", fmt.Errorf("decoding title: %w", err)
	}

	return title, nil
}

// FindElement locates one element and returns its opaque element id.
func (c *Client) FindElement(ctx context.Context, strategy, value string) (string, error) {
	raw, err := c.do(ctx, http.MethodPost, c.sessionPath("/element"), map[string]any{
		"using": strategy,
		"value": value,
	})
	if err != nil {
		return "", err
	}

	var ref map[string]string
	if err := json.Unmarshal(raw, &ref); err != nil {
		return "", fmt.Errorf("decoding element ref: %w", err)
	}

	for _, id := range ref {
		return id, nil
	}

	return "", fmt.Errorf("element not found: %s=%q", strategy, value)
}

// ElementText returns the visible text of an element.
func (c *Client) ElementText(ctx context.Context, elementID string) (string, error) {
	raw, err := c.do(ctx, http.MethodGet, c.sessionPath("/element/"+elementID+"/text"), nil)
	if err != nil {
		return "", err
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("decoding element text: %w", err)
	}

	return text, nil
}

// Click clicks an element.
func (c *Client) Click(ctx context.Context, elementID string) error {
	_, err := c.do(ctx, http.MethodPost, c.sessionPath("/element/"+elementID+"/click"), map[string]any{})
	return err
}

// SendKeys types text into an element.
func (c *Client) SendKeys(ctx context.Context, elementID, text string) error {
	_, err := c.do(ctx, http.MethodPost, c.sessionPath("/element/"+elementID+"/value"), map[string]any{
		"text":  text,
		"value": []string{text},
	})
	return err
}

// Screenshot captures the session viewport into dir/name.png and returns
// the written path.
func (c *Client) Screenshot(ctx context.Context, dir, name string) (string, error) {
	raw, err := c.do(ctx, http.MethodGet, c.sessionPath("/screenshot"), nil)
	if err != nil {
		return "", err
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return "", fmt.Errorf("decoding screenshot: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding screenshot payload: %w", err)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating screenshot dir: %w", err)
	}

	path := filepath.Join(dir, name+".png")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}

	return path, nil
}

// Close deletes the remote session.
func (c *Client) Close(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, c.sessionPath(""), nil)
	if err != nil && !errors.Is(err, ErrSessionGone) {
		return err
	}

	return nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/session/" + c.sessionID + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failure after session creation means the driver
		// process is gone.
		if c.sessionID != "" {
			return nil, fmt.Errorf("%w: %v", ErrSessionGone, err)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var wrapped wireResponse
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var werr wireError
		_ = json.Unmarshal(wrapped.Value, &werr)

		// Only "invalid session id" means the session itself is gone. Other
		// 4xx answers, including the 404 a conformant grid sends for
		// "no such element", are ordinary command failures on a live session.
		if werr.Error == "invalid session id" {
			return nil, fmt.Errorf("%w: %s", ErrSessionGone, werr.Message)
		}

		return nil, fmt.Errorf("%s %s: %s: %s", method, path, werr.Error, werr.Message)
	}

	return wrapped.Value, nil
}

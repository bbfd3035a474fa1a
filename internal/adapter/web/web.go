// Package web implements the adapter contract for browser-based targets,
// driven through a WebDriver-compatible grid endpoint.
package web

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betateam/betabench/internal/adapter"
	"github.com/betateam/betabench/internal/adapter/driver"
)

const defaultConnectTimeout = 30 * time.Second

// Register binds the web adapter factory into the registry.
func Register(r *adapter.Registry) error {
	return r.Register(adapter.CategoryWeb, func(log logrus.FieldLogger) adapter.Adapter {
		return New(log)
	})
}

// Adapter drives one browser session. Operations: navigation,
// element_check, form_submit, visual_regression.
type Adapter struct {
	log     logrus.FieldLogger
	opts    *adapter.WebOptions
	session *driver.Client
	target  adapter.TargetDescriptor
	lost    bool
	closed  bool
	loadMs  float64
	loaded  bool

	// Set by captureForBaseline for the duration of one RunTest call so
	// the capture ends up on the result.
	lastShot     string
	lastBaseline string
}

// New creates an unconfigured, unconnected web adapter instance.
func New(log logrus.FieldLogger) *Adapter {
	return &Adapter{log: log.WithField("component", "web_adapter")}
}

// Category implements adapter.Adapter.
func (a *Adapter) Category() adapter.Category { return adapter.CategoryWeb }

// Configure implements adapter.Adapter.
func (a *Adapter) Configure(opts adapter.Options) error {
	webOpts, ok := opts.(*adapter.WebOptions)
	if !ok {
		return &adapter.ConfigurationError{Option: "options", Reason: fmt.Sprintf("expected web options, got %T", opts)}
	}

	if err := webOpts.Validate(); err != nil {
		return err
	}

	a.opts = webOpts

	return nil
}

// Connect implements adapter.Adapter.
func (a *Adapter) Connect(ctx context.Context, target adapter.TargetDescriptor) error {
	if a.session != nil {
		return adapter.ErrAlreadyConnected
	}
	if a.closed || a.lost {
		return adapter.ErrNotConnected
	}
	if a.opts == nil {
		return &adapter.ConfigurationError{Option: "options", Reason: "Configure must be called before Connect"}
	}

	timeout := a.opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	caps := map[string]any{
		"browserName": a.opts.Browser,
	}
	if a.opts.Headless {
		caps["goog:chromeOptions"] = map[string]any{"args": []string{"--headless=new"}}
	}

	session, err := driver.NewSession(ctx, a.log, a.opts.GridURL, caps, timeout)
	if err != nil {
		return &adapter.ConnectionError{Target: target.Location, Err: err}
	}

	start := time.Now()
	if err := session.Navigate(ctx, target.Location); err != nil {
		_ = session.Close(context.Background())
		return &adapter.ConnectionError{Target: target.Location, Err: err}
	}

	a.loadMs = float64(time.Since(start).Milliseconds())
	a.loaded = true
	a.session = session
	a.target = target

	a.log.WithFields(logrus.Fields{
		"target":  target.Location,
		"browser": a.opts.Browser,
	}).Info("browser session established")

	return nil
}

// RunTest implements adapter.Adapter.
func (a *Adapter) RunTest(ctx context.Context, name string, params adapter.Params) (*adapter.TestResult, error) {
	if a.session == nil || a.lost {
		return nil, adapter.ErrNotConnected
	}

	start := time.Now()

	var err error
	switch name {
	case "navigation":
		err = a.checkNavigation(ctx, params)
	case "element_check":
		err = a.checkElement(ctx, params)
	case "form_submit":
		err = a.submitForm(ctx, params)
	case "visual_regression":
		err = a.captureForBaseline(ctx, params)
	default:
		err = fmt.Errorf("unknown web operation %q", name)
	}

	elapsed := time.Since(start)

	if err != nil && errors.Is(err, driver.ErrSessionGone) {
		a.lost = true
		return nil, fmt.Errorf("%w: %v", adapter.ErrSessionLost, err)
	}

	result := &adapter.TestResult{
		Name:      name,
		Status:    adapter.StatusPassed,
		Duration:  elapsed,
		Timestamp: time.Now(),
		Metadata: map[string]string{
			"browser": a.opts.Browser,
			"url":     a.target.Location,
		},
	}
	if err != nil {
		result.Status = adapter.StatusFailed
		result.ErrorMessage = err.Error()
	}

	if a.lastShot != "" {
		result.ScreenshotPath = a.lastShot
		if a.lastBaseline != "" {
			result.Metadata["baseline"] = a.lastBaseline
		}
		a.lastShot, a.lastBaseline = "", ""
	}

	return result, nil
}

func (a *Adapter) checkNavigation(ctx context.Context, params adapter.Params) error {
	url := params["url"]
	if url == "" {
		url = a.target.Location
	}

	if err := a.session.Navigate(ctx, url); err != nil {
		return err
	}

	if want := params["expected_title"]; want != "" {
		title, err := a.session.Title(ctx)
		if err != nil {
			return err
		}
		if !strings.Contains(title, want) {
			return fmt.Errorf("title %q does not contain %q", title, want)
		}
	}

	return nil
}

func (a *Adapter) checkElement(ctx context.Context, params adapter.Params) error {
	selector := params["selector"]
	if selector == "" {
		return errors.New("element_check requires a selector parameter")
	}

	id, err := a.session.FindElement(ctx, "css selector", selector)
	if err != nil {
		return err
	}

	if want := params["expected_text"]; want != "" {
		text, err := a.session.ElementText(ctx, id)
		if err != nil {
			return err
		}
		if !strings.Contains(text, want) {
			return fmt.Errorf("element %q text %q does not contain %q", selector, text, want)
		}
	}

	return nil
}

func (a *Adapter) submitForm(ctx context.Context, params adapter.Params) error {
	for key, value := range params {
		if !strings.HasPrefix(key, "field:") {
			continue
		}

		selector := strings.TrimPrefix(key, "field:")
		id, err := a.session.FindElement(ctx, "css selector", selector)
		if err != nil {
			return err
		}
		if err := a.session.SendKeys(ctx, id, value); err != nil {
			return err
		}
	}

	submit := params["submit_selector"]
	if submit == "" {
		return errors.New("form_submit requires a submit_selector parameter")
	}

	id, err := a.session.FindElement(ctx, "css selector", submit)
	if err != nil {
		return err
	}

	return a.session.Click(ctx, id)
}

// captureForBaseline records the current viewport for offline comparison.
// The pixel diff itself is produced by the report layer's screenshot-diff
// records; here we only guarantee both artifacts exist.
func (a *Adapter) captureForBaseline(ctx context.Context, params adapter.Params) error {
	baseline := params["visual_baseline"]
	if baseline == "" {
		baseline = "default"
	}

	dir := a.opts.ScreenshotDir
	if dir == "" {
		dir = "screenshots"
	}

	path, err := a.session.Screenshot(ctx, dir, baseline+"_current")
	if err != nil {
		return err
	}

	a.lastShot = path
	if a.opts.BaselineDir != "" {
		a.lastBaseline = filepath.Join(a.opts.BaselineDir, baseline+".png")
	}

	return nil
}

// CollectMetrics implements adapter.Adapter.
func (a *Adapter) CollectMetrics(ctx context.Context) (*adapter.ResourceMetrics, error) {
	if a.session == nil || a.lost {
		return nil, adapter.ErrNotConnected
	}

	m := &adapter.ResourceMetrics{
		Custom: map[string]float64{},
	}
	if a.loaded {
		m.LoadTimeMs = adapter.ObservedGauge(a.loadMs)
	}
	// Memory, CPU, and FPS are not observable through the wire protocol;
	// they stay unavailable rather than fabricated.

	return m, nil
}

// Disconnect implements adapter.Adapter.
func (a *Adapter) Disconnect() error {
	if a.session == nil {
		return adapter.ErrNotConnected
	}

	err := a.session.Close(context.Background())
	a.session = nil
	a.closed = true

	if err != nil {
		return fmt.Errorf("closing browser session: %w", err)
	}

	a.log.Debug("browser session closed")

	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)

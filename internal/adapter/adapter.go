// Package adapter defines the uniform capability contract that every
// target-application integration must implement, along with the shared
// data model (targets, test results, resource metrics) and the registry
// that maps a target category to its adapter factory.
package adapter

import (
	"context"
	"time"
)

// Category identifies a class of target application.
type Category string

const (
	// CategoryWeb covers browser-based applications.
	CategoryWeb Category = "web"
	// CategoryWindows covers native Windows desktop applications.
	CategoryWindows Category = "windows"
	// CategoryGame covers game builds driven through image matching.
	CategoryGame Category = "game"
	// CategoryVST covers audio plugins hosted in a DAW.
	CategoryVST Category = "vst"
)

// KnownCategories lists every category with a built-in adapter.
func KnownCategories() []Category {
	return []Category{CategoryWeb, CategoryWindows, CategoryGame, CategoryVST}
}

// Known reports whether c names a built-in category.
func (c Category) Known() bool {
	for _, k := range KnownCategories() {
		if c == k {
			return true
		}
	}

	return false
}

// TargetDescriptor identifies one connection target. Location is a path,
// URL, or handle depending on the category. Immutable once created.
type TargetDescriptor struct {
	Location string
	Category Category
}

// TestStatus is the outcome classification of one test invocation.
type TestStatus string

const (
	// StatusPassed indicates the test completed and all checks held.
	StatusPassed TestStatus = "passed"
	// StatusFailed indicates the test completed with a failing check.
	StatusFailed TestStatus = "failed"
	// StatusSkipped indicates the test was never dispatched.
	StatusSkipped TestStatus = "skipped"
	// StatusError indicates the test could not run to completion.
	StatusError TestStatus = "error"
)

// Params carries opaque, backend-specific test parameters.
type Params map[string]string

// TestResult is the outcome of one named test invocation.
// Immutable once recorded.
type TestResult struct {
	Name           string
	Status         TestStatus
	Duration       time.Duration
	ErrorMessage   string
	ScreenshotPath string
	Metadata       map[string]string
	Timestamp      time.Time
}

// Passed reports whether the result counts toward the pass rate.
func (r *TestResult) Passed() bool {
	return r.Status == StatusPassed
}

// Gauge is a single resource measurement. Backends that cannot observe a
// value leave Available false rather than reporting a fabricated zero.
type Gauge struct {
	Value     float64
	Available bool
}

// ObservedGauge returns an available gauge with the given value.
func ObservedGauge(v float64) Gauge {
	return Gauge{Value: v, Available: true}
}

// ResourceMetrics is a best-effort snapshot of backend-observable
// resource usage at collection time.
type ResourceMetrics struct {
	LoadTimeMs  Gauge
	MemoryMB    Gauge
	CPUPercent  Gauge
	FPS         Gauge
	UIStability Gauge
	CrashCount  int
	Custom      map[string]float64
}

// Adapter is the capability contract every target integration satisfies.
//
// Lifecycle: Configure -> Connect -> RunTest*/CollectMetrics* -> Disconnect.
// One adapter instance owns at most one logical session; reconnecting after
// Disconnect requires a new instance from the registry factory.
//
// RunTest converts backend failures into a failed TestResult instead of
// returning an error, with one exception: loss of the underlying session is
// reported as ErrSessionLost and marks the instance unusable.
type Adapter interface {
	// Category reports which target category this adapter serves.
	Category() Category

	// Configure validates and stores options for subsequent Connect calls.
	// Returns a *ConfigurationError when a required option is missing or
	// malformed.
	Configure(opts Options) error

	// Connect establishes a session against the target. Returns a
	// *ConnectionError when the target is unreachable or the backend cannot
	// be started within the configured timeout, and ErrAlreadyConnected when
	// called twice without an intervening Disconnect.
	Connect(ctx context.Context, target TargetDescriptor) error

	// RunTest executes one named, backend-specific test against the live
	// session. See the interface comment for error conversion rules.
	RunTest(ctx context.Context, name string, params Params) (*TestResult, error)

	// CollectMetrics returns backend-observable resource metrics at call
	// time. Absent metrics are reported as unavailable, never fabricated.
	CollectMetrics(ctx context.Context) (*ResourceMetrics, error)

	// Disconnect releases the session and backend resources. Calling it on
	// an instance that is not connected returns ErrNotConnected.
	Disconnect() error
}

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betateam/betabench/internal/metrics"
)

// Generator accumulates suites, issues, and screenshot diffs, and
// renders them as HTML or JSON reports.
type Generator interface {
	AddSuite(suite *Suite)
	AddIssue(title, description string, severity Severity, testName, screenshot string) string
	AddScreenshotDiff(diff ScreenshotDiff)
	AttachSnapshot(snap *metrics.Snapshot)
	Summary() *Summary
	BulletPoints() []string
	Issues() []*Issue
	WriteHTML(filename string) (string, error)
	WriteJSON(filename string) (string, error)
	LoadHistory(path string) error
	AppendHistory(path string) error
	Trends() *Trends
}

// Summary is the cross-suite rollup included at the top of every
// report.
type Summary struct {
	Statistics     Statistics `json:"statistics"`
	Issues         int        `json:"issues"`
	CriticalIssues int        `json:"critical_issues"`
	Suites         int        `json:"suites"`
}

// Trends summarizes historical pass rates loaded from prior report
// runs.
type Trends struct {
	PassRates   []float64 `json:"pass_rate_trend"`
	AvgPassRate float64   `json:"avg_pass_rate"`
	TotalRuns   int       `json:"total_runs"`
}

type generator struct {
	log       logrus.FieldLogger
	outputDir string
	now       func() time.Time

	mu          sync.Mutex
	suites      []*Suite
	issues      []*Issue
	screenshots []ScreenshotDiff
	history     []historyEntry
	snapshot    *metrics.Snapshot
}

type historyEntry struct {
	Summary *Summary `json:"summary"`
}

var _ Generator = (*generator)(nil)

// NewGenerator creates a report generator writing into outputDir.
func NewGenerator(log logrus.FieldLogger, outputDir string) Generator {
	return &generator{
		log:       log.WithField("component", "report_generator"),
		outputDir: outputDir,
		now:       time.Now,
	}
}

// AddSuite adds a finished suite to the report.
func (g *generator) AddSuite(suite *Suite) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.suites = append(g.suites, suite)
}

// AddIssue records an issue, merging it into an existing one when the
// titles match after normalization. Merging increments the occurrence
// count and appends the test name; the returned ID is the surviving
// issue's ID either way.
func (g *generator) AddIssue(title, description string, severity Severity, testName, screenshot string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, existing := range g.issues {
		if !duplicateTitle(title, existing.Title) {
			continue
		}

		existing.Occurrences++
		if testName != "" {
			existing.Tests = append(existing.Tests, testName)
		}

		return existing.ID
	}

	issue := &Issue{
		ID:          fmt.Sprintf("ISSUE-%d", len(g.issues)+1),
		Title:       title,
		Description: description,
		Severity:    severity,
		Screenshot:  screenshot,
		Occurrences: 1,
		Created:     g.now(),
	}
	if testName != "" {
		issue.Tests = []string{testName}
	}

	g.issues = append(g.issues, issue)

	return issue.ID
}

// duplicateTitle reports whether two issue titles describe the same
// defect: equal after lowercasing and trimming, or one contains the
// other.
func duplicateTitle(a, b string) bool {
	t1 := strings.ToLower(strings.TrimSpace(a))
	t2 := strings.ToLower(strings.TrimSpace(b))

	return t1 == t2 || strings.Contains(t2, t1) || strings.Contains(t1, t2)
}

// AddScreenshotDiff records a baseline/current screenshot pair.
func (g *generator) AddScreenshotDiff(diff ScreenshotDiff) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if diff.Timestamp.IsZero() {
		diff.Timestamp = g.now()
	}

	g.screenshots = append(g.screenshots, diff)
}

// AttachSnapshot embeds the latest metrics aggregate in the report.
func (g *generator) AttachSnapshot(snap *metrics.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.snapshot = snap
}

// Summary rolls the statistics of every suite into one aggregate.
func (g *generator) Summary() *Summary {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.summaryLocked()
}

func (g *generator) summaryLocked() *Summary {
	var stats Statistics

	for _, suite := range g.suites {
		s := suite.Statistics()
		stats.Total += s.Total
		stats.Passed += s.Passed
		stats.Failed += s.Failed
		stats.Skipped += s.Skipped
		stats.Broken += s.Broken
	}

	if stats.Total > 0 {
		stats.PassRate = float64(stats.Passed) / float64(stats.Total) * 100
	}

	critical := 0
	for _, issue := range g.issues {
		if issue.Severity == SeverityCritical {
			critical++
		}
	}

	return &Summary{
		Statistics:     stats,
		Issues:         len(g.issues),
		CriticalIssues: critical,
		Suites:         len(g.suites),
	}
}

// BulletPoints renders a short text summary: overall status first,
// then each issue ordered by severity with its occurrence count.
func (g *generator) BulletPoints() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	summary := g.summaryLocked()
	stats := summary.Statistics

	bullets := []string{
		fmt.Sprintf("Ran %d tests with %.1f%% pass rate", stats.Total, stats.PassRate),
	}

	if stats.Failed > 0 {
		bullets = append(bullets, fmt.Sprintf("%d tests failed", stats.Failed))
	}

	if stats.Broken > 0 {
		bullets = append(bullets, fmt.Sprintf("%d tests broken (infrastructure issues)", stats.Broken))
	}

	if summary.CriticalIssues > 0 {
		bullets = append(bullets, fmt.Sprintf("%d critical issues found", summary.CriticalIssues))
	}

	sorted := make([]*Issue, len(g.issues))
	copy(sorted, g.issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() < sorted[j].Severity.Rank()
	})

	for _, issue := range sorted {
		line := fmt.Sprintf("[%s] %s", issue.Severity, issue.Title)
		if issue.Occurrences > 1 {
			line += fmt.Sprintf(" (%dx)", issue.Occurrences)
		}

		bullets = append(bullets, line)
	}

	return bullets
}

// Issues returns a copy of the recorded issues in insertion order.
func (g *generator) Issues() []*Issue {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Issue, len(g.issues))
	copy(out, g.issues)

	return out
}

// LoadHistory reads prior JSON reports for trend analysis. A missing
// file is not an error, it just means no history yet.
func (g *generator) LoadHistory(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("reading history file: %w", err)
	}

	var entries []historyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing history file: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.history = entries

	return nil
}

// AppendHistory appends this run's summary to the history file so
// future runs can trend over it. The file is created when missing.
func (g *generator) AppendHistory(path string) error {
	g.mu.Lock()
	entry := historyEntry{Summary: g.summaryLocked()}
	g.mu.Unlock()

	var entries []historyEntry

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parsing history file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("reading history file: %w", err)
	}

	entries = append(entries, entry)

	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating history directory: %w", err)
		}
	}

	if err := os.WriteFile(path, out, 0o640); err != nil {
		return fmt.Errorf("writing history file: %w", err)
	}

	g.log.WithField("path", path).WithField("runs", len(entries)).Debug("appended run to history")

	return nil
}

// Trends computes pass-rate trends from the loaded history. Returns
// nil when no history is loaded.
func (g *generator) Trends() *Trends {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.trendsLocked()
}

func (g *generator) trendsLocked() *Trends {
	if len(g.history) == 0 {
		return nil
	}

	trends := &Trends{TotalRuns: len(g.history)}

	var sum float64
	for _, h := range g.history {
		if h.Summary == nil {
			continue
		}

		trends.PassRates = append(trends.PassRates, h.Summary.Statistics.PassRate)
		sum += h.Summary.Statistics.PassRate
	}

	if len(trends.PassRates) > 0 {
		trends.AvgPassRate = sum / float64(len(trends.PassRates))
	}

	return trends
}

func (g *generator) ensureOutputDir() error {
	if err := os.MkdirAll(g.outputDir, 0o750); err != nil {
		return fmt.Errorf("creating output directory %s: %w", g.outputDir, err)
	}

	return nil
}

func (g *generator) outputPath(filename string) string {
	return filepath.Join(g.outputDir, filename)
}

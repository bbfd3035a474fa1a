package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// ChartData describes one dashboard chart in a renderer-neutral form.
type ChartData struct {
	Title    string         `json:"title"`
	Type     string         `json:"type"`
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
	Options  map[string]any `json:"options,omitempty"`
}

// ChartDataset is one series within a chart.
type ChartDataset struct {
	Label           string    `json:"label,omitempty"`
	Data            []float64 `json:"data,omitempty"`
	Matrix          [][]int   `json:"matrix,omitempty"`
	RowLabels       []string  `json:"row_labels,omitempty"`
	BackgroundColor []string  `json:"backgroundColor,omitempty"`
	BorderColor     string    `json:"borderColor,omitempty"`
}

type heatmapEntry struct {
	Test  string
	Date  string
	Value int
}

// Visualizer builds chart data and screenshot-diff views for the
// dashboard export.
type Visualizer struct {
	log       logrus.FieldLogger
	outputDir string
	now       func() time.Time

	charts      []ChartData
	screenshots []ScreenshotDiff
	heatmap     []heatmapEntry
}

// NewVisualizer creates a dashboard visualizer writing into outputDir.
func NewVisualizer(log logrus.FieldLogger, outputDir string) *Visualizer {
	return &Visualizer{
		log:       log.WithField("component", "visualizer"),
		outputDir: outputDir,
		now:       time.Now,
	}
}

// AddPassFailChart adds a pie chart of test outcomes.
func (v *Visualizer) AddPassFailChart(title string, passed, failed, skipped int) ChartData {
	chart := ChartData{
		Title:  title,
		Type:   "pie",
		Labels: []string{"Passed", "Failed", "Skipped"},
		Datasets: []ChartDataset{{
			Data:            []float64{float64(passed), float64(failed), float64(skipped)},
			BackgroundColor: []string{"#4CAF50", "#f44336", "#9E9E9E"},
		}},
	}

	v.charts = append(v.charts, chart)

	return chart
}

// AddTrendChart adds a line chart, typically of pass rate over time.
func (v *Visualizer) AddTrendChart(title, datasetLabel string, labels []string, points []float64) ChartData {
	chart := ChartData{
		Title:  title,
		Type:   "line",
		Labels: labels,
		Datasets: []ChartDataset{{
			Label:       datasetLabel,
			Data:        points,
			BorderColor: "#2196F3",
		}},
		Options: map[string]any{"responsive": true},
	}

	v.charts = append(v.charts, chart)

	return chart
}

// AddBarChart adds a bar chart with caller-supplied series.
func (v *Visualizer) AddBarChart(title string, labels []string, datasets []ChartDataset) ChartData {
	chart := ChartData{
		Title:    title,
		Type:     "bar",
		Labels:   labels,
		Datasets: datasets,
	}

	v.charts = append(v.charts, chart)

	return chart
}

// AddScreenshotDiff records a baseline/current pair for the dashboard.
func (v *Visualizer) AddScreenshotDiff(diff ScreenshotDiff) {
	if diff.Timestamp.IsZero() {
		diff.Timestamp = v.now()
	}

	v.screenshots = append(v.screenshots, diff)
}

// AddHeatmapEntry records one cell of the failure heatmap. Failed runs
// score 1, everything else 0.
func (v *Visualizer) AddHeatmapEntry(testName, date, status string) {
	value := 0
	if status == "failed" {
		value = 1
	}

	v.heatmap = append(v.heatmap, heatmapEntry{Test: testName, Date: date, Value: value})
}

// HeatmapChart folds the recorded entries into a tests-by-dates matrix
// chart. Missing cells render as 0.
func (v *Visualizer) HeatmapChart(title string) ChartData {
	testSet := map[string]struct{}{}
	dateSet := map[string]struct{}{}

	for _, e := range v.heatmap {
		testSet[e.Test] = struct{}{}
		dateSet[e.Date] = struct{}{}
	}

	tests := sortedKeys(testSet)
	dates := sortedKeys(dateSet)

	cells := map[string]int{}
	for _, e := range v.heatmap {
		cells[e.Test+"\x00"+e.Date] = e.Value
	}

	matrix := make([][]int, len(tests))
	for i, test := range tests {
		row := make([]int, len(dates))
		for j, date := range dates {
			row[j] = cells[test+"\x00"+date]
		}

		matrix[i] = row
	}

	chart := ChartData{
		Title:  title,
		Type:   "heatmap",
		Labels: dates,
		Datasets: []ChartDataset{{
			RowLabels: tests,
			Matrix:    matrix,
		}},
	}

	v.charts = append(v.charts, chart)

	return chart
}

// Charts returns the charts built so far.
func (v *Visualizer) Charts() []ChartData {
	return v.charts
}

// Export writes the dashboard data bundle as JSON and returns its
// path.
func (v *Visualizer) Export(filename string) (string, error) {
	if err := os.MkdirAll(v.outputDir, 0o750); err != nil {
		return "", fmt.Errorf("creating dashboard directory %s: %w", v.outputDir, err)
	}

	payload := struct {
		Generated   time.Time        `json:"generated"`
		Charts      []ChartData      `json:"charts"`
		Screenshots []ScreenshotDiff `json:"screenshots"`
	}{
		Generated:   v.now(),
		Charts:      v.charts,
		Screenshots: v.screenshots,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding dashboard data: %w", err)
	}

	path := filepath.Join(v.outputDir, filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing dashboard data: %w", err)
	}

	v.log.WithField("path", path).Info("exported dashboard data")

	return path, nil
}

// Clear drops every chart, screenshot, and heatmap entry.
func (v *Visualizer) Clear() {
	v.charts = nil
	v.screenshots = nil
	v.heatmap = nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

package report

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisualizer_AddPassFailChart(t *testing.T) {
	t.Parallel()

	v := NewVisualizer(testLogger(), t.TempDir())

	chart := v.AddPassFailChart("Outcomes", 8, 2, 1)

	assert.Equal(t, "pie", chart.Type)
	assert.Equal(t, []string{"Passed", "Failed", "Skipped"}, chart.Labels)
	require.Len(t, chart.Datasets, 1)
	assert.Equal(t, []float64{8, 2, 1}, chart.Datasets[0].Data)
	assert.Equal(t, []string{"#4CAF50", "#f44336", "#9E9E9E"}, chart.Datasets[0].BackgroundColor)
	assert.Len(t, v.Charts(), 1)
}

func TestVisualizer_AddTrendChart(t *testing.T) {
	t.Parallel()

	v := NewVisualizer(testLogger(), t.TempDir())

	chart := v.AddTrendChart("Pass rate", "pass_rate", []string{"run-1", "run-2"}, []float64{80, 95})

	assert.Equal(t, "line", chart.Type)
	require.Len(t, chart.Datasets, 1)
	assert.Equal(t, "pass_rate", chart.Datasets[0].Label)
	assert.Equal(t, "#2196F3", chart.Datasets[0].BorderColor)
}

func TestVisualizer_HeatmapChart(t *testing.T) {
	t.Parallel()

	v := NewVisualizer(testLogger(), t.TempDir())

	v.AddHeatmapEntry("login_test", "2026-08-27", "failed")
	v.AddHeatmapEntry("login_test", "2026-08-28", "passed")
	v.AddHeatmapEntry("export_test", "2026-08-28", "failed")

	chart := v.HeatmapChart("Failures by day")

	assert.Equal(t, "heatmap", chart.Type)
	assert.Equal(t, []string{"2026-08-27", "2026-08-28"}, chart.Labels)
	require.Len(t, chart.Datasets, 1)
	assert.Equal(t, []string{"export_test", "login_test"}, chart.Datasets[0].RowLabels)

	// Rows follow RowLabels; missing cells are 0.
	assert.Equal(t, [][]int{
		{0, 1},
		{1, 0},
	}, chart.Datasets[0].Matrix)
}

func TestVisualizer_Export(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	v := NewVisualizer(testLogger(), dir)

	v.AddPassFailChart("Outcomes", 3, 0, 0)
	v.AddScreenshotDiff(ScreenshotDiff{
		Name:      "login_page",
		Baseline:  "baseline/login.png",
		Current:   "current/login.png",
		Timestamp: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
	})

	path, err := v.Export("dashboard.json")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var payload struct {
		Charts      []ChartData      `json:"charts"`
		Screenshots []ScreenshotDiff `json:"screenshots"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))

	require.Len(t, payload.Charts, 1)
	require.Len(t, payload.Screenshots, 1)
	assert.Equal(t, "login_page", payload.Screenshots[0].Name)
}

func TestVisualizer_Clear(t *testing.T) {
	t.Parallel()

	v := NewVisualizer(testLogger(), t.TempDir())

	v.AddPassFailChart("Outcomes", 1, 0, 0)
	v.AddHeatmapEntry("t", "2026-08-28", "failed")
	v.Clear()

	assert.Empty(t, v.Charts())

	chart := v.HeatmapChart("empty")
	assert.Empty(t, chart.Labels)
	assert.Empty(t, chart.Datasets[0].RowLabels)
}

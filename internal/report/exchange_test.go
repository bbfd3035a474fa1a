package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeWriter_WriteResults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewExchangeWriter(testLogger(), dir)

	suite := &Suite{Name: "login_flow"}
	suite.Add(&TestCase{Name: "open_login", Status: "passed", DurationMs: 120})
	suite.Add(&TestCase{
		Name:         "check_welcome",
		Status:       "error",
		ErrorMessage: "session lost",
		Labels:       map[string]string{"category": "web", "browser": "chromium"},
	})
	w.AddSuite(suite)

	require.NoError(t, w.WriteResults())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	statuses := map[string]string{}
	for _, e := range entries {
		require.True(t, strings.HasSuffix(e.Name(), "-result.json"), e.Name())

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)

		var res struct {
			Name          string `json:"name"`
			HistoryID     string `json:"historyId"`
			Status        string `json:"status"`
			Stage         string `json:"stage"`
			Labels        []struct{ Name, Value string } `json:"labels"`
			StatusDetails *struct {
				Message string `json:"message"`
			} `json:"statusDetails"`
		}
		require.NoError(t, json.Unmarshal(data, &res))

		statuses[res.Name] = res.Status
		assert.Equal(t, res.Name, res.HistoryID)
		assert.Equal(t, "finished", res.Stage)

		labels := map[string]string{}
		for _, l := range res.Labels {
			labels[l.Name] = l.Value
		}
		assert.Equal(t, "login_flow", labels["suite"])

		if res.Name == "check_welcome" {
			require.NotNil(t, res.StatusDetails)
			assert.Equal(t, "session lost", res.StatusDetails.Message)
			assert.Equal(t, "chromium", labels["browser"])
		}
	}

	// Adapter "error" results surface as broken in the viewer.
	assert.Equal(t, "passed", statuses["open_login"])
	assert.Equal(t, "broken", statuses["check_welcome"])
}

func TestExchangeWriter_UsesRecordedStartTime(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewExchangeWriter(testLogger(), dir)

	started := time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC)
	w.AddTestCase(&TestCase{
		Name:       "open_login",
		Status:     "passed",
		DurationMs: 1500,
		StartTime:  started,
	}, "login_flow")

	require.NoError(t, w.WriteResults())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var res struct {
		Start int64 `json:"start"`
		Stop  int64 `json:"stop"`
	}
	require.NoError(t, json.Unmarshal(data, &res))

	// The bundle carries the time the test ran, not the time the
	// bundle was staged.
	assert.Equal(t, started.UnixMilli(), res.Start)
	assert.Equal(t, started.UnixMilli()+1500, res.Stop)
}

func TestExchangeWriter_WriteEnvironment(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewExchangeWriter(testLogger(), dir)

	require.NoError(t, w.WriteEnvironment(map[string]string{
		"os":      "linux",
		"browser": "chromium",
		"app":     "betabench",
	}))

	data, err := os.ReadFile(filepath.Join(dir, "environment.properties"))
	require.NoError(t, err)

	assert.Equal(t, "app=betabench\nbrowser=chromium\nos=linux\n", string(data))
}

func TestExchangeWriter_WriteCategoriesDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewExchangeWriter(testLogger(), dir)

	require.NoError(t, w.WriteCategories(nil))

	data, err := os.ReadFile(filepath.Join(dir, "categories.json"))
	require.NoError(t, err)

	var cats []ExchangeCategory
	require.NoError(t, json.Unmarshal(data, &cats))
	require.Len(t, cats, 2)

	assert.Equal(t, "Product defects", cats[0].Name)
	assert.Equal(t, []string{"failed"}, cats[0].MatchedStatuses)
	assert.Equal(t, "Test defects", cats[1].Name)
	assert.Equal(t, []string{"broken"}, cats[1].MatchedStatuses)
}

func TestExchangeWriter_WriteCategoriesCustom(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewExchangeWriter(testLogger(), dir)

	require.NoError(t, w.WriteCategories([]ExchangeCategory{
		{Name: "Flaky", MatchedStatuses: []string{"failed", "passed"}},
	}))

	data, err := os.ReadFile(filepath.Join(dir, "categories.json"))
	require.NoError(t, err)

	var cats []ExchangeCategory
	require.NoError(t, json.Unmarshal(data, &cats))
	require.Len(t, cats, 1)
	assert.Equal(t, "Flaky", cats[0].Name)
}

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/betateam/betabench/internal/metrics"
)

type jsonSuite struct {
	Name       string      `json:"name"`
	Statistics Statistics  `json:"statistics"`
	Tests      []*TestCase `json:"tests"`
}

type jsonReport struct {
	Generated    time.Time         `json:"generated"`
	Summary      *Summary          `json:"summary"`
	Snapshot     *metrics.Snapshot `json:"metrics,omitempty"`
	BulletPoints []string          `json:"bullet_points"`
	Issues       []*Issue          `json:"issues"`
	Screenshots  []ScreenshotDiff  `json:"screenshots,omitempty"`
	Trends       *Trends           `json:"trends,omitempty"`
	Suites       []jsonSuite       `json:"suites"`
}

// WriteJSON renders the machine-readable report and returns the path
// it was written to. The layout mirrors the HTML report so the two can
// be generated from the same run interchangeably.
func (g *generator) WriteJSON(filename string) (string, error) {
	if err := g.ensureOutputDir(); err != nil {
		return "", err
	}

	bullets := g.BulletPoints()

	g.mu.Lock()

	suites := make([]jsonSuite, 0, len(g.suites))
	for _, s := range g.suites {
		suites = append(suites, jsonSuite{
			Name:       s.Name,
			Statistics: s.Statistics(),
			Tests:      s.TestCases,
		})
	}

	rep := jsonReport{
		Generated:    g.now(),
		Summary:      g.summaryLocked(),
		Snapshot:     g.snapshot,
		BulletPoints: bullets,
		Issues:       g.issues,
		Screenshots:  g.screenshots,
		Trends:       g.trendsLocked(),
		Suites:       suites,
	}

	g.mu.Unlock()

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}

	path := g.outputPath(filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing report file: %w", err)
	}

	g.log.WithField("path", path).Info("wrote JSON report")

	return path, nil
}

package report

import (
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/betateam/betabench/internal/metrics"
)

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>Benchmark Report</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .summary { background: #f0f0f0; padding: 20px; border-radius: 8px; }
        .stats { display: flex; gap: 20px; margin: 20px 0; }
        .stat-box { background: white; padding: 15px; border-radius: 4px; text-align: center; }
        .passed { color: green; }
        .failed { color: red; }
        .issues { margin-top: 20px; }
        .issue { padding: 10px; margin: 5px 0; border-left: 3px solid; }
        .critical { border-color: red; background: #fff0f0; }
        .high { border-color: orange; background: #fff8f0; }
        .medium { border-color: gold; background: #fffef0; }
        .low { border-color: green; background: #f0fff0; }
        .diff-images { display: flex; gap: 20px; }
        .diff-images img { max-width: 30%; border: 1px solid #ddd; }
    </style>
</head>
<body>
    <h1>Benchmark Report</h1>
    <p>Generated: {{.Generated.Format "2006-01-02 15:04:05"}}</p>

    <div class="summary">
        <h2>Summary</h2>
        <div class="stats">
            <div class="stat-box"><h3>{{.Summary.Statistics.Total}}</h3><p>Total Tests</p></div>
            <div class="stat-box passed"><h3>{{.Summary.Statistics.Passed}}</h3><p>Passed</p></div>
            <div class="stat-box failed"><h3>{{.Summary.Statistics.Failed}}</h3><p>Failed</p></div>
            <div class="stat-box"><h3>{{printf "%.1f" .Summary.Statistics.PassRate}}%</h3><p>Pass Rate</p></div>
        </div>
    </div>

    {{if .Snapshot}}
    <div class="summary">
        <h2>Stability</h2>
        <div class="stats">
            <div class="stat-box"><h3>{{.Snapshot.CrashCount}}</h3><p>Crashes</p></div>
            <div class="stat-box"><h3>{{printf "%.2f" .Snapshot.CrashRatePerHour}}</h3><p>Crashes / Hour</p></div>
            <div class="stat-box"><h3>{{.Snapshot.FlakyTests}}</h3><p>Flaky Tests</p></div>
            <div class="stat-box"><h3>{{printf "%.1f" .Snapshot.P95ResponseMs}} ms</h3><p>p95 Response</p></div>
        </div>
    </div>
    {{end}}

    <div class="issues">
        <h2>Issues ({{len .Issues}})</h2>
        {{range .Issues}}
        <div class="issue {{.Severity}}">
            <strong>{{.Title}}</strong>
            <p>{{.Description}}</p>
            <small>Occurrences: {{.Occurrences}}</small>
        </div>
        {{end}}
    </div>

    {{if .Trends}}
    <div class="summary">
        <h2>Trends</h2>
        <div class="stats">
            <div class="stat-box"><h3>{{.Trends.TotalRuns}}</h3><p>Prior Runs</p></div>
            <div class="stat-box"><h3>{{printf "%.1f" .Trends.AvgPassRate}}%</h3><p>Avg Pass Rate</p></div>
        </div>
        <p>Pass rates: {{range .Trends.PassRates}}{{printf "%.1f%% " .}}{{end}}</p>
    </div>
    {{end}}

    {{if .Screenshots}}
    <div class="issues">
        <h2>Screenshot Diffs</h2>
        {{range .Screenshots}}
        <div class="issue low">
            <strong>{{.Name}}</strong>
            <div class="diff-images">
                <img src="{{.Baseline}}" alt="Baseline">
                <img src="{{.Current}}" alt="Current">
                {{if .Diff}}<img src="{{.Diff}}" alt="Diff">{{end}}
            </div>
        </div>
        {{end}}
    </div>
    {{end}}

    <div class="bullets">
        <h2>Key Points</h2>
        <ul>
        {{range .Bullets}}<li>{{.}}</li>
        {{end}}</ul>
    </div>
</body>
</html>
`

var htmlTemplate = template.Must(template.New("report").Parse(reportTemplate))

type htmlData struct {
	Generated   time.Time
	Summary     *Summary
	Snapshot    *metrics.Snapshot
	Issues      []*Issue
	Screenshots []ScreenshotDiff
	Trends      *Trends
	Bullets     []string
}

// WriteHTML renders the HTML report and returns the path it was
// written to.
func (g *generator) WriteHTML(filename string) (string, error) {
	if err := g.ensureOutputDir(); err != nil {
		return "", err
	}

	bullets := g.BulletPoints()

	g.mu.Lock()
	data := htmlData{
		Generated:   g.now(),
		Summary:     g.summaryLocked(),
		Snapshot:    g.snapshot,
		Issues:      g.issues,
		Screenshots: g.screenshots,
		Trends:      g.trendsLocked(),
		Bullets:     bullets,
	}
	g.mu.Unlock()

	path := g.outputPath(filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	if err := htmlTemplate.Execute(f, data); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}

	g.log.WithField("path", path).Info("wrote HTML report")

	return path, nil
}

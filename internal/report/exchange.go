package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ExchangeWriter emits results in the interchange layout consumed by
// Allure-style report viewers: one <uuid>-result.json per test, plus
// environment.properties and categories.json.
type ExchangeWriter struct {
	log       logrus.FieldLogger
	outputDir string
	now       func() time.Time

	results []exchangeResult
}

type exchangeLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type exchangeStep struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type exchangeAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

type exchangeStatusDetails struct {
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

type exchangeResult struct {
	UUID          string                 `json:"uuid"`
	HistoryID     string                 `json:"historyId"`
	Name          string                 `json:"name"`
	Status        string                 `json:"status"`
	Stage         string                 `json:"stage"`
	Description   string                 `json:"description"`
	Steps         []exchangeStep         `json:"steps"`
	Attachments   []exchangeAttachment   `json:"attachments"`
	Labels        []exchangeLabel        `json:"labels"`
	Start         int64                  `json:"start"`
	Stop          int64                  `json:"stop"`
	StatusDetails *exchangeStatusDetails `json:"statusDetails,omitempty"`
}

// ExchangeCategory maps result statuses to a named defect bucket in
// the viewer.
type ExchangeCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
}

// NewExchangeWriter creates an exchange-bundle writer targeting
// outputDir.
func NewExchangeWriter(log logrus.FieldLogger, outputDir string) *ExchangeWriter {
	return &ExchangeWriter{
		log:       log.WithField("component", "exchange_writer"),
		outputDir: outputDir,
		now:       time.Now,
	}
}

// AddTestCase stages a test case for the bundle. The historyId is the
// stable test name so viewers can track a test across runs while every
// run gets a fresh uuid.
func (w *ExchangeWriter) AddTestCase(tc *TestCase, suiteName string) {
	status := tc.Status
	if status == "error" {
		status = "broken"
	}

	res := exchangeResult{
		UUID:        uuid.New().String(),
		HistoryID:   tc.Name,
		Name:        tc.Name,
		Status:      status,
		Stage:       "finished",
		Description: tc.Description,
		Steps:       make([]exchangeStep, 0, len(tc.Steps)),
		Attachments: make([]exchangeAttachment, 0, len(tc.Attachments)),
		Labels: []exchangeLabel{
			{Name: "suite", Value: suiteName},
			{Name: "host", Value: "localhost"},
		},
	}

	for _, step := range tc.Steps {
		res.Steps = append(res.Steps, exchangeStep{Name: step, Status: "passed"})
	}

	for _, att := range tc.Attachments {
		res.Attachments = append(res.Attachments, exchangeAttachment{
			Name:   att,
			Source: att,
			Type:   "image/png",
		})
	}

	labelNames := make([]string, 0, len(tc.Labels))
	for k := range tc.Labels {
		labelNames = append(labelNames, k)
	}
	sort.Strings(labelNames)

	for _, k := range labelNames {
		res.Labels = append(res.Labels, exchangeLabel{Name: k, Value: tc.Labels[k]})
	}

	// Use the recorded start of the test so the bundle shows the same
	// timeline as the other formats. Staging time is only a fallback
	// for hand-built cases with no timestamp.
	start := w.now().UnixMilli()
	if !tc.StartTime.IsZero() {
		start = tc.StartTime.UnixMilli()
	}
	res.Start = start
	res.Stop = start + int64(tc.DurationMs)

	if tc.ErrorMessage != "" {
		res.StatusDetails = &exchangeStatusDetails{
			Message: tc.ErrorMessage,
			Trace:   tc.StackTrace,
		}
	}

	w.results = append(w.results, res)
}

// AddSuite stages every test case of the suite.
func (w *ExchangeWriter) AddSuite(suite *Suite) {
	for _, tc := range suite.TestCases {
		w.AddTestCase(tc, suite.Name)
	}
}

// WriteResults writes one <uuid>-result.json file per staged test.
func (w *ExchangeWriter) WriteResults() error {
	if err := os.MkdirAll(w.outputDir, 0o750); err != nil {
		return fmt.Errorf("creating exchange directory %s: %w", w.outputDir, err)
	}

	for _, res := range w.results {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result %s: %w", res.Name, err)
		}

		path := filepath.Join(w.outputDir, res.UUID+"-result.json")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("writing result file: %w", err)
		}
	}

	w.log.WithField("results", len(w.results)).Info("wrote exchange results")

	return nil
}

// WriteEnvironment writes environment.properties from the given
// key/value pairs, sorted by key for stable output.
func (w *ExchangeWriter) WriteEnvironment(env map[string]string) error {
	if err := os.MkdirAll(w.outputDir, 0o750); err != nil {
		return fmt.Errorf("creating exchange directory %s: %w", w.outputDir, err)
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	for _, k := range keys {
		buf = append(buf, fmt.Sprintf("%s=%s\n", k, env[k])...)
	}

	path := filepath.Join(w.outputDir, "environment.properties")
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return fmt.Errorf("writing environment file: %w", err)
	}

	return nil
}

// WriteCategories writes categories.json. A nil slice gets the default
// split of product defects (failed) and test defects (broken).
func (w *ExchangeWriter) WriteCategories(categories []ExchangeCategory) error {
	if err := os.MkdirAll(w.outputDir, 0o750); err != nil {
		return fmt.Errorf("creating exchange directory %s: %w", w.outputDir, err)
	}

	if categories == nil {
		categories = []ExchangeCategory{
			{Name: "Product defects", MatchedStatuses: []string{"failed"}},
			{Name: "Test defects", MatchedStatuses: []string{"broken"}},
		}
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding categories: %w", err)
	}

	path := filepath.Join(w.outputDir, "categories.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing categories file: %w", err)
	}

	return nil
}

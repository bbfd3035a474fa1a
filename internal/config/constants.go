package config

const (
	// DefaultScenarioDir is the directory path for scenario files.
	DefaultScenarioDir = "scenarios"
	// DefaultOutputDir is the directory path for generated reports.
	DefaultOutputDir = "reports"
	// DefaultJournalPath is the file path for the durable event journal.
	DefaultJournalPath = "reports/events.jsonl"
	// DefaultHistoryPath is the file path for historical report data.
	DefaultHistoryPath = "reports/history.json"
	// DefaultExchangeDir is the directory path for the exchange bundle.
	DefaultExchangeDir = "reports/exchange"
	// DefaultFeedbackRulesPath is the file path for feedback rule overrides.
	DefaultFeedbackRulesPath = "feedback_rules.json"
	// DefaultSeleniumGridURL is the default Selenium grid endpoint.
	DefaultSeleniumGridURL = "http://localhost:4444/wd/hub"
	// DefaultWinAppDriverURL is the default WinAppDriver endpoint.
	DefaultWinAppDriverURL = "http://localhost:4723"
)

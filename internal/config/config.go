// Package config handles configuration loading and management
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	ScenarioDir       string
	OutputDir         string
	JournalPath       string
	HistoryPath       string
	ExchangeDir       string
	FeedbackRulesPath string
	MinRuns           int
	ConnectAttempts   int
	ConnectTimeout    time.Duration
	Concurrency       int
	SeleniumGridURL   string
	WinAppDriverURL   string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if the file doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		ScenarioDir:       getEnv("SCENARIO_DIR", DefaultScenarioDir),
		OutputDir:         getEnv("OUTPUT_DIR", DefaultOutputDir),
		JournalPath:       getEnv("JOURNAL_PATH", DefaultJournalPath),
		HistoryPath:       getEnv("HISTORY_PATH", DefaultHistoryPath),
		ExchangeDir:       getEnv("EXCHANGE_DIR", DefaultExchangeDir),
		FeedbackRulesPath: getEnv("FEEDBACK_RULES_PATH", DefaultFeedbackRulesPath),
		SeleniumGridURL:   getEnv("SELENIUM_GRID_URL", DefaultSeleniumGridURL),
		WinAppDriverURL:   getEnv("WINAPPDRIVER_URL", DefaultWinAppDriverURL),
	}

	minRuns, err := strconv.Atoi(getEnv("MIN_RUNS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_RUNS: %w", err)
	}
	cfg.MinRuns = minRuns

	attempts, err := strconv.Atoi(getEnv("CONNECT_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONNECT_ATTEMPTS: %w", err)
	}
	cfg.ConnectAttempts = attempts

	timeout, err := time.ParseDuration(getEnv("CONNECT_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONNECT_TIMEOUT: %w", err)
	}
	cfg.ConnectTimeout = timeout

	concurrency, err := strconv.Atoi(getEnv("CONCURRENCY", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONCURRENCY: %w", err)
	}
	cfg.Concurrency = concurrency

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) String() string {
	return fmt.Sprintf(`Current Configuration:
======================
Scenario Dir:       %s
Output Dir:         %s
Journal Path:       %s
History Path:       %s
Exchange Dir:       %s
Min Runs:           %d
Connect Attempts:   %d
Connect Timeout:    %s
Concurrency:        %d
Selenium Grid URL:  %s
WinAppDriver URL:   %s
======================`,
		c.ScenarioDir,
		c.OutputDir,
		c.JournalPath,
		c.HistoryPath,
		c.ExchangeDir,
		c.MinRuns,
		c.ConnectAttempts,
		c.ConnectTimeout,
		c.Concurrency,
		c.SeleniumGridURL,
		c.WinAppDriverURL,
	)
}

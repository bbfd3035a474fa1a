package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FeedbackRule pairs a tester-facing description of an issue with a
// concrete developer action item. Placeholders of the form {element},
// {scenario}, and {email} are substituted when the rule is applied.
type FeedbackRule struct {
	Human string `json:"human"`
	Dev   string `json:"dev"`
}

// Feedback is one rendered feedback entry.
type Feedback struct {
	Type  string `json:"type"`
	Human string `json:"human"`
	Dev   string `json:"dev"`
}

// defaultFeedbackRules is the built-in rule set, used when no rules
// file overrides it.
var defaultFeedbackRules = map[string]FeedbackRule{
	"timeout": {
		Human: "User waited too long for '{element}' to appear. Feels stuck and frustrated.",
		Dev:   "Add loading spinner. Check if {element} exists in DOM. Increase timeout or optimize backend query.",
	},
	"element_not_found": {
		Human: "Couldn't find '{element}' button/field. User can't complete the task.",
		Dev:   "Verify '{element}' selector exists in latest build. Check CSS changes broke locator. Add data-testid.",
	},
	"invalid_email": {
		Human: "Email validation rejected '{email}'. User confused about format rules.",
		Dev:   "Add inline validation message explaining format. Show example 'user@domain.com'. Handle @@ gracefully.",
	},
	"no_welcome": {
		Human: "No 'Welcome' message after signup. User thinks signup failed.",
		Dev:   "Verify success state renders 'Welcome' text. Check API response. Add fallback success indicator.",
	},
	"session_lost": {
		Human: "The application stopped responding mid-test. User loses all progress.",
		Dev:   "Check crash logs for the run. Reproduce under the same scenario and attach a stack trace.",
	},
	"general_fail": {
		Human: "Something broke during '{scenario}'. User experience interrupted.",
		Dev:   "Check {scenario} logs in the report output. Add more specific assertions. Screenshot failure state.",
	},
}

// FeedbackEngine turns raw failure classifications into humanized
// feedback and developer action items.
type FeedbackEngine struct {
	rules map[string]FeedbackRule
}

// NewFeedbackEngine creates an engine with the built-in rules.
func NewFeedbackEngine() *FeedbackEngine {
	rules := make(map[string]FeedbackRule, len(defaultFeedbackRules))
	for k, v := range defaultFeedbackRules {
		rules[k] = v
	}

	return &FeedbackEngine{rules: rules}
}

// LoadRules overlays rules from a JSON file onto the defaults. A
// missing file leaves the defaults untouched.
func (e *FeedbackEngine) LoadRules(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("reading feedback rules: %w", err)
	}

	var loaded map[string]FeedbackRule
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing feedback rules: %w", err)
	}

	for k, v := range loaded {
		e.rules[k] = v
	}

	return nil
}

// Vars holds the substitution values for a feedback rule.
type Vars struct {
	Scenario string
	Element  string
	Email    string
}

// For renders the feedback for an issue type, falling back to
// general_fail when the type has no rule.
func (e *FeedbackEngine) For(issueType string, vars Vars) Feedback {
	rule, ok := e.rules[issueType]
	if !ok {
		rule = e.rules["general_fail"]
	}

	if vars.Element == "" {
		vars.Element = "UI"
	}

	return Feedback{
		Type:  issueType,
		Human: substitute(rule.Human, vars),
		Dev:   substitute(rule.Dev, vars),
	}
}

// Classify inspects a failure message and picks the matching issue
// type.
func (e *FeedbackEngine) Classify(errorMessage string) string {
	msg := strings.ToLower(errorMessage)

	switch {
	case strings.Contains(msg, "session lost") || strings.Contains(msg, "session gone"):
		return "session_lost"
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "not found") || strings.Contains(msg, "no such element"):
		return "element_not_found"
	case strings.Contains(msg, "email"):
		return "invalid_email"
	case strings.Contains(msg, "welcome"):
		return "no_welcome"
	default:
		return "general_fail"
	}
}

func substitute(text string, vars Vars) string {
	r := strings.NewReplacer(
		"{scenario}", vars.Scenario,
		"{element}", vars.Element,
		"{email}", vars.Email,
	)

	return r.Replace(text)
}

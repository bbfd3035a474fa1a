package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackEngine_Classify(t *testing.T) {
	t.Parallel()

	engine := NewFeedbackEngine()

	tests := []struct {
		message string
		want    string
	}{
		{"backend session lost", "session_lost"},
		{"session gone: window closed", "session_lost"},
		{"timeout waiting for #welcome", "timeout"},
		{"context deadline exceeded", "timeout"},
		{"element not found: #submit", "element_not_found"},
		{"no such element: sign-up button", "element_not_found"},
		{"email rejected by validator", "invalid_email"},
		{"expected welcome banner", "no_welcome"},
		{"something unexpected happened", "general_fail"},
		{"", "general_fail"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, engine.Classify(tt.message), tt.message)
	}
}

func TestFeedbackEngine_SubstitutesVariables(t *testing.T) {
	t.Parallel()

	engine := NewFeedbackEngine()

	fb := engine.For("element_not_found", Vars{Scenario: "signup_flow", Element: "Sign Up button"})

	assert.Equal(t, "element_not_found", fb.Type)
	assert.Contains(t, fb.Human, "'Sign Up button'")
	assert.Contains(t, fb.Dev, "'Sign Up button'")
	assert.NotContains(t, fb.Human, "{element}")
}

func TestFeedbackEngine_ElementDefaultsToUI(t *testing.T) {
	t.Parallel()

	fb := NewFeedbackEngine().For("timeout", Vars{Scenario: "login_flow"})

	assert.Contains(t, fb.Human, "'UI'")
}

func TestFeedbackEngine_UnknownTypeFallsBack(t *testing.T) {
	t.Parallel()

	fb := NewFeedbackEngine().For("cosmic_rays", Vars{Scenario: "login_flow"})

	assert.Equal(t, "cosmic_rays", fb.Type)
	assert.Contains(t, fb.Human, "'login_flow'")
}

func TestFeedbackEngine_LoadRulesOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "timeout": {"human": "Custom: {scenario} hung", "dev": "Profile {scenario}"}
}`), 0o600))

	engine := NewFeedbackEngine()
	require.NoError(t, engine.LoadRules(path))

	fb := engine.For("timeout", Vars{Scenario: "export_flow"})
	assert.Equal(t, "Custom: export_flow hung", fb.Human)
	assert.Equal(t, "Profile export_flow", fb.Dev)

	// Untouched defaults survive an overlay.
	fallback := engine.For("no_welcome", Vars{})
	assert.NotEmpty(t, fallback.Human)
}

func TestFeedbackEngine_LoadRulesMissingFile(t *testing.T) {
	t.Parallel()

	engine := NewFeedbackEngine()
	require.NoError(t, engine.LoadRules(filepath.Join(t.TempDir(), "absent.json")))

	fb := engine.For("timeout", Vars{})
	assert.NotEmpty(t, fb.Human)
}

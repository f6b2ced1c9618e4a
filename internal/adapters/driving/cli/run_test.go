package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standupScenario = `
name = "standup"
chunk_interval_ms = 5

[[utterance]]
source = "mic"
revisions = ["We should", "We should ship the release on Friday"]

[[utterance]]
source = "system"
revisions = ["Agreed"]

[[response]]
action = "follow-up-action"
text = "Send the release notes"

[[trigger]]
action = "follow-up-action"
after_finals = 2

[[key_point]]
text = "Release Friday"
after_finals = 1
`

const autoScenario = `
name = "auto"
chunk_interval_ms = 5

[autosuggest]
enabled = true
min_interval_ms = 0
min_new_segments = 1
actions = ["talking-point"]

[[utterance]]
source = "mic"
revisions = ["First point"]

[[utterance]]
source = "mic"
revisions = ["Second point"]

[[response]]
action = "talking-point"
text = "Ask about the budget"
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunCmd_Use(t *testing.T) {
	assert.Equal(t, "run <scenario.toml>", runCmd.Use)
}

func TestRunCmd_PrintsLiveEvents(t *testing.T) {
	withConfig(t, Config{NewSession: testSessionFactory})
	path := writeScenario(t, standupScenario)

	out, err := executeCommand(t, "run", path, "--timeout", "10s")

	require.NoError(t, err)
	assert.Contains(t, out, "[mic] We should ship the release on Friday")
	assert.Contains(t, out, "[system] Agreed")
	assert.Contains(t, out, "Key point: Release Friday")
	assert.Contains(t, out, "Send the release notes")
	assert.Contains(t, out, "2 final segments")
	assert.NotContains(t, out, "We should ...")
}

func TestRunCmd_JSON(t *testing.T) {
	withConfig(t, Config{NewSession: testSessionFactory})
	path := writeScenario(t, standupScenario)

	out, err := executeCommand(t, "run", path, "--json", "--timeout", "10s")
	require.NoError(t, err)

	var result runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "standup", result.Scenario)
	assert.NotEmpty(t, result.Context.SessionID)
	assert.NotEmpty(t, result.Context.EndedAt)

	finals := 0
	for _, seg := range result.Context.Segments {
		if seg.IsFinal {
			finals++
		}
	}
	assert.Equal(t, 2, finals)

	var texts []string
	for _, kp := range result.Context.KeyPoints {
		texts = append(texts, kp.Text)
	}
	assert.Contains(t, texts, "Release Friday")

	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, "follow-up-action", result.Suggestions[0].Action)
	assert.Equal(t, "manual", result.Suggestions[0].Origin)
	assert.Equal(t, "Send the release notes", result.Suggestions[0].Result)
}

func TestRunCmd_AutoSuggestOverride(t *testing.T) {
	withConfig(t, Config{NewSession: testSessionFactory})
	path := writeScenario(t, autoScenario)

	out, err := executeCommand(t, "run", path, "--json", "--timeout", "10s")
	require.NoError(t, err)

	var result runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotEmpty(t, result.Suggestions)
	for _, s := range result.Suggestions {
		assert.Equal(t, "auto", s.Origin)
		assert.Equal(t, "Ask about the budget", s.Result)
	}
}

func TestRunCmd_Errors(t *testing.T) {
	t.Run("no session factory", func(t *testing.T) {
		withConfig(t, Config{})
		_, err := executeCommand(t, "run", writeScenario(t, standupScenario))
		assert.EqualError(t, err, "session factory not configured")
	})

	t.Run("missing scenario", func(t *testing.T) {
		withConfig(t, Config{NewSession: testSessionFactory})
		_, err := executeCommand(t, "run", filepath.Join(t.TempDir(), "nope.toml"))
		assert.ErrorContains(t, err, "read scenario")
	})

	t.Run("invalid scenario", func(t *testing.T) {
		withConfig(t, Config{NewSession: testSessionFactory})
		_, err := executeCommand(t, "run", writeScenario(t, "[[utterance]]\nsource = \"radio\"\nrevisions = [\"x\"]\n"))
		assert.Error(t, err)
	})

	t.Run("requires one argument", func(t *testing.T) {
		_, err := executeCommand(t, "run")
		assert.Error(t, err)
	})
}

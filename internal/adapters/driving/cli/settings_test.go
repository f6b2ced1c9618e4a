package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/parley/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSettingsShow(t *testing.T) {
	withConfig(t, Config{SettingsService: newTestSettings(map[string]any{
		"autosuggest.enabled":          true,
		"autosuggest.min_new_segments": int64(2),
		"ai.api_key":                   "sk-1234567890abcdef",
	})})

	out, err := executeCommand(t, "settings", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Enabled: yes")
	assert.Contains(t, out, "Min interval: 15s")
	assert.Contains(t, out, "Min new segments: 2")
	assert.Contains(t, out, "Actions: talking-point")
	assert.Contains(t, out, "API Key: sk-1...cdef")
	assert.Contains(t, out, "API Key: (not set)")
	assert.Contains(t, out, "Level interval: 100ms")
}

func TestSettingsAutoSuggest(t *testing.T) {
	settings := newTestSettings(nil)
	withConfig(t, Config{SettingsService: settings})

	out, err := executeCommand(t, "settings", "autosuggest",
		"--enable", "--interval", "20s", "--min-segments", "2", "--actions", "talking-point,custom")

	require.NoError(t, err)
	assert.Contains(t, out, "Auto-suggest enabled: every 20s after 2 new segments (talking-point, custom)")

	saved, err := settings.Get()
	require.NoError(t, err)
	assert.True(t, saved.AutoSuggest.Enabled)
	assert.Equal(t, 20*time.Second, saved.AutoSuggest.MinInterval)
	assert.Equal(t, 2, saved.AutoSuggest.MinNewSegments)
	assert.Equal(t, []domain.ActionType{domain.ActionTalkingPoint, domain.ActionCustom}, saved.AutoSuggest.Actions)

	// Unchanged flags keep their saved values.
	out, err = executeCommand(t, "settings", "autosuggest", "--disable")

	require.NoError(t, err)
	assert.Contains(t, out, "Auto-suggest disabled: every 20s after 2 new segments")
}

func TestSettingsAutoSuggest_Invalid(t *testing.T) {
	withConfig(t, Config{SettingsService: newTestSettings(nil)})

	_, err := executeCommand(t, "settings", "autosuggest", "--actions", "poem")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = executeCommand(t, "settings", "autosuggest", "--interval=-1s")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsAPIKey_Remove(t *testing.T) {
	settings := newTestSettings(map[string]any{
		"stt.api_key": "dg-1234567890",
	})
	withConfig(t, Config{SettingsService: settings})

	out, err := executeCommand(t, "settings", "api-key", "stt", "--remove")

	require.NoError(t, err)
	assert.Contains(t, out, "Removed stt API key.")
	saved, err := settings.Get()
	require.NoError(t, err)
	assert.Empty(t, saved.STT.APIKey)
}

func TestSettingsAPIKey_UnknownProvider(t *testing.T) {
	withConfig(t, Config{SettingsService: newTestSettings(nil)})

	_, err := executeCommand(t, "settings", "api-key", "llm", "--remove")

	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestSettings_NotConfigured(t *testing.T) {
	withConfig(t, Config{})

	for _, args := range [][]string{
		{"settings", "show"},
		{"settings", "autosuggest", "--enable"},
		{"settings", "api-key", "ai", "--remove"},
	} {
		_, err := executeCommand(t, args...)
		assert.EqualError(t, err, "settings service not configured")
	}
}

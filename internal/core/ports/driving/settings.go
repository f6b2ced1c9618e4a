package driving

import "github.com/custodia-labs/parley/internal/core/domain"

// SettingsService manages persisted application settings.
type SettingsService interface {
	// Get retrieves current settings, filling defaults for unset keys.
	Get() (*domain.AppSettings, error)

	// Save validates and persists all settings.
	Save(settings *domain.AppSettings) error

	// SetAutoSuggest persists the auto-suggest configuration.
	SetAutoSuggest(cfg domain.AutoSuggestConfig) error

	// SetAPIKey persists a provider key. An empty key removes it.
	SetAPIKey(provider domain.ProviderKind, key string) error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}

package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
	"github.com/custodia-labs/parley/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyAutoEnabled     = "autosuggest.enabled"
	keyAutoIntervalMS  = "autosuggest.min_interval_ms"
	keyAutoMinSegments = "autosuggest.min_new_segments"
	keyAutoActions     = "autosuggest.actions"
	keyAutoOptions     = "autosuggest.options."
	keyAITimeoutMS     = "ai.request_timeout_ms"
	keyAIAPIKey        = "ai.api_key"
	keySTTAPIKey       = "stt.api_key"
	keyLevelIntervalMS = "audio.level_interval_ms"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings. Unset or malformed values
// fall back to their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		AutoSuggest: domain.AutoSuggestConfig{
			Enabled:        s.getBool(keyAutoEnabled, defaults.AutoSuggest.Enabled),
			MinInterval:    s.getMillis(keyAutoIntervalMS, defaults.AutoSuggest.MinInterval),
			MinNewSegments: s.getInt(keyAutoMinSegments, defaults.AutoSuggest.MinNewSegments),
			Actions:        s.getActions(defaults.AutoSuggest.Actions),
			Options:        s.getOptions(),
		},
		AI: domain.AISettings{
			APIKey:         s.configStore.GetString(keyAIAPIKey),
			RequestTimeout: s.getMillis(keyAITimeoutMS, defaults.AI.RequestTimeout),
		},
		STT: domain.STTSettings{
			APIKey: s.configStore.GetString(keySTTAPIKey),
		},
		Audio: domain.AudioSettings{
			LevelInterval: s.getMillis(keyLevelIntervalMS, defaults.Audio.LevelInterval),
		},
	}

	return settings, nil
}

// Save validates and persists application settings.
// Empty API keys are left untouched.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if settings == nil {
		return fmt.Errorf("%w: settings are required", domain.ErrInvalidInput)
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := s.saveAutoSuggest(settings.AutoSuggest); err != nil {
		return err
	}
	if err := s.configStore.Set(keyAITimeoutMS, settings.AI.RequestTimeout.Milliseconds()); err != nil {
		return fmt.Errorf("save ai request_timeout_ms: %w", err)
	}
	if err := s.configStore.Set(keyLevelIntervalMS, settings.Audio.LevelInterval.Milliseconds()); err != nil {
		return fmt.Errorf("save audio level_interval_ms: %w", err)
	}
	if settings.AI.APIKey != "" {
		if err := s.configStore.Set(keyAIAPIKey, settings.AI.APIKey); err != nil {
			return fmt.Errorf("save ai api_key: %w", err)
		}
	}
	if settings.STT.APIKey != "" {
		if err := s.configStore.Set(keySTTAPIKey, settings.STT.APIKey); err != nil {
			return fmt.Errorf("save stt api_key: %w", err)
		}
	}

	return nil
}

// SetAutoSuggest validates and persists the auto-suggest configuration.
func (s *SettingsService) SetAutoSuggest(cfg domain.AutoSuggestConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.saveAutoSuggest(cfg)
}

// SetAPIKey persists a provider key. An empty key removes it.
func (s *SettingsService) SetAPIKey(provider domain.ProviderKind, key string) error {
	var configKey string
	switch provider {
	case domain.ProviderAI:
		configKey = keyAIAPIKey
	case domain.ProviderSTT:
		configKey = keySTTAPIKey
	default:
		return fmt.Errorf("%w: provider %q", domain.ErrUnsupportedType, provider)
	}

	if key == "" {
		if err := s.configStore.Delete(configKey); err != nil {
			return fmt.Errorf("remove %s: %w", configKey, err)
		}
		return nil
	}
	if err := s.configStore.Set(configKey, key); err != nil {
		return fmt.Errorf("save %s: %w", configKey, err)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (s *SettingsService) saveAutoSuggest(cfg domain.AutoSuggestConfig) error {
	if err := s.configStore.Set(keyAutoEnabled, cfg.Enabled); err != nil {
		return fmt.Errorf("save autosuggest enabled: %w", err)
	}
	if err := s.configStore.Set(keyAutoIntervalMS, cfg.MinInterval.Milliseconds()); err != nil {
		return fmt.Errorf("save autosuggest min_interval_ms: %w", err)
	}
	if err := s.configStore.Set(keyAutoMinSegments, int64(cfg.MinNewSegments)); err != nil {
		return fmt.Errorf("save autosuggest min_new_segments: %w", err)
	}

	actions := make([]string, len(cfg.Actions))
	for i, a := range cfg.Actions {
		actions[i] = a.String()
	}
	if err := s.configStore.Set(keyAutoActions, actions); err != nil {
		return fmt.Errorf("save autosuggest actions: %w", err)
	}

	for k, v := range cfg.Options {
		if err := s.configStore.Set(keyAutoOptions+k, v); err != nil {
			return fmt.Errorf("save autosuggest option %s: %w", k, err)
		}
	}
	return nil
}

// Helper methods for reading config with defaults

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	if v := s.configStore.GetInt(key); v >= 0 {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); exists {
		return s.configStore.GetBool(key)
	}
	return defaultVal
}

// getMillis reads an integer millisecond value as a duration.
func (s *SettingsService) getMillis(key string, defaultVal time.Duration) time.Duration {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	ms := s.configStore.GetInt(key)
	if ms < 0 {
		return defaultVal
	}
	return time.Duration(ms) * time.Millisecond
}

// getActions drops unknown action names. An empty result selects the defaults.
func (s *SettingsService) getActions(defaultVal []domain.ActionType) []domain.ActionType {
	names := s.configStore.GetStringSlice(keyAutoActions)
	actions := make([]domain.ActionType, 0, len(names))
	for _, name := range names {
		if a, err := domain.ParseActionType(name); err == nil {
			actions = append(actions, a)
		}
	}
	if len(actions) == 0 {
		return append([]domain.ActionType(nil), defaultVal...)
	}
	return actions
}

// getOptions collects the string values stored under autosuggest.options.
func (s *SettingsService) getOptions() map[string]string {
	var opts map[string]string
	for _, key := range s.configStore.Keys() {
		name, ok := strings.CutPrefix(key, keyAutoOptions)
		if !ok || name == "" {
			continue
		}
		if opts == nil {
			opts = make(map[string]string)
		}
		opts[name] = s.configStore.GetString(key)
	}
	return opts
}

package domain

import (
	"fmt"
	"time"
)

// ProviderKind identifies which external provider a credential belongs to.
type ProviderKind string

// Provider kinds.
const (
	ProviderSTT ProviderKind = "stt"
	ProviderAI  ProviderKind = "ai"
)

// IsValid returns true if the provider kind is recognised.
func (p ProviderKind) IsValid() bool {
	return p == ProviderSTT || p == ProviderAI
}

// ParseProviderKind parses "stt" or "ai".
func ParseProviderKind(s string) (ProviderKind, error) {
	p := ProviderKind(s)
	if !p.IsValid() {
		return "", fmt.Errorf("%w: provider %q", ErrUnsupportedType, s)
	}
	return p, nil
}

// AISettings configures the AI backend.
type AISettings struct {
	APIKey string
	// RequestTimeout fails a request with no activity within this bound.
	RequestTimeout time.Duration
}

// STTSettings configures the speech-to-text provider.
type STTSettings struct {
	APIKey string
}

// AudioSettings configures ingestion.
type AudioSettings struct {
	// LevelInterval is the minimum gap between level ticks per source.
	LevelInterval time.Duration
}

// AppSettings holds all user-configurable settings.
type AppSettings struct {
	AutoSuggest AutoSuggestConfig
	AI          AISettings
	STT         STTSettings
	Audio       AudioSettings
}

// DefaultAppSettings returns settings used when nothing is configured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		AutoSuggest: DefaultAutoSuggestConfig(),
		AI: AISettings{
			RequestTimeout: 30 * time.Second,
		},
		Audio: AudioSettings{
			LevelInterval: 100 * time.Millisecond,
		},
	}
}

// Validate checks the settings are usable.
func (s AppSettings) Validate() error {
	if err := s.AutoSuggest.Validate(); err != nil {
		return err
	}
	if s.AI.RequestTimeout < 0 {
		return fmt.Errorf("%w: request timeout must not be negative", ErrInvalidInput)
	}
	if s.Audio.LevelInterval < 0 {
		return fmt.Errorf("%w: level interval must not be negative", ErrInvalidInput)
	}
	return nil
}

// APIKey returns the configured key for a provider.
func (s AppSettings) APIKey(p ProviderKind) string {
	switch p {
	case ProviderSTT:
		return s.STT.APIKey
	case ProviderAI:
		return s.AI.APIKey
	default:
		return ""
	}
}

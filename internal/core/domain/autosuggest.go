package domain

import (
	"fmt"
	"time"
)

// AutoSuggestConfig controls when suggestions fire without user action.
// A trigger needs MinNewSegments final segments since the last trigger AND
// MinInterval elapsed since the last trigger.
type AutoSuggestConfig struct {
	Enabled        bool
	MinInterval    time.Duration
	MinNewSegments int
	// Actions are submitted together on every trigger.
	Actions []ActionType
	// Options carries provider-specific extras passed as request metadata.
	Options map[string]string
}

// DefaultAutoSuggestConfig returns the configuration used when none is set.
func DefaultAutoSuggestConfig() AutoSuggestConfig {
	return AutoSuggestConfig{
		Enabled:        false,
		MinInterval:    15 * time.Second,
		MinNewSegments: 3,
		Actions:        []ActionType{ActionTalkingPoint},
	}
}

// Validate checks the configuration is usable.
func (c AutoSuggestConfig) Validate() error {
	if c.MinInterval < 0 {
		return fmt.Errorf("%w: min interval must not be negative", ErrInvalidInput)
	}
	if c.MinNewSegments < 0 {
		return fmt.Errorf("%w: min new segments must not be negative", ErrInvalidInput)
	}
	for _, a := range c.Actions {
		if !a.IsValid() {
			return fmt.Errorf("%w: action type %q", ErrUnsupportedType, a)
		}
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c AutoSuggestConfig) Clone() AutoSuggestConfig {
	c.Actions = append([]ActionType(nil), c.Actions...)
	if c.Options != nil {
		opts := make(map[string]string, len(c.Options))
		for k, v := range c.Options {
			opts[k] = v
		}
		c.Options = opts
	}
	return c
}

package sim

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/parley/internal/core/domain"
)

// Scenario is a scripted meeting.
//
//	name = "standup"
//	chunk_interval_ms = 20
//
//	[[utterance]]
//	source = "mic"
//	revisions = ["Hello", "Hello everyone"]
//
//	[[response]]
//	action = "talking-point"
//	text = "Ask who is blocked"
type Scenario struct {
	Name            string `toml:"name"`
	ChunkIntervalMS int    `toml:"chunk_interval_ms"`
	ChunkBytes      int    `toml:"chunk_bytes"`
	AIChunkDelayMS  int    `toml:"ai_chunk_delay_ms"`

	AutoSuggest *ScenarioAutoSuggest `toml:"autosuggest"`
	Disconnect  *ScenarioDisconnect  `toml:"disconnect"`

	Utterances []Utterance `toml:"utterance"`
	Responses  []Response  `toml:"response"`
	Triggers   []Trigger   `toml:"trigger"`
	KeyPoints  []KeyPoint  `toml:"key_point"`
}

// ScenarioAutoSuggest overrides the auto-suggest settings for a run.
type ScenarioAutoSuggest struct {
	Enabled        bool     `toml:"enabled"`
	MinIntervalMS  int      `toml:"min_interval_ms"`
	MinNewSegments int      `toml:"min_new_segments"`
	Actions        []string `toml:"actions"`
}

// ScenarioDisconnect drops the STT link after a number of final results.
type ScenarioDisconnect struct {
	AfterFinals      int `toml:"after_finals"`
	ReconnectAfterMS int `toml:"reconnect_after_ms"`
}

// Utterance is one spoken phrase. Each revision is one STT result; the
// last revision is final.
type Utterance struct {
	Source    string   `toml:"source"`
	Revisions []string `toml:"revisions"`
}

// Response is the scripted AI output for an action type. A non-empty
// Error fails the request after the first chunk.
type Response struct {
	Action string `toml:"action"`
	Text   string `toml:"text"`
	Error  string `toml:"error"`
}

// Trigger fires a manual action once the given number of final segments exist.
type Trigger struct {
	Action      string            `toml:"action"`
	AfterFinals int               `toml:"after_finals"`
	Metadata    map[string]string `toml:"metadata"`
}

// KeyPoint is added manually once the given number of final segments exist.
type KeyPoint struct {
	Text        string `toml:"text"`
	AfterFinals int    `toml:"after_finals"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a TOML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: scenario: %w", domain.ErrInvalidInput, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks sources, action types and counts.
func (s *Scenario) Validate() error {
	if s.ChunkIntervalMS < 0 || s.ChunkBytes < 0 || s.AIChunkDelayMS < 0 {
		return fmt.Errorf("%w: scenario intervals must not be negative", domain.ErrInvalidInput)
	}
	for i, u := range s.Utterances {
		if _, err := domain.ParseAudioSource(u.Source); err != nil {
			return fmt.Errorf("utterance %d: %w", i+1, err)
		}
		if len(u.Revisions) == 0 {
			return fmt.Errorf("%w: utterance %d has no revisions", domain.ErrInvalidInput, i+1)
		}
	}
	for i, r := range s.Responses {
		if _, err := domain.ParseActionType(r.Action); err != nil {
			return fmt.Errorf("response %d: %w", i+1, err)
		}
	}
	for i, t := range s.Triggers {
		if _, err := domain.ParseActionType(t.Action); err != nil {
			return fmt.Errorf("trigger %d: %w", i+1, err)
		}
	}
	if s.AutoSuggest != nil {
		if _, err := s.AutoSuggestConfig(domain.DefaultAutoSuggestConfig()); err != nil {
			return err
		}
	}
	return nil
}

// ChunkInterval returns the capture interval, 20ms when unset.
func (s *Scenario) ChunkInterval() time.Duration {
	if s.ChunkIntervalMS == 0 {
		return 20 * time.Millisecond
	}
	return time.Duration(s.ChunkIntervalMS) * time.Millisecond
}

// AIChunkDelay returns the gap between streamed AI chunks.
func (s *Scenario) AIChunkDelay() time.Duration {
	return time.Duration(s.AIChunkDelayMS) * time.Millisecond
}

// FinalCount returns how many final segments the scenario produces.
func (s *Scenario) FinalCount() int {
	return len(s.Utterances)
}

// AutoSuggestConfig applies the scenario's overrides to base.
func (s *Scenario) AutoSuggestConfig(base domain.AutoSuggestConfig) (domain.AutoSuggestConfig, error) {
	cfg := base.Clone()
	if s.AutoSuggest == nil {
		return cfg, nil
	}
	cfg.Enabled = s.AutoSuggest.Enabled
	cfg.MinInterval = time.Duration(s.AutoSuggest.MinIntervalMS) * time.Millisecond
	cfg.MinNewSegments = s.AutoSuggest.MinNewSegments
	if len(s.AutoSuggest.Actions) > 0 {
		cfg.Actions = cfg.Actions[:0]
		for _, name := range s.AutoSuggest.Actions {
			a, err := domain.ParseActionType(name)
			if err != nil {
				return domain.AutoSuggestConfig{}, fmt.Errorf("autosuggest: %w", err)
			}
			cfg.Actions = append(cfg.Actions, a)
		}
	}
	if err := cfg.Validate(); err != nil {
		return domain.AutoSuggestConfig{}, err
	}
	return cfg, nil
}

// Providers builds fresh simulators for the scenario.
func (s *Scenario) Providers() (*Capture, *STT, *AI) {
	capture := NewCapture(s.ChunkInterval(), s.ChunkBytes)
	stt := NewSTT(s.Utterances)
	if s.Disconnect != nil {
		stt.DisconnectAfter(s.Disconnect.AfterFinals, time.Duration(s.Disconnect.ReconnectAfterMS)*time.Millisecond)
	}
	ai := NewAI(s.Responses, s.AIChunkDelay())
	return capture, stt, ai
}

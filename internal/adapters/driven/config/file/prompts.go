package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads AI action prompts from user-editable files on disk,
// one <action>.txt per action type, falling back to embedded defaults.
//
// The directory is created lazily on first Load, not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[domain.ActionType]string
	initOnce  sync.Once
	initErr   error
}

//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[domain.ActionType]string{
	domain.ActionTalkingPoint: `You are assisting someone in a live meeting. Based on the conversation so far, suggest two or three short talking points they could raise next.

Conversation:
%s`,

	domain.ActionFollowUpAction: `You are assisting someone in a live meeting. List the concrete follow-up actions implied by the conversation so far, each with an owner if one was named.

Conversation:
%s`,

	domain.ActionCustom: `You are assisting someone in a live meeting. Answer their request using the conversation so far.

Conversation:
%s`,
}

// NewPromptStore creates a file-based prompt store.
// If promptDir is empty, defaults to ~/.parley/prompts/.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(dir, "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[domain.ActionType]string),
	}, nil
}

// Load returns the prompt template for an action, preferring the user's
// file over the embedded default.
func (s *PromptStore) Load(action domain.ActionType) (string, error) {
	if !action.IsValid() {
		return "", fmt.Errorf("%w: action type %q", domain.ErrUnsupportedType, action)
	}

	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		return defaultPrompts[action], nil
	}

	s.mu.RLock()
	prompt, ok := s.cache[action]
	s.mu.RUnlock()
	if ok {
		return prompt, nil
	}

	prompt, err := s.loadFromFile(action)
	if err != nil || prompt == "" {
		prompt = defaultPrompts[action]
	}

	s.mu.Lock()
	if cached, ok := s.cache[action]; ok {
		prompt = cached
	} else {
		s.cache[action] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[domain.ActionType]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and writes default files that
// do not exist yet.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for action, content := range defaultPrompts {
		path := s.path(action)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", action, err)
				return
			}
		}
	}
}

func (s *PromptStore) loadFromFile(action domain.ActionType) (string, error) {
	data, err := os.ReadFile(s.path(action))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *PromptStore) path(action domain.ActionType) string {
	return filepath.Join(s.promptDir, string(action)+".txt")
}

package driven

import "github.com/custodia-labs/parley/internal/core/domain"

// PromptStore provides the prompt template for each AI action.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the template for an action. Templates take one %s
	// placeholder for the rendered meeting context.
	Load(action domain.ActionType) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// PromptStoreAware is implemented by AI backends whose prompts can be
// customised after construction.
type PromptStoreAware interface {
	SetPromptStore(store PromptStore)
}

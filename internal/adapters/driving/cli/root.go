// Package cli provides the Cobra command tree for Parley.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
	"github.com/custodia-labs/parley/internal/core/ports/driving"
	"github.com/custodia-labs/parley/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Realtime meeting context engine",
	Long: `Parley listens to a meeting, keeps a live transcript and key points,
and asks an AI backend for talking points and follow-up actions.

Run a scripted meeting with 'parley run', or expose the engine to an AI
assistant with 'parley mcp serve'.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

// Providers are the driven collaborators of one session controller.
type Providers struct {
	Capture driven.AudioCaptureProvider
	STT     driven.STTProvider
	AI      driven.AIBackend
}

// SessionFactory builds a session controller over the given providers.
// A non-nil autoSuggest replaces the persisted auto-suggest settings for
// the lifetime of the controller without saving them.
type SessionFactory func(p Providers, autoSuggest *domain.AutoSuggestConfig) (driving.SessionService, error)

// Config holds the services the commands run against.
type Config struct {
	SettingsService driving.SettingsService
	Prompts         driven.PromptStore
	NewSession      SessionFactory
}

var (
	settingsService driving.SettingsService
	promptStore     driven.PromptStore
	newSession      SessionFactory
)

// SetConfig sets the services used by the commands.
func SetConfig(cfg Config) {
	settingsService = cfg.SettingsService
	promptStore = cfg.Prompts
	newSession = cfg.NewSession
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stderr")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/parley/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driving"
	"github.com/custodia-labs/parley/internal/core/services"
)

// executeCommand runs the root command with args and returns everything
// written to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its subcommands to its default,
// since command flags are package state shared between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// withConfig installs cfg for the duration of the test.
func withConfig(t *testing.T, cfg Config) {
	t.Helper()
	old := Config{
		SettingsService: settingsService,
		Prompts:         promptStore,
		NewSession:      newSession,
	}
	SetConfig(cfg)
	t.Cleanup(func() { SetConfig(old) })
}

func newTestSettings(seed map[string]any) *services.SettingsService {
	return services.NewSettingsService(memory.NewConfigStore(seed))
}

func testSessionFactory(p Providers, auto *domain.AutoSuggestConfig) (driving.SessionService, error) {
	cfg := services.ControllerConfig{
		AutoSuggest:    domain.DefaultAutoSuggestConfig(),
		RequestTimeout: 5 * time.Second,
	}
	if auto != nil {
		cfg.AutoSuggest = *auto
	}
	return services.NewSessionController(p.Capture, p.STT, p.AI, cfg)
}

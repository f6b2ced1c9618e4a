package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/parley/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure auto-suggest, provider API keys, and other options.

Settings are stored in ~/.parley/config.toml. A running 'parley mcp serve'
picks up changes to that file without restarting.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsAutoSuggestCmd = &cobra.Command{
	Use:   "autosuggest",
	Short: "Configure automatic suggestions",
	Long: `Configure when suggestions are requested without a manual trigger.

A trigger fires once at least --min-segments new final segments exist and
at least --interval has passed since the previous trigger.

Examples:
  parley settings autosuggest --enable
  parley settings autosuggest --interval 20s --min-segments 2
  parley settings autosuggest --actions talking-point,follow-up-action`,
	RunE: runSettingsAutoSuggest,
}

var settingsAPIKeyCmd = &cobra.Command{
	Use:   "api-key <stt|ai>",
	Short: "Set a provider API key",
	Long: `Set the API key for the speech-to-text or AI provider.

The key is read from the terminal without echo. Pass --remove to delete it.`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsAPIKey,
}

var (
	autoEnable      bool
	autoDisable     bool
	autoInterval    time.Duration
	autoMinSegments int
	autoActions     []string
	apiKeyRemove    bool
)

func init() {
	settingsAutoSuggestCmd.Flags().BoolVar(&autoEnable, "enable", false, "turn auto-suggest on")
	settingsAutoSuggestCmd.Flags().BoolVar(&autoDisable, "disable", false, "turn auto-suggest off")
	settingsAutoSuggestCmd.Flags().DurationVar(&autoInterval, "interval", 0, "minimum time between triggers")
	settingsAutoSuggestCmd.Flags().IntVar(&autoMinSegments, "min-segments", 0, "new final segments needed per trigger")
	settingsAutoSuggestCmd.Flags().StringSliceVar(&autoActions, "actions", nil, "action types submitted on each trigger")
	settingsAutoSuggestCmd.MarkFlagsMutuallyExclusive("enable", "disable")

	settingsAPIKeyCmd.Flags().BoolVar(&apiKeyRemove, "remove", false, "delete the stored key")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsAutoSuggestCmd)
	settingsCmd.AddCommand(settingsAPIKeyCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Auto-suggest]")
	if settings.AutoSuggest.Enabled {
		cmd.Printf("  Enabled: yes\n")
	} else {
		cmd.Printf("  Enabled: no\n")
	}
	cmd.Printf("  Min interval: %s\n", settings.AutoSuggest.MinInterval)
	cmd.Printf("  Min new segments: %d\n", settings.AutoSuggest.MinNewSegments)
	cmd.Printf("  Actions: %s\n", joinActions(settings.AutoSuggest.Actions))
	for k, v := range settings.AutoSuggest.Options {
		cmd.Printf("  Option %s: %s\n", k, v)
	}
	cmd.Println()

	cmd.Println("[AI]")
	cmd.Printf("  API Key: %s\n", describeKey(settings.AI.APIKey))
	cmd.Printf("  Request timeout: %s\n", settings.AI.RequestTimeout)
	cmd.Println()

	cmd.Println("[Speech-to-text]")
	cmd.Printf("  API Key: %s\n", describeKey(settings.STT.APIKey))
	cmd.Println()

	cmd.Println("[Audio]")
	cmd.Printf("  Level interval: %s\n", settings.Audio.LevelInterval)

	return nil
}

func runSettingsAutoSuggest(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cfg := settings.AutoSuggest.Clone()
	flags := cmd.Flags()
	switch {
	case autoEnable:
		cfg.Enabled = true
	case autoDisable:
		cfg.Enabled = false
	}
	if flags.Changed("interval") {
		cfg.MinInterval = autoInterval
	}
	if flags.Changed("min-segments") {
		cfg.MinNewSegments = autoMinSegments
	}
	if flags.Changed("actions") {
		cfg.Actions = cfg.Actions[:0]
		for _, name := range autoActions {
			action, err := domain.ParseActionType(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			cfg.Actions = append(cfg.Actions, action)
		}
	}

	if err := settingsService.SetAutoSuggest(cfg); err != nil {
		return fmt.Errorf("failed to save auto-suggest settings: %w", err)
	}

	state := "disabled"
	if cfg.Enabled {
		state = "enabled"
	}
	cmd.Printf("Auto-suggest %s: every %s after %d new segments (%s)\n",
		state, cfg.MinInterval, cfg.MinNewSegments, joinActions(cfg.Actions))
	return nil
}

func runSettingsAPIKey(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	provider, err := domain.ParseProviderKind(args[0])
	if err != nil {
		return err
	}

	key := ""
	if !apiKeyRemove {
		cmd.Printf("Enter %s API key: ", provider)
		key = readPassword()
		cmd.Println()
		if key == "" {
			return errors.New("no key entered")
		}
	}

	if err := settingsService.SetAPIKey(provider, key); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}

	if key == "" {
		cmd.Printf("Removed %s API key.\n", provider)
	} else {
		cmd.Printf("Saved %s API key %s.\n", provider, maskAPIKey(key))
	}
	return nil
}

func joinActions(actions []domain.ActionType) string {
	if len(actions) == 0 {
		return "(none)"
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.String()
	}
	return strings.Join(names, ", ")
}

func describeKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

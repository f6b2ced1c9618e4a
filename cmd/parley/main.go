package main

import (
	"os"
	"sync"

	"github.com/custodia-labs/parley/internal/adapters/driven/config/file"
	"github.com/custodia-labs/parley/internal/adapters/driving/cli"
	"github.com/custodia-labs/parley/internal/core/domain"
	"github.com/custodia-labs/parley/internal/core/ports/driven"
	"github.com/custodia-labs/parley/internal/core/ports/driving"
	"github.com/custodia-labs/parley/internal/core/services"
	"github.com/custodia-labs/parley/internal/logger"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	log := logger.For("main")

	configStore, err := file.NewConfigStore("")
	if err != nil {
		log.Error("open config: %v", err)
		return err
	}
	settingsService := services.NewSettingsService(configStore)

	prompts, err := file.NewPromptStore("")
	if err != nil {
		log.Error("open prompts: %v", err)
		return err
	}

	live := &liveController{}
	watcher, err := file.NewWatcher(configStore, func() {
		prompts.Reload()
		live.apply(settingsService)
	})
	if err != nil {
		log.Warn("config changes will not be picked up: %v", err)
	} else {
		watcher.Start()
		defer watcher.Close()
	}

	cli.SetConfig(cli.Config{
		SettingsService: settingsService,
		Prompts:         prompts,
		NewSession: func(p cli.Providers, autoSuggest *domain.AutoSuggestConfig) (driving.SessionService, error) {
			settings, err := settingsService.Get()
			if err != nil {
				return nil, err
			}
			cfg := services.ConfigFromSettings(*settings)
			cfg.Settings = settingsService
			if autoSuggest != nil {
				cfg.AutoSuggest = autoSuggest.Clone()
			}

			controller, err := services.NewSessionController(p.Capture, p.STT, p.AI, cfg)
			if err != nil {
				return nil, err
			}
			applyKey(p.STT, settings.STT.APIKey)
			applyKey(p.AI, settings.AI.APIKey)
			live.set(controller, autoSuggest != nil)
			return controller, nil
		},
	})

	return cli.Execute()
}

// applyKey hands a stored key to a provider without persisting it again.
func applyKey(provider any, key string) {
	if key == "" {
		return
	}
	if cred, ok := provider.(driven.Credentialed); ok {
		if err := cred.SetAPIKey(key); err != nil {
			logger.Warn("api key rejected: %v", err)
		}
	}
}

// liveController is the controller that settings reloads are applied to.
type liveController struct {
	mu         sync.Mutex
	controller *services.SessionController
	// pinned controllers run with auto-suggest settings that reloads must
	// not replace.
	pinned bool
}

func (l *liveController) set(c *services.SessionController, pinned bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.controller = c
	l.pinned = pinned
}

func (l *liveController) apply(settingsService *services.SettingsService) {
	l.mu.Lock()
	c, pinned := l.controller, l.pinned
	l.mu.Unlock()
	if c == nil {
		return
	}

	settings, err := settingsService.Get()
	if err != nil {
		logger.Warn("reload settings: %v", err)
		return
	}
	if pinned {
		settings.AutoSuggest = c.AutoSuggestConfig()
	}
	if err := c.ApplySettings(*settings); err != nil {
		logger.Warn("apply settings: %v", err)
		return
	}
	logger.Info("settings reloaded")
}

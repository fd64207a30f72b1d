package main

import (
	"context"
	"fmt"

	"github.com/username/cycle-day-bot/internal/bot"
	"github.com/username/cycle-day-bot/internal/calendar"
	"github.com/username/cycle-day-bot/internal/config"
	"github.com/username/cycle-day-bot/internal/definition"
	"github.com/username/cycle-day-bot/internal/store"
	"go.uber.org/zap"
)

// app holds the components shared by the commands
type app struct {
	cfg        *config.Config
	definition *definition.Definition
	calendar   *calendar.Calendar
	store      *store.Store
	bot        *bot.Bot
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}
}

// initializeApp loads the config and the term definition. The schedule store
// is opened only when withStore is set.
func initializeApp(ctx context.Context, withStore bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	loader := definition.NewLoader(definitionSource(cfg), logger)
	def, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar definition: %w", err)
	}

	a := &app{
		cfg:        cfg,
		definition: def,
		calendar:   calendar.New(def, logger),
	}

	if withStore {
		s, err := store.Open(ctx, cfg.Store.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		a.store = s
		a.bot = bot.New(a.calendar, def, s, logger)
	} else {
		a.bot = bot.New(a.calendar, def, nil, logger)
	}

	return a, nil
}

// definitionSource builds the fetch chain: the published URL (snapshotted
// on success), then the last snapshot, then the bundled fallback file.
func definitionSource(cfg *config.Config) definition.Source {
	var local definition.Source
	if cfg.Definition.FallbackFile != "" {
		local = definition.NewFileSource(cfg.Definition.FallbackFile, logger)
	}
	if cfg.Definition.SnapshotFile != "" {
		snapshot := definition.NewFileSource(cfg.Definition.SnapshotFile, logger)
		if local != nil {
			local = definition.NewCompositeSource(snapshot, local, logger)
		} else {
			local = snapshot
		}
	}

	if cfg.Definition.URL == "" {
		logger.Info("Using local calendar definition only")
		return local
	}

	var remote definition.Source = definition.NewHTTPSource(cfg.Definition.URL, cfg.Definition.GetTimeout(), logger)
	if cfg.Definition.SnapshotFile != "" {
		remote = definition.NewSnapshotSource(remote, cfg.Definition.SnapshotFile, logger)
	}
	if local == nil {
		return remote
	}
	return definition.NewCompositeSource(remote, local, logger)
}

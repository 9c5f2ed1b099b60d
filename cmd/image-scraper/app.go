package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"image-scraper/pkg/config"
	applog "image-scraper/pkg/log"
	"image-scraper/pkg/orchestrate"
	"image-scraper/pkg/storage"
)

// app bundles what every pipeline-running subcommand needs
type app struct {
	cfg   *config.AppConfig
	log   *logrus.Entry
	store *storage.BadgerStore // nil when history is disabled or unavailable
	orch  *orchestrate.Orchestrator
}

// loadApp loads configuration, builds the logger and, when history is enabled,
// opens the badger store. A store that cannot be opened (for example because a
// server already holds the lock) downgrades to running without history.
func loadApp(opts *rootOptions, logOut io.Writer, warnOut io.Writer) (*app, error) {
	logger, err := applog.NewLogger(opts.logLevel, logOut)
	if err != nil {
		logger.Warnf("Invalid log level '%s', using default 'info'", opts.logLevel)
	}
	log := logrus.NewEntry(logger)

	appCfg, warnings, err := config.Load(opts.configPath, opts.configExplicit)
	if err != nil {
		return nil, fmt.Errorf("load config '%s': %w", opts.configPath, err)
	}
	for _, w := range warnings {
		fmt.Fprintf(warnOut, "WARN: %s\n", w)
	}
	logAppConfig(appCfg, log)

	a := &app{cfg: appCfg, log: log}
	if appCfg.HistoryEnabled() {
		store, err := storage.NewBadgerStore(appCfg.StateDir, log.WithField("component", "history"))
		if err != nil {
			log.Warnf("Run history unavailable, continuing without it: %v", err)
		} else {
			a.store = store
		}
	}

	var history storage.HistoryStore
	if a.store != nil {
		history = a.store
	}
	a.orch = orchestrate.NewOrchestrator(appCfg, history, log)
	return a, nil
}

// Close releases the history store
func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warnf("Error closing history store: %v", err)
	}
}

func logAppConfig(appCfg *config.AppConfig, log *logrus.Entry) {
	log.Debugf("Effective config: save_dir=%s state_dir=%s history=%t robots=%t timeout=%v chunk_size=%d",
		appCfg.SaveDir, appCfg.StateDir, appCfg.HistoryEnabled(), appCfg.RespectRobotsTxt,
		appCfg.HTTPClientSettings.Timeout, appCfg.ChunkSize)
}

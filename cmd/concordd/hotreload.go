package main

import (
	"os"
	"time"

	"github.com/concordhq/concord/internal/config"
	"github.com/concordhq/concord/internal/engine"
	"github.com/concordhq/concord/internal/logging"
)

// startHotReloadWatcher polls cfg.HotReload.SyncsPath for mtime changes and
// reinstalls the manifest on the engine when it changes. fsnotify isn't
// part of this module's dependency stack, so mtime polling is the stand-in
// the teacher pack would reach for.
//
// A manifest that fails to parse or compile is logged and left in place;
// the engine keeps running the last-known-good syncs.
func startHotReloadWatcher(cfg *config.Config, eng *engine.Engine) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		var lastMod time.Time
		if info, err := os.Stat(cfg.HotReload.SyncsPath); err == nil {
			lastMod = info.ModTime()
		}

		ticker := time.NewTicker(cfg.HotReload.PollPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				info, err := os.Stat(cfg.HotReload.SyncsPath)
				if err != nil {
					logging.Op().Error("hot reload stat failed", "path", cfg.HotReload.SyncsPath, "error", err)
					continue
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()

				syncs, diags, err := loadSyncs(cfg)
				if err != nil {
					logging.Op().Error("hot reload load failed", "error", err)
					continue
				}
				if len(diags) > 0 {
					for _, d := range diags {
						logging.Op().Error("hot reload diagnostic", "diagnostic", d.Error())
					}
					continue
				}
				eng.ReloadSyncs(syncs)
				logging.Op().Info("syncs hot-reloaded", "count", len(syncs))
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}

package main

import (
	"github.com/concordhq/concord/internal/config"
	"github.com/concordhq/concord/internal/model"
	"github.com/concordhq/concord/internal/synccompiler"
	"github.com/concordhq/concord/internal/syncmanifest"
)

// loadSyncs compiles the configured manifest. A config with no manifest
// path configured is valid (an engine with zero syncs installed).
func loadSyncs(cfg *config.Config) ([]*model.CompiledSync, []synccompiler.Diagnostic, error) {
	if cfg.HotReload.SyncsPath == "" {
		return nil, nil, nil
	}
	return syncmanifest.LoadAndCompile(cfg.HotReload.SyncsPath)
}

func diagnosticStrings(diags []synccompiler.Diagnostic) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.Error()
	}
	return out
}

package config

import (
	"context"
	"log/slog"

	"github.com/bitdiag/bitdiag/agent/internal/fswatch"
)

// Watch monitors path and calls onChange with the newly loaded Config each
// time the file changes. It runs until ctx is cancelled.
//
// A reload that fails to parse or validate is logged and skipped; the caller
// keeps running on the previous config.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	slog.Info("config: watching for changes", "path", path)
	return fswatch.Watch(ctx, path, fswatch.DefaultSettle, func() {
		cfg, err := Load(path)
		if err != nil {
			slog.Error("config: reload failed, keeping previous config",
				"path", path, "err", err)
			return
		}
		slog.Info("config: reloaded", "path", path, "sources", len(cfg.Agent.Sources))
		onChange(cfg)
	})
}

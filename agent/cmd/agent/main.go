package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitdiag/bitdiag/agent/internal/compute"
	"github.com/bitdiag/bitdiag/agent/internal/config"
	"github.com/bitdiag/bitdiag/agent/internal/poller"
	"github.com/bitdiag/bitdiag/agent/internal/shipper"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("bitdiag-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Agent.Level())
	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"sources", len(cfg.Agent.Sources),
		"poll_interval", cfg.Agent.PollInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ship, err := shipper.New(cfg.Agent)
	if err != nil {
		slog.Error("failed to build shipper", "err", err)
		os.Exit(1)
	}
	go ship.Run(ctx)

	p := poller.New(compute.NewEngine(), ship)
	if err := p.Apply(ctx, cfg.Agent.Sources); err != nil {
		slog.Warn("some sources were not registered", "err", err)
	}
	if len(p.Sources()) == 0 {
		slog.Warn("no sources configured, agent will idle")
	}

	// Hot-reload: log level and the source list follow the file. Poll
	// interval, buffer size and server settings need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			level.Set(updated.Agent.Level())
			if err := p.Apply(ctx, updated.Agent.Sources); err != nil {
				slog.Warn("config reload: some sources were not registered", "err", err)
			}
			slog.Info("config hot-reloaded", "sources", p.Sources())
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	p.Run(ctx, cfg.Agent.PollInterval)

	p.Wait()
	slog.Info("bitdiag-agent shutting down", "unsent_reports", ship.Pending())
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bitdiag/bitdiag/server/internal/alerts"
	"github.com/bitdiag/bitdiag/server/internal/api"
	"github.com/bitdiag/bitdiag/server/internal/auth"
	"github.com/bitdiag/bitdiag/server/internal/config"
	"github.com/bitdiag/bitdiag/server/internal/metrics"
	"github.com/bitdiag/bitdiag/server/internal/receiver"
	"github.com/bitdiag/bitdiag/server/internal/store"
	"github.com/bitdiag/bitdiag/server/internal/ws"
)

const (
	broadcastInterval = 5 * time.Second
	pruneInterval     = time.Hour
	shutdownTimeout   = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("bitdiag-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.Level())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"report_ttl", cfg.Server.Report.TTL,
		"storage", cfg.Server.Storage.Backend,
		"alert_rules", len(cfg.Server.Alerts.Rules),
	)

	if err := run(cfg.Server); err != nil {
		slog.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("bitdiag-server shut down")
}

func run(cfg config.ServerConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(cfg.Report.TTL)

	var hist *store.History
	if cfg.Storage.Enabled() {
		h, err := store.OpenHistory(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer h.Close()
		hist = h
		slog.Info("report history enabled", "path", cfg.Storage.Path, "retention", cfg.Storage.Retention)
	}

	alertEngine := alerts.New(cfg.Alerts)
	defer alertEngine.Wait()

	apiHandler := api.New(st, hist, alertEngine)
	hub := ws.New(apiHandler, broadcastInterval)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newMux(cfg.Auth, st, hist, alertEngine, apiHandler, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if hist != nil {
		g.Go(func() error {
			hist.RunPruner(gctx, cfg.Storage.Retention, pruneInterval)
			return nil
		})
	}
	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("bitdiag-server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newMux routes the server endpoints. Everything that exposes report or alert
// data sits behind the API key; /metrics is left open for scrapers.
func newMux(authCfg config.AuthConfig, st *store.Store, hist *store.History, al *alerts.Engine, apiHandler *api.Handler, hub *ws.Hub) *http.ServeMux {
	requireKey := auth.APIKey(authCfg.Mode, authCfg.EffectiveHeader(), authCfg.Key())

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/reports", requireKey(receiver.New(st, hist, al)))
	mux.Handle("/api/", requireKey(apiHandler))
	mux.Handle("/metrics", metrics.New(st))
	mux.Handle("/ws/stream", requireKey(hub))
	return mux
}

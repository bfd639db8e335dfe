// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/fableforge/fableforge/internal/config"
	"github.com/fableforge/fableforge/internal/logging"
	"github.com/fableforge/fableforge/internal/observability"
	"github.com/fableforge/fableforge/internal/session"
	sessionpg "github.com/fableforge/fableforge/internal/session/postgres"
	"github.com/fableforge/fableforge/internal/store"
	"github.com/fableforge/fableforge/internal/story"
)

// serveConfig holds flags owned by the serve command itself; everything else
// comes from internal/config.
type serveConfig struct {
	storiesDir string
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Fableforge engine process",
		Long: `Start the Fableforge engine process: connects to PostgreSQL, loads
authored stories, and serves metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	cmd.Flags().StringVar(&cfg.storiesDir, "stories-dir", "", "directory of authored story YAML files")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

// runServeWithDeps starts the engine process with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *serveConfig, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.DBFactory == nil {
		deps.DBFactory = func(ctx context.Context, cfg store.ConnectConfig) (Database, error) {
			return store.Connect(ctx, cfg)
		}
	}
	if deps.StoriesLoader == nil {
		deps.StoriesLoader = story.LoadDir
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	appCfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("fableforge", version, appCfg.Log.Format)

	databaseURL := resolveDatabaseURL(appCfg)
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (db.url or DATABASE_URL)")
	}

	slog.Info("starting engine process", "log_format", appCfg.Log.Format)

	db, err := deps.DBFactory(ctx, store.ConnectConfig{
		DSN:         databaseURL,
		MaxAttempts: uint64(appCfg.DB.MaxAttempts), //nolint:gosec // validated >= 1
		PingTimeout: appCfg.DB.PingTimeout,
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	slog.Info("connected to database")

	stories := story.NewMemoryProvider()
	storyCount := 0
	if cfg.storiesDir != "" {
		loaded, loadErr := deps.StoriesLoader(cfg.storiesDir)
		if loadErr != nil {
			return loadErr
		}
		for _, s := range loaded {
			stories.Put(s)
		}
		storyCount = len(loaded)
	} else {
		slog.Warn("no stories directory configured, starting with empty catalog")
	}

	engine := session.NewEngine(session.EngineConfig{
		Stories:      stories,
		Sessions:     sessionpg.NewSessionRepository(db),
		Achievements: logNotifier{},
		Analytics:    logRecorder{},
	})
	// TODO: expose the engine and snapshot services over a transport; until
	// then serve proves the wiring and serves metrics and health only.
	_ = session.NewSnapshots(session.SnapshotsConfig{
		Engine:     engine,
		SavedGames: sessionpg.NewSavedGameRepository(db),
	})

	slog.Info("engine ready", "stories", storyCount)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var obsServer ObservabilityServer
	if appCfg.Metrics.Addr != "" {
		// Ready once the database is connected and stories are loaded.
		obsServer = deps.ObservabilityServerFactory(appCfg.Metrics.Addr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
			defer pingCancel()
			return db.Ping(pingCtx) == nil
		})
		obsErrChan, startErr := obsServer.Start()
		if startErr != nil {
			return oops.Code("OBSERVABILITY_FAILED").Wrap(startErr)
		}
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Engine process started")

	// Wait for shutdown signal or server failure
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// resolveDatabaseURL prefers the config file/flags, then the environment.
func resolveDatabaseURL(cfg *config.Config) string {
	if cfg.DB.URL != "" {
		return cfg.DB.URL
	}
	return os.Getenv("DATABASE_URL")
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}

// logNotifier is the default achievement sink: it only logs. Real deployments
// plug a gamification service in through session.AchievementNotifier.
type logNotifier struct{}

func (logNotifier) Notify(_ context.Context, event session.AchievementEvent) ([]string, error) {
	slog.Info("achievement event",
		"type", event.Type,
		"user_id", event.UserID,
		"session_id", event.SessionID,
		"story_id", event.StoryID,
	)
	return nil, nil
}

// logRecorder is the default analytics sink: it only logs.
type logRecorder struct{}

func (logRecorder) Record(_ context.Context, event session.AnalyticsEvent) error {
	slog.Debug("analytics event",
		"type", event.Type,
		"user_id", event.UserID,
		"session_id", event.SessionID,
		"story_id", event.StoryID,
		"node_id", event.NodeID,
		"choice_id", event.ChoiceID,
	)
	return nil
}

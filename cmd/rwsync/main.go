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

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/rainwave-sync/internal/api"
	"github.com/rickgao/rainwave-sync/internal/auth"
	"github.com/rickgao/rainwave-sync/internal/config"
	"github.com/rickgao/rainwave-sync/internal/connection"
	"github.com/rickgao/rainwave-sync/internal/database"
	"github.com/rickgao/rainwave-sync/internal/events"
	"github.com/rickgao/rainwave-sync/internal/poller"
	"github.com/rickgao/rainwave-sync/internal/version"
	"github.com/rickgao/rainwave-sync/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/rwsync.local.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting rwsync",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := run(*configPath, logger); err != nil {
		logger.Error("rwsync failed", "error", err)
		os.Exit(1)
	}
	logger.Info("rwsync stopped")
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	creds, err := auth.LoadCredentials(cfg.Rainwave.UserID, cfg.Rainwave.APIKey, cfg.Rainwave.APIKeyFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	logger = logger.With("instance_id", cfg.Instance.ID)
	logger.Info("configuration loaded",
		"url", cfg.Rainwave.URL,
		"station", cfg.Rainwave.Station,
		"user_id", creds.UserID,
		"archive", cfg.Database.Enabled,
		"poller", cfg.Poller.Enabled,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	bus := events.NewBus(logger)
	manager := connection.NewManager(managerConfig(cfg, *creds), bus, logger)

	// Archive: pool, schema, writer over a bus subscription.
	var (
		pool *pgxpool.Pool
		sub  *events.Subscription
		ew   *writer.EventWriter
	)
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}

		keys, err := archiveKeys(cfg.Writers.Keys)
		if err != nil {
			return err
		}
		sub = bus.Buffer(cfg.Writers.BufferSize, keys...)
		defer sub.Close()

		ew = writer.NewEventWriter(writer.WriterConfig{
			BatchSize:     cfg.Writers.BatchSize,
			FlushInterval: cfg.Writers.FlushInterval,
			Instance:      cfg.Instance.ID,
			Station:       cfg.Rainwave.Station,
		}, sub.Events(), pool, logger)
		if err := ew.Start(ctx); err != nil {
			return fmt.Errorf("start writer: %w", err)
		}
		logger.Info("archive writer started", "keys", len(keys))
	}

	if err := startEngine(ctx, manager, cfg.Connection.ReconnectDelay, logger); err != nil {
		if errors.Is(err, connection.ErrAuthenticationFailed) {
			return fmt.Errorf("authentication rejected for user %d: %w", creds.UserID, err)
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("start engine: %w", err)
	}

	var p *poller.Poller
	if cfg.Poller.Enabled {
		client := api.NewClient(manager, api.WithLogger(logger))
		p, err = poller.New(poller.Config{
			Interval:    cfg.Poller.Interval,
			Concurrency: cfg.Poller.Concurrency,
			Timeout:     cfg.Connection.RequestTimeout * 3,
			Actions:     cfg.Poller.Actions,
		}, client, snapshotHandler(ew, logger), logger)
		if err != nil {
			return fmt.Errorf("create poller: %w", err)
		}
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
	}

	comps := components{manager: manager, bus: bus, writer: ew, poller: p}
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
		Handler:           createHealthHandler(cfg.Health.Path, comps.report),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port, "path", cfg.Health.Path)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		healthServer.Shutdown(shutdownCtx)
		if p != nil {
			p.Stop(shutdownCtx)
		}
		if err := manager.Stop(shutdownCtx); err != nil {
			logger.Warn("engine stop", "error", err)
		}
		// The writer stops last so the final lifecycle events are archived.
		if ew != nil {
			if err := ew.Stop(shutdownCtx); err != nil {
				logger.Warn("writer stop", "error", err)
			}
		}
		return nil
	})

	logger.Info("rwsync running",
		"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
	)
	return g.Wait()
}

// archiveKeys resolves the configured key names. Empty means everything.
func archiveKeys(names []string) ([]events.Key, error) {
	keys := make([]events.Key, 0, len(names))
	for _, n := range names {
		k, ok := events.Lookup(n)
		if !ok {
			return nil, fmt.Errorf("writers.keys: unknown key %q", n)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// snapshotHandler archives poll results when the archive is enabled and
// logs them otherwise.
func snapshotHandler(ew *writer.EventWriter, logger *slog.Logger) poller.SnapshotHandler {
	return poller.SnapshotHandlerFunc(func(ctx context.Context, s poller.Snapshot) error {
		if ew == nil {
			logger.Debug("snapshot", "action", s.Action, "bytes", len(s.Payload))
			return nil
		}
		ew.AddSnapshot(ctx, s.Action, s.Payload, s.FetchedAt)
		return nil
	})
}

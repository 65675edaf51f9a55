package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/rainwave-sync/internal/auth"
	"github.com/rickgao/rainwave-sync/internal/config"
	"github.com/rickgao/rainwave-sync/internal/connection"
	"github.com/rickgao/rainwave-sync/internal/version"
)

// managerConfig maps the file configuration onto the engine's.
func managerConfig(cfg *config.Config, creds auth.Credentials) connection.ManagerConfig {
	mc := connection.DefaultManagerConfig()
	mc.URL = cfg.Rainwave.URL
	mc.Station = cfg.Rainwave.Station
	mc.Credentials = creds

	mc.RequestTimeout = cfg.Connection.RequestTimeout
	mc.ReconnectDelay = cfg.Connection.ReconnectDelay
	mc.KeepaliveInterval = cfg.Connection.KeepaliveInterval
	mc.ConnectTimeout = cfg.Connection.ConnectTimeout
	mc.SentWindow = cfg.Connection.SentWindow
	mc.Correlation = connection.Correlation{
		Field:  cfg.Connection.CorrelationField,
		Nested: cfg.Connection.CorrelationNested,
	}

	mc.Client.WriteTimeout = cfg.Connection.WriteTimeout
	mc.Client.UserAgent = version.UserAgent("rwsync")
	return mc
}

// starter is the part of the engine startEngine drives.
type starter interface {
	Start(ctx context.Context) error
}

// startEngine retries Start until the engine is ready, ctx ends, or the
// credentials are rejected. A failed first connect leaves the engine
// disconnected, so retrying is the caller's job.
func startEngine(ctx context.Context, m starter, delay time.Duration, logger *slog.Logger) error {
	for attempt := 1; ; attempt++ {
		err := m.Start(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, connection.ErrAuthenticationFailed) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("engine start failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

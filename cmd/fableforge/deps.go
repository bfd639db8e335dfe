// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package main

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fableforge/fableforge/internal/observability"
	"github.com/fableforge/fableforge/internal/store"
	"github.com/fableforge/fableforge/internal/story"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DBFactory connects the PostgreSQL pool.
	// Default: store.Connect
	DBFactory func(ctx context.Context, cfg store.ConnectConfig) (Database, error)

	// StoriesLoader reads authored story files from a directory.
	// Default: story.LoadDir
	StoriesLoader func(dir string) ([]*story.Story, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer
}

// Database interface wraps the pgxpool.Pool methods the serve command and the
// session repositories use.
type Database interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

// Package store provides database bootstrap and schema management.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectConfig controls pool creation.
type ConnectConfig struct {
	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxAttempts bounds the connection retries. Zero means 5.
	MaxAttempts uint64

	// PingTimeout bounds each connection probe. Zero means 5s.
	PingTimeout time.Duration
}

// Connect opens a pgx pool and verifies connectivity, retrying with
// fibonacci backoff. Databases routinely come up after the service in
// container environments, so a failed first ping is expected.
func Connect(ctx context.Context, cfg ConnectConfig) (*pgxpool.Pool, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 5
	}
	pingTimeout := cfg.PingTimeout
	if pingTimeout == 0 {
		pingTimeout = 5 * time.Second
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse dsn").Wrap(err)
	}

	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewFibonacci(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_UNREACHABLE").
			With("max_attempts", maxAttempts).
			Wrap(err)
	}
	return pool, nil
}

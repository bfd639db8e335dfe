// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

// Package postgres implements the session package's repositories on
// PostgreSQL. Session rows carry a version column; updates are optimistic
// and fail with session.ErrVersionConflict when a concurrent writer won.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pool abstracts query execution so repositories accept *pgxpool.Pool in
// production and pgxmock in tests.
type pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

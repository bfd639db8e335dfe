// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fableforge/fableforge/internal/session"
)

// SessionRepository implements session.Repository using PostgreSQL.
type SessionRepository struct {
	pool pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, sess *session.PlaySession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO play_sessions (id, user_id, story_id, current_node_id, game_state,
			is_completed, started_at, last_played_at, completed_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, sess.ID.String(), sess.UserID, sess.StoryID, sess.CurrentNodeID, sess.GameState,
		sess.IsCompleted, sess.StartedAt, sess.LastPlayedAt, sess.CompletedAt, sess.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("SESSION_ALREADY_EXISTS").With("id", sess.ID.String()).Wrap(err)
		}
		return oops.With("operation", "create session").With("id", sess.ID.String()).Wrap(err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(ctx context.Context, id ulid.ULID) (*session.PlaySession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, story_id, current_node_id, game_state,
			is_completed, started_at, last_played_at, completed_at, version
		FROM play_sessions WHERE id = $1
	`, id.String())
	sess, err := scanSessionRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(session.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get session").With("id", id.String()).Wrap(err)
	}
	return sess, nil
}

// Update persists session changes against the version the caller read.
// The row's version is incremented on success and mirrored back into sess.
func (r *SessionRepository) Update(ctx context.Context, sess *session.PlaySession) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE play_sessions
		SET current_node_id = $2, game_state = $3, is_completed = $4,
			last_played_at = $5, completed_at = $6, version = version + 1
		WHERE id = $1 AND version = $7
	`, sess.ID.String(), sess.CurrentNodeID, sess.GameState, sess.IsCompleted,
		sess.LastPlayedAt, sess.CompletedAt, sess.Version)
	if err != nil {
		return oops.With("operation", "update session").With("id", sess.ID.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		// Missing row and stale version both hit zero rows; one more read
		// tells them apart.
		var exists bool
		checkErr := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM play_sessions WHERE id = $1)`,
			sess.ID.String()).Scan(&exists)
		if checkErr != nil {
			return oops.With("operation", "update session").With("id", sess.ID.String()).Wrap(checkErr)
		}
		if !exists {
			return oops.Code("SESSION_NOT_FOUND").With("id", sess.ID.String()).Wrap(session.ErrNotFound)
		}
		return oops.Code("SESSION_VERSION_CONFLICT").
			With("id", sess.ID.String()).
			With("version", sess.Version).
			Wrap(session.ErrVersionConflict)
	}
	sess.Version++
	return nil
}

// ListByUser returns the user's sessions, newest LastPlayedAt first. An
// empty storyID returns sessions across all stories.
func (r *SessionRepository) ListByUser(ctx context.Context, userID, storyID string) ([]*session.PlaySession, error) {
	query := `
		SELECT id, user_id, story_id, current_node_id, game_state,
			is_completed, started_at, last_played_at, completed_at, version
		FROM play_sessions WHERE user_id = $1`
	args := []any{userID}
	if storyID != "" {
		query += ` AND story_id = $2`
		args = append(args, storyID)
	}
	query += ` ORDER BY last_played_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, oops.With("operation", "list sessions").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

func scanSessionRow(row pgx.Row) (*session.PlaySession, error) {
	var sess session.PlaySession
	var idStr string

	err := row.Scan(
		&idStr, &sess.UserID, &sess.StoryID, &sess.CurrentNodeID, &sess.GameState,
		&sess.IsCompleted, &sess.StartedAt, &sess.LastPlayedAt, &sess.CompletedAt, &sess.Version,
	)
	if err != nil {
		return nil, err
	}
	sess.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse session id").With("id", idStr).Wrap(err)
	}
	return &sess, nil
}

func scanSessions(rows pgx.Rows) ([]*session.PlaySession, error) {
	sessions := make([]*session.PlaySession, 0)
	for rows.Next() {
		sess, err := scanSessionRow(rows)
		if err != nil {
			return nil, oops.With("operation", "scan session").Wrap(err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate sessions").Wrap(err)
	}
	return sessions, nil
}

// Compile-time interface check.
var _ session.Repository = (*SessionRepository)(nil)

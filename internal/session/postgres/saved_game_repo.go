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

// SavedGameRepository implements session.SavedGameRepository using PostgreSQL.
type SavedGameRepository struct {
	pool pool
}

// NewSavedGameRepository creates a new SavedGameRepository.
func NewSavedGameRepository(pool pool) *SavedGameRepository {
	return &SavedGameRepository{pool: pool}
}

// Create persists a new saved game.
func (r *SavedGameRepository) Create(ctx context.Context, save *session.SavedGame) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO saved_games (id, user_id, session_id, story_id, name, node_id,
			game_state, is_completed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, save.ID.String(), save.UserID, save.SessionID.String(), save.StoryID, save.Name,
		save.NodeID, save.GameState, save.IsCompleted, save.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("SAVE_ALREADY_EXISTS").With("id", save.ID.String()).Wrap(err)
		}
		return oops.With("operation", "create saved game").With("id", save.ID.String()).Wrap(err)
	}
	return nil
}

// Get retrieves a saved game by ID.
func (r *SavedGameRepository) Get(ctx context.Context, id ulid.ULID) (*session.SavedGame, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, session_id, story_id, name, node_id,
			game_state, is_completed, created_at
		FROM saved_games WHERE id = $1
	`, id.String())
	save, err := scanSavedGameRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SAVE_NOT_FOUND").With("id", id.String()).Wrap(session.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get saved game").With("id", id.String()).Wrap(err)
	}
	return save, nil
}

// ListByUser returns the user's saved games, newest first. An empty storyID
// returns saves across all stories.
func (r *SavedGameRepository) ListByUser(ctx context.Context, userID, storyID string) ([]*session.SavedGame, error) {
	query := `
		SELECT id, user_id, session_id, story_id, name, node_id,
			game_state, is_completed, created_at
		FROM saved_games WHERE user_id = $1`
	args := []any{userID}
	if storyID != "" {
		query += ` AND story_id = $2`
		args = append(args, storyID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, oops.With("operation", "list saved games").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	saves := make([]*session.SavedGame, 0)
	for rows.Next() {
		save, err := scanSavedGameRow(rows)
		if err != nil {
			return nil, oops.With("operation", "scan saved game").Wrap(err)
		}
		saves = append(saves, save)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate saved games").Wrap(err)
	}
	return saves, nil
}

// Delete removes a saved game by ID.
func (r *SavedGameRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM saved_games WHERE id = $1`, id.String())
	if err != nil {
		return oops.With("operation", "delete saved game").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SAVE_NOT_FOUND").With("id", id.String()).Wrap(session.ErrNotFound)
	}
	return nil
}

func scanSavedGameRow(row pgx.Row) (*session.SavedGame, error) {
	var save session.SavedGame
	var idStr, sessionIDStr string

	err := row.Scan(
		&idStr, &save.UserID, &sessionIDStr, &save.StoryID, &save.Name, &save.NodeID,
		&save.GameState, &save.IsCompleted, &save.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	save.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse saved game id").With("id", idStr).Wrap(err)
	}
	save.SessionID, err = ulid.Parse(sessionIDStr)
	if err != nil {
		return nil, oops.With("operation", "parse session id").With("id", sessionIDStr).Wrap(err)
	}
	return &save, nil
}

// Compile-time interface check.
var _ session.SavedGameRepository = (*SavedGameRepository)(nil)

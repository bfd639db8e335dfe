// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package session

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SnapshotsConfig holds dependencies for Snapshots. The engine is required:
// restores run under its per-session locks so a Load cannot interleave with
// a concurrent MakeChoice on the same session.
type SnapshotsConfig struct {
	Engine     *Engine
	SavedGames SavedGameRepository
}

// Snapshots manages named save points over play sessions. Saved games are
// immutable copies of a session's position and state.
type Snapshots struct {
	engine *Engine
	saves  SavedGameRepository
}

// NewSnapshots creates a new Snapshots manager with the given configuration.
func NewSnapshots(cfg SnapshotsConfig) *Snapshots {
	return &Snapshots{engine: cfg.Engine, saves: cfg.SavedGames}
}

// Save copies the session's current position, game state, and completion
// into a new saved game. An empty name gets a timestamped default.
func (s *Snapshots) Save(ctx context.Context, userID string, sessionID ulid.ULID, name string) (*SavedGame, error) {
	sess, err := s.engine.getOwned(ctx, userID, sessionID)
	if err != nil {
		SnapshotOperations.WithLabelValues("save", StatusError).Inc()
		return nil, err
	}

	now := time.Now().UTC()
	if name == "" {
		name = "Save " + now.Format(time.RFC3339)
	}
	save := &SavedGame{
		ID:          ulid.Make(),
		UserID:      userID,
		SessionID:   sess.ID,
		StoryID:     sess.StoryID,
		Name:        name,
		NodeID:      sess.CurrentNodeID,
		GameState:   cloneGameState(sess.GameState),
		IsCompleted: sess.IsCompleted,
		CreatedAt:   now,
	}
	if err := s.saves.Create(ctx, save); err != nil {
		SnapshotOperations.WithLabelValues("save", StatusError).Inc()
		return nil, oops.Code("SAVE_CREATE_FAILED").
			With("session_id", sessionID.String()).
			Wrap(err)
	}

	SnapshotOperations.WithLabelValues("save", StatusSuccess).Inc()
	return save, nil
}

// Load restores a saved game into a play session and returns it.
//
// The restore target is, in order: the snapshot's originating session when it
// still exists, belongs to the caller, and is not completed; otherwise the
// caller's most recent active session for the same story; otherwise a fresh
// session. Completed sessions are never reopened.
func (s *Snapshots) Load(ctx context.Context, userID string, savedGameID ulid.ULID) (*PlaySession, error) {
	save, err := s.getOwnedSave(ctx, userID, savedGameID)
	if err != nil {
		SnapshotOperations.WithLabelValues("load", StatusError).Inc()
		return nil, err
	}

	sess, err := s.restore(ctx, userID, save)
	if err != nil {
		SnapshotOperations.WithLabelValues("load", StatusError).Inc()
		return nil, err
	}
	SnapshotOperations.WithLabelValues("load", StatusSuccess).Inc()
	return sess, nil
}

func (s *Snapshots) restore(ctx context.Context, userID string, save *SavedGame) (*PlaySession, error) {
	if target, ok := s.restoreTarget(ctx, userID, save); ok {
		return s.restoreInto(ctx, target, save)
	}

	// No session left to restore into; the snapshot seeds a new one.
	now := time.Now().UTC()
	sess := &PlaySession{
		ID:            ulid.Make(),
		UserID:        userID,
		StoryID:       save.StoryID,
		CurrentNodeID: save.NodeID,
		GameState:     cloneGameState(save.GameState),
		IsCompleted:   save.IsCompleted,
		StartedAt:     now,
		LastPlayedAt:  now,
		Version:       1,
	}
	if sess.IsCompleted {
		sess.CompletedAt = &now
	}
	if err := s.engine.sessions.Create(ctx, sess); err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").
			With("saved_game_id", save.ID.String()).
			Wrap(err)
	}
	return sess, nil
}

// restoreTarget picks the session a snapshot restores into.
func (s *Snapshots) restoreTarget(ctx context.Context, userID string, save *SavedGame) (ulid.ULID, bool) {
	origin, err := s.engine.sessions.Get(ctx, save.SessionID)
	if err == nil && origin.UserID == userID && !origin.IsCompleted {
		return origin.ID, true
	}

	sessions, err := s.engine.sessions.ListByUser(ctx, userID, save.StoryID)
	if err != nil {
		return ulid.ULID{}, false
	}
	for _, sess := range sessions {
		if !sess.IsCompleted {
			return sess.ID, true
		}
	}
	return ulid.ULID{}, false
}

func (s *Snapshots) restoreInto(ctx context.Context, sessionID ulid.ULID, save *SavedGame) (*PlaySession, error) {
	unlock := s.engine.locks.lock(sessionID.String())
	defer unlock()

	sess, err := s.restoreIntoLocked(ctx, sessionID, save)
	if errors.Is(err, ErrVersionConflict) {
		sess, err = s.restoreIntoLocked(ctx, sessionID, save)
	}
	return sess, err
}

func (s *Snapshots) restoreIntoLocked(ctx context.Context, sessionID ulid.ULID, save *SavedGame) (*PlaySession, error) {
	sess, err := s.engine.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("session_id", sessionID.String()).
			Wrap(err)
	}

	now := time.Now().UTC()
	sess.CurrentNodeID = save.NodeID
	sess.GameState = cloneGameState(save.GameState)
	sess.LastPlayedAt = now
	if save.IsCompleted && !sess.IsCompleted {
		sess.IsCompleted = true
		sess.CompletedAt = &now
	}

	if err := s.engine.sessions.Update(ctx, sess); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		return nil, oops.Code("SESSION_UPDATE_FAILED").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	return sess, nil
}

// List returns the user's saved games, newest first. An empty storyID lists
// saves across all stories.
func (s *Snapshots) List(ctx context.Context, userID, storyID string) ([]*SavedGame, error) {
	saves, err := s.saves.ListByUser(ctx, userID, storyID)
	if err != nil {
		return nil, oops.Code("SAVE_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	return saves, nil
}

// Delete removes one of the user's saved games.
func (s *Snapshots) Delete(ctx context.Context, userID string, savedGameID ulid.ULID) error {
	if _, err := s.getOwnedSave(ctx, userID, savedGameID); err != nil {
		SnapshotOperations.WithLabelValues("delete", StatusError).Inc()
		return err
	}
	if err := s.saves.Delete(ctx, savedGameID); err != nil {
		SnapshotOperations.WithLabelValues("delete", StatusError).Inc()
		return oops.Code("SAVE_DELETE_FAILED").
			With("saved_game_id", savedGameID.String()).
			Wrap(err)
	}
	SnapshotOperations.WithLabelValues("delete", StatusSuccess).Inc()
	return nil
}

func (s *Snapshots) getOwnedSave(ctx context.Context, userID string, id ulid.ULID) (*SavedGame, error) {
	save, err := s.saves.Get(ctx, id)
	if err != nil {
		return nil, oops.Code("SAVE_GET_FAILED").With("saved_game_id", id.String()).Wrap(err)
	}
	if save.UserID != userID {
		return nil, oops.Code("SAVE_NOT_FOUND").With("saved_game_id", id.String()).Wrap(ErrNotFound)
	}
	return save, nil
}

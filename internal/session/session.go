// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

// Package session implements play sessions over the story graph: the state
// machine that advances a session choice by choice, and the snapshot manager
// for named save/restore points. All mutation goes through the Engine so the
// per-session lock and optimistic version check cover every write path.
package session

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// PlaySession is one user's play-through of a story. GameState holds the
// character state map persisted as JSONB; Version backs the optimistic
// concurrency check and is managed by the repository.
type PlaySession struct {
	ID            ulid.ULID
	UserID        string
	StoryID       string
	CurrentNodeID string
	GameState     map[string]any
	IsCompleted   bool
	StartedAt     time.Time
	LastPlayedAt  time.Time
	CompletedAt   *time.Time
	Version       int64
}

// cloneGameState deep-copies a game-state map so a snapshot or a listed
// session never aliases live state. Only JSON-shaped values (maps, slices,
// scalars) occur in game state.
func cloneGameState(state map[string]any) map[string]any {
	if state == nil {
		return nil
	}
	cloned := cloneValue(state)
	return cloned.(map[string]any)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// SavedGame is an immutable named snapshot of a session's position and state.
// Created by Save, consumed by Load, never updated in place.
type SavedGame struct {
	ID          ulid.ULID
	UserID      string
	SessionID   ulid.ULID
	StoryID     string
	Name        string
	NodeID      string
	GameState   map[string]any
	IsCompleted bool
	CreatedAt   time.Time
}

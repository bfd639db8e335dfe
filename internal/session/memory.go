// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package session

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
)

// MemoryRepository is an in-memory Repository used for tests and local runs.
// It enforces the same optimistic version contract as the postgres
// implementation.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[ulid.ULID]*PlaySession
}

// NewMemoryRepository creates an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[ulid.ULID]*PlaySession)}
}

// Create persists a new session.
func (r *MemoryRepository) Create(_ context.Context, sess *PlaySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = cloneSession(sess)
	return nil
}

// Get retrieves a session by ID.
func (r *MemoryRepository) Get(_ context.Context, id ulid.ULID) (*PlaySession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

// Update persists session changes, failing with ErrVersionConflict when the
// stored version no longer matches the version the caller read.
func (r *MemoryRepository) Update(_ context.Context, sess *PlaySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[sess.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != sess.Version {
		return ErrVersionConflict
	}
	updated := cloneSession(sess)
	updated.Version++
	r.sessions[sess.ID] = updated
	sess.Version = updated.Version
	return nil
}

// ListByUser returns the user's sessions, newest LastPlayedAt first.
func (r *MemoryRepository) ListByUser(_ context.Context, userID, storyID string) ([]*PlaySession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*PlaySession
	for _, sess := range r.sessions {
		if sess.UserID != userID {
			continue
		}
		if storyID != "" && sess.StoryID != storyID {
			continue
		}
		out = append(out, cloneSession(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastPlayedAt.After(out[j].LastPlayedAt)
	})
	return out, nil
}

func cloneSession(sess *PlaySession) *PlaySession {
	cloned := *sess
	cloned.GameState = cloneGameState(sess.GameState)
	if sess.CompletedAt != nil {
		t := *sess.CompletedAt
		cloned.CompletedAt = &t
	}
	return &cloned
}

// MemorySavedGameRepository is an in-memory SavedGameRepository for tests
// and local runs.
type MemorySavedGameRepository struct {
	mu    sync.RWMutex
	saves map[ulid.ULID]*SavedGame
}

// NewMemorySavedGameRepository creates an empty in-memory saved game repository.
func NewMemorySavedGameRepository() *MemorySavedGameRepository {
	return &MemorySavedGameRepository{saves: make(map[ulid.ULID]*SavedGame)}
}

// Create persists a new saved game.
func (r *MemorySavedGameRepository) Create(_ context.Context, save *SavedGame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves[save.ID] = cloneSave(save)
	return nil
}

// Get retrieves a saved game by ID.
func (r *MemorySavedGameRepository) Get(_ context.Context, id ulid.ULID) (*SavedGame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	save, ok := r.saves[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSave(save), nil
}

// ListByUser returns the user's saved games, newest first.
func (r *MemorySavedGameRepository) ListByUser(_ context.Context, userID, storyID string) ([]*SavedGame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*SavedGame
	for _, save := range r.saves {
		if save.UserID != userID {
			continue
		}
		if storyID != "" && save.StoryID != storyID {
			continue
		}
		out = append(out, cloneSave(save))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a saved game by ID.
func (r *MemorySavedGameRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.saves[id]; !ok {
		return ErrNotFound
	}
	delete(r.saves, id)
	return nil
}

func cloneSave(save *SavedGame) *SavedGame {
	cloned := *save
	cloned.GameState = cloneGameState(save.GameState)
	return &cloned
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package session

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Repository manages play session persistence.
type Repository interface {
	// Create persists a new session. The session's Version must be 1.
	Create(ctx context.Context, sess *PlaySession) error

	// Get retrieves a session by ID. Returns ErrNotFound when missing.
	Get(ctx context.Context, id ulid.ULID) (*PlaySession, error)

	// Update persists session changes with an optimistic version check:
	// the write succeeds only against the version the session was read at,
	// then increments it. Returns ErrVersionConflict when a concurrent
	// writer got there first.
	Update(ctx context.Context, sess *PlaySession) error

	// ListByUser returns the user's sessions, newest LastPlayedAt first.
	// An empty storyID returns sessions across all stories.
	ListByUser(ctx context.Context, userID, storyID string) ([]*PlaySession, error)
}

// SavedGameRepository manages saved game persistence. Saved games are
// immutable; there is no update operation.
type SavedGameRepository interface {
	// Create persists a new saved game.
	Create(ctx context.Context, save *SavedGame) error

	// Get retrieves a saved game by ID. Returns ErrNotFound when missing.
	Get(ctx context.Context, id ulid.ULID) (*SavedGame, error)

	// ListByUser returns the user's saved games, newest first. An empty
	// storyID returns saves across all stories.
	ListByUser(ctx context.Context, userID, storyID string) ([]*SavedGame, error)

	// Delete removes a saved game by ID. Returns ErrNotFound when missing.
	Delete(ctx context.Context, id ulid.ULID) error
}

// Achievement event types emitted by the engine.
const (
	EventSessionsStarted = "play_sessions_started"
	EventChoicesMade     = "choices_made"
	EventStoryCompleted  = "story_completed"
)

// AchievementEvent describes a gameplay milestone handed to the platform's
// achievement system.
type AchievementEvent struct {
	Type      string
	UserID    string
	SessionID ulid.ULID
	StoryID   string
}

// AchievementNotifier receives gameplay milestones and reports any
// achievements they unlocked. A notifier failure is logged and never rolls
// back the gameplay write that triggered it.
type AchievementNotifier interface {
	Notify(ctx context.Context, event AchievementEvent) ([]string, error)
}

// AnalyticsEvent is one gameplay fact recorded for analysis.
type AnalyticsEvent struct {
	Type       string
	UserID     string
	SessionID  ulid.ULID
	StoryID    string
	NodeID     string
	ChoiceID   string
	OccurredAt time.Time
}

// AnalyticsRecorder ingests gameplay events. Recording is best-effort: the
// engine logs failures and moves on.
type AnalyticsRecorder interface {
	Record(ctx context.Context, event AnalyticsEvent) error
}

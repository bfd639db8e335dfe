// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package session

import "errors"

// Sentinel errors returned by the session engine and snapshot manager.
// Callers match with errors.Is; services attach context via oops wrapping.
var (
	// ErrNotFound is returned when a session or saved game does not exist or
	// belongs to a different user. Ownership failures deliberately look
	// identical to missing rows.
	ErrNotFound = errors.New("not found")

	// ErrSessionCompleted is returned when a mutation targets a completed
	// session. Completed is terminal.
	ErrSessionCompleted = errors.New("session is completed")

	// ErrChoiceNotFound is returned when the choice does not originate from
	// the session's current node.
	ErrChoiceNotFound = errors.New("choice not found at current node")

	// ErrChoiceUnavailable is returned when a choice exists but its
	// conditions do not hold against the current game state.
	ErrChoiceUnavailable = errors.New("choice conditions not met")

	// ErrStoryNotPublished is returned when starting a session on a story
	// that is not in the published state.
	ErrStoryNotPublished = errors.New("story is not published")

	// ErrNoStartingNode is returned when a story has no nodes to start from.
	ErrNoStartingNode = errors.New("story has no starting node")

	// ErrNodeNotFound is returned when a node id does not resolve against
	// the story graph. On an existing session this indicates content drift.
	ErrNodeNotFound = errors.New("node not found in story")

	// ErrVersionConflict is returned by repositories when an optimistic
	// update lost the race against a concurrent writer.
	ErrVersionConflict = errors.New("session version conflict")
)

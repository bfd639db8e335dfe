// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/fableforge/fableforge/internal/expr"
	"github.com/fableforge/fableforge/internal/rules"
	"github.com/fableforge/fableforge/internal/story"
)

// EngineConfig holds dependencies for Engine. Stories and Sessions are
// required; the notifier, recorder, and logger are optional.
type EngineConfig struct {
	Stories      story.Provider
	Sessions     Repository
	Achievements AchievementNotifier
	Analytics    AnalyticsRecorder
	Logger       *slog.Logger
}

// Engine is the session state machine. Sessions move Active -> Completed and
// never back; every write path runs under a per-session lock plus the
// repository's optimistic version check, so concurrent choices on the same
// session serialize instead of clobbering each other.
type Engine struct {
	stories      story.Provider
	sessions     Repository
	achievements AchievementNotifier
	analytics    AnalyticsRecorder
	logger       *slog.Logger
	locks        *keyedMutex
}

// NewEngine creates a new Engine with the given configuration.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		stories:      cfg.Stories,
		sessions:     cfg.Sessions,
		achievements: cfg.Achievements,
		analytics:    cfg.Analytics,
		logger:       logger,
		locks:        newKeyedMutex(),
	}
}

// StartResult is the outcome of starting a session.
type StartResult struct {
	Session  *PlaySession
	Node     *story.Node
	Unlocked []string
}

// Start begins a new play-through of a published story. Each call creates a
// fresh session; a user may run several sessions of the same story at once.
// An empty startingNodeID selects the story's first node. Game state is
// initialized from the story's ruleset when it has one.
func (e *Engine) Start(ctx context.Context, userID, storyID, startingNodeID string) (*StartResult, error) {
	st, err := e.getStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if st.Status != story.StatusPublished {
		return nil, oops.Code("STORY_NOT_PUBLISHED").
			With("story_id", storyID).
			With("status", st.Status.String()).
			Wrap(ErrStoryNotPublished)
	}

	var node *story.Node
	if startingNodeID == "" {
		first, ok := st.FirstNode()
		if !ok {
			return nil, oops.Code("NO_STARTING_NODE").With("story_id", storyID).Wrap(ErrNoStartingNode)
		}
		node = first
	} else {
		found, ok := st.Node(startingNodeID)
		if !ok {
			return nil, oops.Code("NODE_NOT_FOUND").
				With("story_id", storyID).
				With("node_id", startingNodeID).
				Wrap(ErrNodeNotFound)
		}
		node = found
	}

	gameState := map[string]any{}
	if st.Ruleset != nil {
		gameState = rules.NewCharacterState(st.TemplateID, st.Ruleset).ToMap()
	}

	now := time.Now().UTC()
	sess := &PlaySession{
		ID:            ulid.Make(),
		UserID:        userID,
		StoryID:       storyID,
		CurrentNodeID: node.ID,
		GameState:     gameState,
		StartedAt:     now,
		LastPlayedAt:  now,
		Version:       1,
	}
	if err := e.sessions.Create(ctx, sess); err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").With("story_id", storyID).Wrap(err)
	}

	SessionsStarted.WithLabelValues(storyID).Inc()
	e.record(ctx, AnalyticsEvent{
		Type:       EventSessionsStarted,
		UserID:     userID,
		SessionID:  sess.ID,
		StoryID:    storyID,
		NodeID:     node.ID,
		OccurredAt: now,
	})
	unlocked := e.notify(ctx, AchievementEvent{
		Type:      EventSessionsStarted,
		UserID:    userID,
		SessionID: sess.ID,
		StoryID:   storyID,
	})

	return &StartResult{Session: sess, Node: node, Unlocked: unlocked}, nil
}

// CurrentNode resolves the session's current position against the story graph.
func (e *Engine) CurrentNode(ctx context.Context, userID string, sessionID ulid.ULID) (*story.Node, error) {
	sess, err := e.getOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	st, err := e.getStory(ctx, sess.StoryID)
	if err != nil {
		return nil, err
	}
	node, ok := st.Node(sess.CurrentNodeID)
	if !ok {
		// The session points at a node the story no longer has. Surfacing
		// this beats silently resetting the player's position.
		return nil, oops.Code("NODE_NOT_FOUND").
			With("session_id", sessionID.String()).
			With("node_id", sess.CurrentNodeID).
			Wrap(ErrNodeNotFound)
	}
	return node, nil
}

// ChoiceOutcome is the result of resolving one choice.
type ChoiceOutcome struct {
	Session  *PlaySession
	Node     *story.Node
	Ended    bool
	Unlocked []string
}

// MakeChoice advances the session along a choice from its current node.
//
// The choice's conditions are evaluated against the game state first; a
// condition that is false or fails to evaluate makes the choice unavailable.
// Its effects then run server-side against a snapshot of the pre-choice
// state, the optional caller delta is merged on top, and reaching a node
// with no outgoing choices completes the session. The read-evaluate-persist
// cycle runs under the per-session lock; a version conflict from another
// writer is retried once.
func (e *Engine) MakeChoice(ctx context.Context, userID string, sessionID ulid.ULID, choiceID string, stateDelta map[string]any) (*ChoiceOutcome, error) {
	unlock := e.locks.lock(sessionID.String())
	defer unlock()

	started := time.Now()
	outcome, err := e.makeChoiceLocked(ctx, userID, sessionID, choiceID, stateDelta)
	if errors.Is(err, ErrVersionConflict) {
		outcome, err = e.makeChoiceLocked(ctx, userID, sessionID, choiceID, stateDelta)
	}

	storyLabel := ""
	if outcome != nil && outcome.Session != nil {
		storyLabel = outcome.Session.StoryID
		ChoiceDuration.WithLabelValues(storyLabel).Observe(time.Since(started).Seconds())
	}
	ChoicesMade.WithLabelValues(storyLabel, choiceStatus(err)).Inc()

	return outcome, err
}

func (e *Engine) makeChoiceLocked(ctx context.Context, userID string, sessionID ulid.ULID, choiceID string, stateDelta map[string]any) (*ChoiceOutcome, error) {
	sess, err := e.getOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsCompleted {
		return nil, oops.Code("SESSION_COMPLETED").
			With("session_id", sessionID.String()).
			Wrap(ErrSessionCompleted)
	}

	st, err := e.getStory(ctx, sess.StoryID)
	if err != nil {
		return nil, err
	}
	node, ok := st.Node(sess.CurrentNodeID)
	if !ok {
		return nil, oops.Code("NODE_NOT_FOUND").
			With("node_id", sess.CurrentNodeID).
			Wrap(ErrNodeNotFound)
	}
	choice, ok := node.Choice(choiceID)
	if !ok {
		return nil, oops.Code("CHOICE_NOT_FOUND").
			With("node_id", node.ID).
			With("choice_id", choiceID).
			Wrap(ErrChoiceNotFound)
	}

	state := rules.StateFromMap(sess.GameState)

	if err := checkConditions(choice.Conditions, state); err != nil {
		return nil, err
	}
	if err := applyEffects(state, st.Ruleset, choice.Effects); err != nil {
		return nil, oops.Code("EFFECT_FAILED").
			With("choice_id", choiceID).
			Wrap(err)
	}
	state.ApplyDelta(stateDelta, st.Ruleset)

	dest, ok := st.Node(choice.ToNodeID)
	if !ok {
		return nil, oops.Code("NODE_NOT_FOUND").
			With("node_id", choice.ToNodeID).
			Wrap(ErrNodeNotFound)
	}

	now := time.Now().UTC()
	sess.CurrentNodeID = dest.ID
	sess.GameState = state.ToMap()
	sess.LastPlayedAt = now
	ended := dest.IsEnding()
	if ended {
		sess.IsCompleted = true
		sess.CompletedAt = &now
	}

	if err := e.sessions.Update(ctx, sess); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		return nil, oops.Code("SESSION_UPDATE_FAILED").
			With("session_id", sessionID.String()).
			Wrap(err)
	}

	e.record(ctx, AnalyticsEvent{
		Type:       EventChoicesMade,
		UserID:     userID,
		SessionID:  sess.ID,
		StoryID:    sess.StoryID,
		NodeID:     dest.ID,
		ChoiceID:   choiceID,
		OccurredAt: now,
	})
	unlocked := e.notify(ctx, AchievementEvent{
		Type:      EventChoicesMade,
		UserID:    userID,
		SessionID: sess.ID,
		StoryID:   sess.StoryID,
	})
	if ended {
		SessionsCompleted.WithLabelValues(sess.StoryID).Inc()
		e.record(ctx, AnalyticsEvent{
			Type:       EventStoryCompleted,
			UserID:     userID,
			SessionID:  sess.ID,
			StoryID:    sess.StoryID,
			NodeID:     dest.ID,
			OccurredAt: now,
		})
		unlocked = append(unlocked, e.notify(ctx, AchievementEvent{
			Type:      EventStoryCompleted,
			UserID:    userID,
			SessionID: sess.ID,
			StoryID:   sess.StoryID,
		})...)
	}

	return &ChoiceOutcome{Session: sess, Node: dest, Ended: ended, Unlocked: unlocked}, nil
}

// StatePatch is an out-of-band session update. Nil fields are left untouched;
// GameState is a shallow merge of top-level keys.
type StatePatch struct {
	CurrentNodeID *string
	GameState     map[string]any
	IsCompleted   *bool
}

// UpdateGameState patches a session outside the choice flow. Completed
// sessions reject all patches; setting IsCompleted stamps CompletedAt.
func (e *Engine) UpdateGameState(ctx context.Context, userID string, sessionID ulid.ULID, patch StatePatch) (*PlaySession, error) {
	unlock := e.locks.lock(sessionID.String())
	defer unlock()

	sess, err := e.updateLocked(ctx, userID, sessionID, patch)
	if errors.Is(err, ErrVersionConflict) {
		sess, err = e.updateLocked(ctx, userID, sessionID, patch)
	}
	return sess, err
}

func (e *Engine) updateLocked(ctx context.Context, userID string, sessionID ulid.ULID, patch StatePatch) (*PlaySession, error) {
	sess, err := e.getOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsCompleted {
		return nil, oops.Code("SESSION_COMPLETED").
			With("session_id", sessionID.String()).
			Wrap(ErrSessionCompleted)
	}

	if patch.CurrentNodeID != nil {
		st, err := e.getStory(ctx, sess.StoryID)
		if err != nil {
			return nil, err
		}
		if _, ok := st.Node(*patch.CurrentNodeID); !ok {
			return nil, oops.Code("NODE_NOT_FOUND").
				With("node_id", *patch.CurrentNodeID).
				Wrap(ErrNodeNotFound)
		}
		sess.CurrentNodeID = *patch.CurrentNodeID
	}

	if sess.GameState == nil {
		sess.GameState = map[string]any{}
	}
	for k, v := range patch.GameState {
		sess.GameState[k] = v
	}

	now := time.Now().UTC()
	if patch.IsCompleted != nil && *patch.IsCompleted {
		sess.IsCompleted = true
		sess.CompletedAt = &now
	}
	sess.LastPlayedAt = now

	if err := e.sessions.Update(ctx, sess); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		return nil, oops.Code("SESSION_UPDATE_FAILED").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	return sess, nil
}

// GetSession retrieves one of the user's sessions.
func (e *Engine) GetSession(ctx context.Context, userID string, sessionID ulid.ULID) (*PlaySession, error) {
	return e.getOwned(ctx, userID, sessionID)
}

// ListSessions returns the user's sessions, newest activity first. An empty
// storyID lists sessions across all stories.
func (e *Engine) ListSessions(ctx context.Context, userID, storyID string) ([]*PlaySession, error) {
	sessions, err := e.sessions.ListByUser(ctx, userID, storyID)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	return sessions, nil
}

// getOwned loads a session and enforces ownership. Foreign sessions are
// indistinguishable from missing ones.
func (e *Engine) getOwned(ctx context.Context, userID string, id ulid.ULID) (*PlaySession, error) {
	sess, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("session_id", id.String()).Wrap(err)
	}
	if sess.UserID != userID {
		return nil, oops.Code("SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(ErrNotFound)
	}
	return sess, nil
}

func (e *Engine) getStory(ctx context.Context, storyID string) (*story.Story, error) {
	st, err := e.stories.GetStory(ctx, storyID)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			return nil, oops.Code("STORY_NOT_FOUND").With("story_id", storyID).Wrap(ErrNotFound)
		}
		return nil, oops.Code("STORY_GET_FAILED").With("story_id", storyID).Wrap(err)
	}
	return st, nil
}

// record sends an analytics event, logging failures. Analytics never block
// or abort gameplay.
func (e *Engine) record(ctx context.Context, event AnalyticsEvent) {
	if e.analytics == nil {
		return
	}
	if err := e.analytics.Record(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "analytics record failed",
			"event", event.Type,
			"session_id", event.SessionID.String(),
			"error", err)
	}
}

// notify hands a milestone to the achievement system and returns whatever it
// unlocked. Notifier failures are logged; the gameplay write already
// happened and is never rolled back.
func (e *Engine) notify(ctx context.Context, event AchievementEvent) []string {
	if e.achievements == nil {
		return nil
	}
	unlocked, err := e.achievements.Notify(ctx, event)
	if err != nil {
		e.logger.WarnContext(ctx, "achievement notify failed",
			"event", event.Type,
			"session_id", event.SessionID.String(),
			"error", err)
		return nil
	}
	return unlocked
}

// checkConditions evaluates every condition on a choice. A condition that is
// false or fails to evaluate makes the choice unavailable; it never panics
// the engine or corrupts state.
func checkConditions(conditions map[string]string, state *rules.CharacterState) error {
	if len(conditions) == 0 {
		return nil
	}
	vars := state.EvalContext()
	for _, name := range sortedKeys(conditions) {
		ok, err := expr.EvaluateBool(conditions[name], vars)
		if err != nil {
			return oops.Code("CHOICE_UNAVAILABLE").
				With("condition", name).
				With("eval_error", err.Error()).
				Wrap(ErrChoiceUnavailable)
		}
		if !ok {
			return oops.Code("CHOICE_UNAVAILABLE").
				With("condition", name).
				Wrap(ErrChoiceUnavailable)
		}
	}
	return nil
}

// applyEffects evaluates all effect expressions against a snapshot of the
// pre-choice state, then merges the results in one delta. Evaluating against
// the snapshot makes the outcome independent of effect ordering.
func applyEffects(state *rules.CharacterState, cfg *rules.TemplateConfig, effects map[string]string) error {
	if len(effects) == 0 {
		return nil
	}
	vars := state.EvalContext()
	var statIDs map[string]struct{}
	if cfg != nil {
		statIDs = cfg.StatIDs()
	}

	stats := map[string]any{}
	flags := map[string]any{}
	variables := map[string]any{}
	for _, name := range sortedKeys(effects) {
		value, err := expr.Evaluate(effects[name], vars)
		if err != nil {
			return err
		}
		if _, isStat := statIDs[name]; isStat {
			stats[name] = value
			continue
		}
		if b, isBool := value.(bool); isBool {
			flags[name] = b
			continue
		}
		variables[name] = value
	}

	state.ApplyDelta(map[string]any{
		"stats":     stats,
		"flags":     flags,
		"variables": variables,
	}, cfg)
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func choiceStatus(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrChoiceUnavailable):
		return StatusUnavailable
	case errors.Is(err, ErrSessionCompleted):
		return StatusCompleted
	case errors.Is(err, ErrVersionConflict):
		return StatusConflict
	case errors.Is(err, ErrChoiceNotFound), errors.Is(err, ErrNotFound), errors.Is(err, ErrNodeNotFound):
		return StatusNotFound
	default:
		return StatusError
	}
}

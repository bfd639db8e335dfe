// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package engine_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/fableforge/fableforge/internal/session"
	"github.com/fableforge/fableforge/internal/story"
)

var _ = Describe("Playthrough", func() {
	var (
		ctx context.Context
		env *testEnv
	)

	BeforeEach(func() {
		ctx = context.Background()
		env = newTestEnv(questStory())
	})

	Describe("Starting a session", func() {
		It("seeds game state from the ruleset defaults", func() {
			result, err := env.Engine.Start(ctx, "alice", "quest", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Node.ID).To(Equal("gate"))
			Expect(result.Session.IsCompleted).To(BeFalse())

			stats, ok := result.Session.GameState["stats"].(map[string]any)
			Expect(ok).To(BeTrue(), "game state carries a stats map")
			Expect(stats["strength"]).To(BeNumerically("==", 10))
			Expect(stats["courage"]).To(BeNumerically("==", 0))
		})

		It("creates an independent session per call", func() {
			first, err := env.Engine.Start(ctx, "alice", "quest", "")
			Expect(err).NotTo(HaveOccurred())
			second, err := env.Engine.Start(ctx, "alice", "quest", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Session.ID).NotTo(Equal(second.Session.ID))

			sessions, err := env.Engine.ListSessions(ctx, "alice", "quest")
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(2))
		})

		It("refuses unpublished stories", func() {
			draft := questStory()
			draft.ID = "draft-quest"
			draft.Status = story.StatusDraft
			env.Stories.Put(draft)

			_, err := env.Engine.Start(ctx, "alice", "draft-quest", "")
			Expect(err).To(MatchError(session.ErrStoryNotPublished))
		})
	})

	Describe("Walking the full story", func() {
		It("applies effects, tracks position, and completes at the ending", func() {
			start, err := env.Engine.Start(ctx, "alice", "quest", "")
			Expect(err).NotTo(HaveOccurred())
			id := start.Session.ID

			// Gate -> trial, forcing the gate (condition strength >= 5 holds).
			outcome, err := env.Engine.MakeChoice(ctx, "alice", id, "force", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Node.ID).To(Equal("trial"))
			Expect(outcome.Ended).To(BeFalse())

			stats := outcome.Session.GameState["stats"].(map[string]any)
			Expect(stats["courage"]).To(BeNumerically("==", 1), "effect courage + 1 applied")

			// Trial -> hall, which has no outgoing choices.
			outcome, err = env.Engine.MakeChoice(ctx, "alice", id, "endure", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Node.ID).To(Equal("hall"))
			Expect(outcome.Ended).To(BeTrue())

			stats = outcome.Session.GameState["stats"].(map[string]any)
			Expect(stats["strength"]).To(BeNumerically("==", 12), "effect strength + 2 applied")

			final, err := env.Engine.GetSession(ctx, "alice", id)
			Expect(err).NotTo(HaveOccurred())
			Expect(final.IsCompleted).To(BeTrue())
			Expect(final.CompletedAt).NotTo(BeNil())
			Expect(final.CurrentNodeID).To(Equal("hall"))
		})

		It("rejects further choices once completed", func() {
			start, err := env.Engine.Start(ctx, "alice", "quest", "trial")
			Expect(err).NotTo(HaveOccurred())

			outcome, err := env.Engine.MakeChoice(ctx, "alice", start.Session.ID, "endure", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Ended).To(BeTrue())

			_, err = env.Engine.MakeChoice(ctx, "alice", start.Session.ID, "endure", nil)
			Expect(err).To(MatchError(session.ErrSessionCompleted))
		})

		It("gates choices on their conditions", func() {
			start, err := env.Engine.Start(ctx, "alice", "quest", "")
			Expect(err).NotTo(HaveOccurred())

			// Drain strength below the condition threshold.
			_, err = env.Engine.UpdateGameState(ctx, "alice", start.Session.ID, session.StatePatch{
				GameState: map[string]any{
					"stats": map[string]any{"strength": float64(2), "courage": float64(0)},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Engine.MakeChoice(ctx, "alice", start.Session.ID, "force", nil)
			Expect(err).To(MatchError(session.ErrChoiceUnavailable))

			// The ungated detour still works.
			outcome, err := env.Engine.MakeChoice(ctx, "alice", start.Session.ID, "detour", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Node.ID).To(Equal("trial"))
		})

		It("keeps sessions owner-scoped", func() {
			start, err := env.Engine.Start(ctx, "alice", "quest", "")
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Engine.MakeChoice(ctx, "mallory", start.Session.ID, "force", nil)
			Expect(err).To(MatchError(session.ErrNotFound))
		})
	})

	Describe("Saving and restoring", func() {
		It("rewinds a session to a snapshot taken earlier", func() {
			start, err := env.Engine.Start(ctx, "alice", "quest", "")
			Expect(err).NotTo(HaveOccurred())
			id := start.Session.ID

			save, err := env.Snapshots.Save(ctx, "alice", id, "before the gate")
			Expect(err).NotTo(HaveOccurred())
			Expect(save.Name).To(Equal("before the gate"))

			_, err = env.Engine.MakeChoice(ctx, "alice", id, "force", nil)
			Expect(err).NotTo(HaveOccurred())

			restored, err := env.Snapshots.Load(ctx, "alice", save.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored.ID).To(Equal(id), "restores into the originating session")
			Expect(restored.CurrentNodeID).To(Equal("gate"))

			stats := restored.GameState["stats"].(map[string]any)
			Expect(stats["courage"]).To(BeNumerically("==", 0), "state rewound")
		})

		It("creates a fresh session when the original completed", func() {
			start, err := env.Engine.Start(ctx, "alice", "quest", "trial")
			Expect(err).NotTo(HaveOccurred())
			id := start.Session.ID

			save, err := env.Snapshots.Save(ctx, "alice", id, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(save.Name).To(HavePrefix("Save "), "default name is timestamped")

			outcome, err := env.Engine.MakeChoice(ctx, "alice", id, "endure", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Ended).To(BeTrue())

			restored, err := env.Snapshots.Load(ctx, "alice", save.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored.ID).NotTo(Equal(id), "completed sessions are never reopened")
			Expect(restored.IsCompleted).To(BeFalse())
			Expect(restored.CurrentNodeID).To(Equal("trial"))
		})

		It("lists and deletes saves owner-scoped", func() {
			start, err := env.Engine.Start(ctx, "alice", "quest", "")
			Expect(err).NotTo(HaveOccurred())

			save, err := env.Snapshots.Save(ctx, "alice", start.Session.ID, "")
			Expect(err).NotTo(HaveOccurred())

			saves, err := env.Snapshots.List(ctx, "alice", "quest")
			Expect(err).NotTo(HaveOccurred())
			Expect(saves).To(HaveLen(1))

			err = env.Snapshots.Delete(ctx, "mallory", save.ID)
			Expect(err).To(MatchError(session.ErrNotFound))

			Expect(env.Snapshots.Delete(ctx, "alice", save.ID)).To(Succeed())

			saves, err = env.Snapshots.List(ctx, "alice", "quest")
			Expect(err).NotTo(HaveOccurred())
			Expect(saves).To(BeEmpty())
		})
	})

	Describe("A one-choice story", func() {
		It("completes at the ending node", func() {
			tiny := &story.Story{
				ID:     "one-shot",
				Status: story.StatusPublished,
				Nodes: []story.Node{
					{
						ID:      "opening",
						StoryID: "one-shot",
						Content: "It begins.",
						Choices: []story.Choice{
							{ID: "leap", FromNodeID: "opening", ToNodeID: "the-end", Text: "Leap"},
						},
					},
					{ID: "the-end", StoryID: "one-shot", Content: "It ends."},
				},
			}
			env.Stories.Put(tiny)

			start, err := env.Engine.Start(ctx, "bob", "one-shot", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(start.Session.GameState).To(BeEmpty(), "no ruleset means empty state")

			outcome, err := env.Engine.MakeChoice(ctx, "bob", start.Session.ID, "leap", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Ended).To(BeTrue())
			Expect(outcome.Session.CurrentNodeID).To(Equal("the-end"))
		})
	})
})

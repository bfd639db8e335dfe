// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package engine_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/fableforge/fableforge/internal/rules"
	"github.com/fableforge/fableforge/internal/session"
	"github.com/fableforge/fableforge/internal/story"
)

func TestEngine(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Engine End-to-End Suite")
}

// testEnv wires the engine and snapshot services over in-memory dependencies.
type testEnv struct {
	Stories   *story.MemoryProvider
	Engine    *session.Engine
	Snapshots *session.Snapshots
}

func newTestEnv(stories ...*story.Story) *testEnv {
	provider := story.NewMemoryProvider(stories...)
	engine := session.NewEngine(session.EngineConfig{
		Stories:  provider,
		Sessions: session.NewMemoryRepository(),
	})
	snapshots := session.NewSnapshots(session.SnapshotsConfig{
		Engine:     engine,
		SavedGames: session.NewMemorySavedGameRepository(),
	})
	return &testEnv{Stories: provider, Engine: engine, Snapshots: snapshots}
}

func floatPtr(f float64) *float64 { return &f }

// questRuleset is a small fantasy ruleset with a clamped strength stat and a
// courage counter.
func questRuleset() *rules.TemplateConfig {
	return &rules.TemplateConfig{
		Version: "1.0.0",
		Stats: []rules.StatDefinition{
			{
				ID:           "strength",
				Name:         "Strength",
				Type:         rules.StatNumber,
				DefaultValue: float64(10),
				MinValue:     floatPtr(0),
				MaxValue:     floatPtr(20),
			},
			{
				ID:           "courage",
				Name:         "Courage",
				Type:         rules.StatNumber,
				DefaultValue: float64(0),
			},
		},
	}
}

// questStory is a three-act story: the gate forks into a trial (gated on
// strength) or a detour, both leading to the hall, which ends the story.
func questStory() *story.Story {
	return &story.Story{
		ID:      "quest",
		Title:   "The Iron Gate",
		Status:  story.StatusPublished,
		Ruleset: questRuleset(),
		Nodes: []story.Node{
			{
				ID:      "gate",
				StoryID: "quest",
				Content: "A rusted gate bars the way.",
				Choices: []story.Choice{
					{
						ID:         "force",
						FromNodeID: "gate",
						ToNodeID:   "trial",
						Text:       "Force the gate open",
						Conditions: map[string]string{"strong_enough": "strength >= 5"},
						Effects:    map[string]string{"courage": "courage + 1"},
					},
					{
						ID:         "detour",
						FromNodeID: "gate",
						ToNodeID:   "trial",
						Text:       "Climb the wall instead",
					},
				},
			},
			{
				ID:      "trial",
				StoryID: "quest",
				Content: "Beyond the gate, a trial awaits.",
				Choices: []story.Choice{
					{
						ID:         "endure",
						FromNodeID: "trial",
						ToNodeID:   "hall",
						Text:       "Endure the trial",
						Effects:    map[string]string{"strength": "strength + 2"},
					},
				},
			},
			{
				ID:      "hall",
				StoryID: "quest",
				Content: "You stand victorious in the hall.",
			},
		},
	}
}

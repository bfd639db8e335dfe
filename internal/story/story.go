// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

// Package story contains the read-only narrative graph types consumed by the
// session engine. Stories, nodes, and choices are authored content: the
// engine never mutates them, so a single Story value may be shared across
// concurrent sessions.
package story

import (
	"github.com/fableforge/fableforge/internal/rules"
)

// Status identifies a story's lifecycle state. Only published stories can be
// played.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Story is one authored narrative: a graph of nodes connected by choices,
// optionally carrying a ruleset that governs character state for its sessions.
type Story struct {
	ID         string
	Title      string
	Status     Status
	TemplateID string
	Ruleset    *rules.TemplateConfig
	Nodes      []Node
}

// Node is one scene in the story graph. A node with no outgoing choices is an
// ending.
type Node struct {
	ID      string
	StoryID string
	Content string
	Choices []Choice
}

// Choice is one directed edge out of a node. Conditions gate availability
// against the session's game state; Effects are applied to the state when the
// choice is taken. Both are expression maps evaluated server-side.
type Choice struct {
	ID         string
	FromNodeID string
	ToNodeID   string
	Text       string

	// Conditions maps variable names to boolean expressions; every expression
	// must hold for the choice to be available.
	Conditions map[string]string

	// Effects maps variable names to expressions evaluated over the current
	// state; results are merged into the state when the choice is taken.
	Effects map[string]string
}

// Node returns the node with the given id.
func (s *Story) Node(id string) (*Node, bool) {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i], true
		}
	}
	return nil, false
}

// FirstNode returns the story's first node in authored order.
func (s *Story) FirstNode() (*Node, bool) {
	if len(s.Nodes) == 0 {
		return nil, false
	}
	return &s.Nodes[0], true
}

// Choice returns the outgoing choice with the given id.
func (n *Node) Choice(id string) (*Choice, bool) {
	for i := range n.Choices {
		if n.Choices[i].ID == id {
			return &n.Choices[i], true
		}
	}
	return nil, false
}

// IsEnding reports whether the node terminates the story.
func (n *Node) IsEnding() bool {
	return len(n.Choices) == 0
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package story

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/fableforge/fableforge/internal/rules"
)

// storyDoc is the YAML shape of an authored story file. The ruleset block is
// kept raw and handed to rules.DecodeDocument so it goes through the same
// schema validation as a standalone ruleset file.
type storyDoc struct {
	ID         string    `yaml:"id"`
	Title      string    `yaml:"title"`
	Status     string    `yaml:"status"`
	TemplateID string    `yaml:"template_id"`
	Ruleset    yaml.Node `yaml:"ruleset"`
	Nodes      []nodeDoc `yaml:"nodes"`
}

type nodeDoc struct {
	ID      string      `yaml:"id"`
	Content string      `yaml:"content"`
	Choices []choiceDoc `yaml:"choices"`
}

type choiceDoc struct {
	ID         string            `yaml:"id"`
	To         string            `yaml:"to"`
	Text       string            `yaml:"text"`
	Conditions map[string]string `yaml:"conditions"`
	Effects    map[string]string `yaml:"effects"`
}

// DecodeStory parses one authored story document. Status defaults to
// published; StoryID and FromNodeID are filled in from position so authors
// never repeat them. Every choice must point at a node in the same story.
func DecodeStory(data []byte) (*Story, error) {
	var doc storyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code("STORY_PARSE_FAILED").Wrapf(err, "failed to parse story document")
	}

	if doc.ID == "" {
		return nil, oops.Code("STORY_INVALID").Errorf("story id is required")
	}
	if len(doc.Nodes) == 0 {
		return nil, oops.Code("STORY_INVALID").With("story", doc.ID).Errorf("story has no nodes")
	}

	status := Status(doc.Status)
	if doc.Status == "" {
		status = StatusPublished
	}
	switch status {
	case StatusDraft, StatusPublished, StatusArchived:
	default:
		return nil, oops.
			Code("STORY_INVALID").
			With("story", doc.ID).
			With("status", doc.Status).
			Errorf("unknown story status")
	}

	s := &Story{
		ID:         doc.ID,
		Title:      doc.Title,
		Status:     status,
		TemplateID: doc.TemplateID,
	}

	if !doc.Ruleset.IsZero() {
		raw, err := yaml.Marshal(&doc.Ruleset)
		if err != nil {
			return nil, oops.Code("STORY_PARSE_FAILED").With("story", doc.ID).Wrap(err)
		}
		ruleset, err := rules.DecodeDocument(raw)
		if err != nil {
			return nil, oops.
				Code("STORY_INVALID").
				With("story", doc.ID).
				Wrapf(err, "invalid embedded ruleset")
		}
		s.Ruleset = ruleset
	}

	nodeIDs := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return nil, oops.Code("STORY_INVALID").With("story", doc.ID).Errorf("node id is required")
		}
		if nodeIDs[n.ID] {
			return nil, oops.
				Code("STORY_INVALID").
				With("story", doc.ID).
				With("node", n.ID).
				Errorf("duplicate node id")
		}
		nodeIDs[n.ID] = true
	}

	for _, n := range doc.Nodes {
		node := Node{
			ID:      n.ID,
			StoryID: doc.ID,
			Content: n.Content,
		}
		for _, c := range n.Choices {
			if !nodeIDs[c.To] {
				return nil, oops.
					Code("STORY_INVALID").
					With("story", doc.ID).
					With("node", n.ID).
					With("choice", c.ID).
					With("to", c.To).
					Errorf("choice points at unknown node")
			}
			node.Choices = append(node.Choices, Choice{
				ID:         c.ID,
				FromNodeID: n.ID,
				ToNodeID:   c.To,
				Text:       c.Text,
				Conditions: c.Conditions,
				Effects:    c.Effects,
			})
		}
		s.Nodes = append(s.Nodes, node)
	}

	return s, nil
}

// LoadDir reads every .yaml/.yml file in dir as a story document, sorted by
// file name so load order is stable.
func LoadDir(dir string) ([]*Story, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, oops.Code("STORY_DIR_FAILED").With("dir", dir).Wrap(err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	stories := make([]*Story, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the scanned directory
		if err != nil {
			return nil, oops.Code("STORY_DIR_FAILED").With("path", path).Wrap(err)
		}
		s, err := DecodeStory(data)
		if err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if prev, dup := seen[s.ID]; dup {
			return nil, oops.
				Code("STORY_INVALID").
				With("story", s.ID).
				With("path", path).
				With("previous", prev).
				Errorf("duplicate story id across files")
		}
		seen[s.ID] = path
		stories = append(stories, s)
	}

	return stories, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fableforge Contributors

package story

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a story does not exist.
var ErrNotFound = errors.New("story not found")

// Provider supplies narrative content to the session engine. Implementations
// must return stories whose graphs are safe for concurrent reads.
type Provider interface {
	// GetStory retrieves a story by id, including its full node graph.
	GetStory(ctx context.Context, storyID string) (*Story, error)
}

// MemoryProvider is an in-memory Provider used for tests and content seeding.
type MemoryProvider struct {
	mu      sync.RWMutex
	stories map[string]*Story
}

// NewMemoryProvider creates a provider holding the given stories.
func NewMemoryProvider(stories ...*Story) *MemoryProvider {
	p := &MemoryProvider{stories: make(map[string]*Story, len(stories))}
	for _, s := range stories {
		p.stories[s.ID] = s
	}
	return p
}

// Put adds or replaces a story.
func (p *MemoryProvider) Put(s *Story) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stories[s.ID] = s
}

// GetStory retrieves a story by id.
func (p *MemoryProvider) GetStory(_ context.Context, storyID string) (*Story, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.stories[storyID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

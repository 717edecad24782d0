package store

import (
	"context"
	"slices"
	"sync"

	"github.com/Keksclan/linkSquirrel/linkpage"
)

// Memory is an in-process [Accessor]. Records are copied on the way in and
// out, so callers never share them with the store.
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]*linkpage.Profile
	pages    map[string]*linkpage.AIPage
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[string]*linkpage.Profile),
		pages:    make(map[string]*linkpage.AIPage),
	}
}

// FindProfile implements [linkpage.ProfileStore].
func (m *Memory) FindProfile(_ context.Context, username string) (*linkpage.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[username]
	if !ok {
		return nil, false, nil
	}
	return cloneProfile(p), true, nil
}

// SaveProfile implements [linkpage.ProfileStore].
func (m *Memory) SaveProfile(_ context.Context, p *linkpage.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Username] = cloneProfile(p)
	return nil
}

// FindAIPage implements [linkpage.AIPageStore].
func (m *Memory) FindAIPage(_ context.Context, slug string) (*linkpage.AIPage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[slug]
	if !ok {
		return nil, false, nil
	}
	cp := *p
	return &cp, true, nil
}

// SaveAIPage implements [linkpage.AIPageStore].
func (m *Memory) SaveAIPage(_ context.Context, p *linkpage.AIPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.pages[p.Slug] = &cp
	return nil
}

// DeleteAIPage implements [linkpage.AIPageStore].
func (m *Memory) DeleteAIPage(_ context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[slug]; !ok {
		return ErrNotFound
	}
	delete(m.pages, slug)
	return nil
}

func cloneProfile(p *linkpage.Profile) *linkpage.Profile {
	cp := *p
	cp.Links = slices.Clone(p.Links)
	return &cp
}

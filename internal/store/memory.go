package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DoyleJ11/tabletop-sync/internal/game"
)

// Memory keeps sessions in process. Used when no database is configured
// and in tests.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]game.Session
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]game.Session), now: time.Now}
}

func (m *Memory) Create(_ context.Context, s game.Session) (game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if _, ok := m.sessions[s.ID]; ok {
		return game.Session{}, fmt.Errorf("session %s already exists", s.ID)
	}
	s.CreatedAt = m.now()
	s.UpdatedAt = s.CreatedAt
	m.sessions[s.ID] = s.Clone()
	return s, nil
}

func (m *Memory) Get(_ context.Context, id string, mode Mode) (game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return game.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return view(s.Clone(), mode), nil
}

func (m *Memory) Update(_ context.Context, id string, p game.Patch) (game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return game.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	s = s.Clone()
	p.ApplyTo(&s)
	s.UpdatedAt = m.now()
	m.sessions[id] = s
	return s.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}

func (m *Memory) List(_ context.Context, campaignID string) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0, len(m.sessions))
	for _, s := range m.sessions {
		if campaignID == "" || s.CampaignID == campaignID {
			out = append(out, summarize(s))
		}
	}
	slices.SortFunc(out, func(a, b Summary) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}

// MemoryCatalog is a fixed catalog for tests and local play.
type MemoryCatalog struct {
	Cards     []game.Card
	Campaigns map[string]Campaign
}

func (c *MemoryCatalog) CardsByType(_ context.Context, t game.CardType) ([]game.Card, error) {
	var out []game.Card
	for _, card := range c.Cards {
		if card.Type == t {
			out = append(out, card)
		}
	}
	return out, nil
}

func (c *MemoryCatalog) Campaign(_ context.Context, id string) (Campaign, error) {
	camp, ok := c.Campaigns[id]
	if !ok {
		return Campaign{}, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	return camp, nil
}

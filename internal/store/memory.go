package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// Memory is an in-process schemas.ScenarioStore with the same uniqueness
// rules as the PostgreSQL store. Contents are lost on exit.
type Memory struct {
	mu    sync.RWMutex
	items []schemas.SavedScenario
	now   func() time.Time
}

var _ schemas.ScenarioStore = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{now: func() time.Time { return time.Now().UTC() }}
}

func (m *Memory) GetAllSavedScenarios(_ context.Context) ([]schemas.SavedScenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schemas.SavedScenario, 0, len(m.items))
	for _, s := range m.items {
		out = append(out, clone(s))
	}
	return out, nil
}

func (m *Memory) GetSavedScenariosByURL(_ context.Context, url string) ([]schemas.SavedScenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []schemas.SavedScenario{}
	for _, s := range m.items {
		if s.URL == url {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

func (m *Memory) CreateSavedScenario(_ context.Context, in schemas.SavedScenarioInput) (*schemas.SavedScenario, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conflicts("", in.URL, in.Title, in.UserStory) {
		return nil, nil
	}
	now := m.now()
	saved := schemas.SavedScenario{
		ID:        uuid.NewString(),
		URL:       in.URL,
		Title:     in.Title,
		UserStory: in.UserStory,
		Steps:     copySteps(in.Steps),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.items = append(m.items, saved)
	out := clone(saved)
	return &out, nil
}

func (m *Memory) UpdateSavedScenario(_ context.Context, id string, upd schemas.SavedScenarioUpdate) (*schemas.SavedScenario, error) {
	if err := validateUpdate(upd); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.items {
		if m.items[i].ID != id {
			continue
		}
		next := clone(m.items[i])
		next.Steps = copySteps(upd.Steps)
		if upd.Title != nil {
			next.Title = *upd.Title
		}
		if upd.UserStory != nil {
			next.UserStory = *upd.UserStory
		}
		if m.conflicts(id, next.URL, next.Title, next.UserStory) {
			return nil, ErrConflict
		}
		next.UpdatedAt = m.now()
		m.items[i] = next
		out := clone(next)
		return &out, nil
	}
	return nil, nil
}

// conflicts reports whether another scenario for url shares the title or the
// normalized story. Callers hold the lock.
func (m *Memory) conflicts(selfID, url, title, story string) bool {
	key := schemas.StoryKey(story)
	for _, s := range m.items {
		if s.ID == selfID || s.URL != url {
			continue
		}
		if s.Title == title || (key != "" && schemas.StoryKey(s.UserStory) == key) {
			return true
		}
	}
	return false
}

func clone(s schemas.SavedScenario) schemas.SavedScenario {
	s.Steps = copySteps(s.Steps)
	return s
}

func copySteps(steps []string) []string {
	out := make([]string, len(steps))
	copy(out, steps)
	return out
}

package session

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/agentflow/pkg/domain"
)

// Storage is a handle on one open session. Every mutation is written through
// to the store under the session lock.
//
// A nil *Storage stands for "no session": reads return zero values and
// writes fail with domain.ErrSessionNotLoaded.
type Storage struct {
	manager *Manager
	name    string

	mu   sync.RWMutex
	data *domain.SessionData
}

// Name returns the session name.
func (s *Storage) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// UpdateData sets key in the shared data, or in the data of screen when
// screen is not empty, records an "update_data: <key>" history entry and saves.
func (s *Storage) UpdateData(ctx context.Context, key string, value any, screen string) error {
	if s == nil {
		return domain.ErrSessionNotLoaded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if screen != "" {
		s.data.Screen(screen).Data[key] = value
	} else {
		s.data.SharedData.Data[key] = value
	}
	s.appendHistory("update_data: "+key, map[string]any{"value": value}, screen)
	return s.saveLocked(ctx)
}

// GetData returns the value stored under key, or nil.
func (s *Storage) GetData(key string, screen string) any {
	if s == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if screen != "" {
		sc, ok := s.data.Screens[screen]
		if !ok {
			return nil
		}
		return sc.Data[key]
	}
	return s.data.SharedData.Data[key]
}

// AddCommandResult appends a history entry and saves.
func (s *Storage) AddCommandResult(ctx context.Context, command string, result any, screen string) error {
	if s == nil {
		return domain.ErrSessionNotLoaded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendHistory(command, result, screen)
	return s.saveLocked(ctx)
}

// History returns a copy of the command history of screen, or of the shared
// history when screen is empty.
func (s *Storage) History(screen string) []domain.HistoryEntry {
	if s == nil {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var src []domain.HistoryEntry
	if screen != "" {
		if sc, ok := s.data.Screens[screen]; ok {
			src = sc.CommandHistory
		}
	} else {
		src = s.data.SharedData.CommandHistory
	}
	out := make([]domain.HistoryEntry, len(src))
	copy(out, src)
	return out
}

// Snapshot returns a deep copy of the session document.
func (s *Storage) Snapshot() (*domain.SessionData, error) {
	if s == nil {
		return nil, domain.ErrSessionNotLoaded
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// Save writes the current document to the store.
func (s *Storage) Save(ctx context.Context) error {
	if s == nil {
		return domain.ErrSessionNotLoaded
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Storage) appendHistory(command string, result any, screen string) {
	entry := domain.HistoryEntry{
		Command:   command,
		Result:    result,
		Timestamp: time.Now(),
	}
	if screen != "" {
		sc := s.data.Screen(screen)
		sc.CommandHistory = append(sc.CommandHistory, entry)
		return
	}
	s.data.SharedData.CommandHistory = append(s.data.SharedData.CommandHistory, entry)
}

func (s *Storage) saveLocked(ctx context.Context) error {
	return s.manager.Save(ctx, s.name, s.data)
}

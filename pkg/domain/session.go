package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is the shared_data.version written for new sessions.
const SchemaVersion = 1

// HistoryEntry is one line of a command history.
type HistoryEntry struct {
	Command   string    `json:"command"`
	Result    any       `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// SharedData holds data visible to every screen of a session.
type SharedData struct {
	Version        int            `json:"version"`
	Data           map[string]any `json:"data"`
	CommandHistory []HistoryEntry `json:"command_history"`
}

// ScreenData holds data private to one screen.
type ScreenData struct {
	Data           map[string]any `json:"data"`
	CommandHistory []HistoryEntry `json:"command_history"`
}

// SessionData is the persisted document of a session.
type SessionData struct {
	SharedData SharedData             `json:"shared_data"`
	Screens    map[string]*ScreenData `json:"screens"`
}

// NewSessionData returns an empty session document at the current schema version.
func NewSessionData() *SessionData {
	return &SessionData{
		SharedData: SharedData{
			Version:        SchemaVersion,
			Data:           make(map[string]any),
			CommandHistory: []HistoryEntry{},
		},
		Screens: make(map[string]*ScreenData),
	}
}

// Screen returns the screen record, creating it when missing.
func (s *SessionData) Screen(name string) *ScreenData {
	if s.Screens == nil {
		s.Screens = make(map[string]*ScreenData)
	}
	sc, ok := s.Screens[name]
	if !ok {
		sc = &ScreenData{
			Data:           make(map[string]any),
			CommandHistory: []HistoryEntry{},
		}
		s.Screens[name] = sc
	}
	if sc.Data == nil {
		sc.Data = make(map[string]any)
	}
	return sc
}

// Normalize fills nil maps left behind by decoding sparse documents.
func (s *SessionData) Normalize() {
	if s.SharedData.Data == nil {
		s.SharedData.Data = make(map[string]any)
	}
	if s.SharedData.CommandHistory == nil {
		s.SharedData.CommandHistory = []HistoryEntry{}
	}
	if s.SharedData.Version == 0 {
		s.SharedData.Version = SchemaVersion
	}
	if s.Screens == nil {
		s.Screens = make(map[string]*ScreenData)
	}
	for _, sc := range s.Screens {
		if sc.Data == nil {
			sc.Data = make(map[string]any)
		}
		if sc.CommandHistory == nil {
			sc.CommandHistory = []HistoryEntry{}
		}
	}
}

// Clone returns a deep copy through a JSON round trip.
// Values therefore come back with JSON types (float64 numbers, []any slices).
func (s *SessionData) Clone() (*SessionData, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	var out SessionData
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	out.Normalize()
	return &out, nil
}

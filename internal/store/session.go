package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenStore holds the API credentials used by the client.
type TokenStore interface {
	Access() string
	Refresh() string
	SetAccess(access string) error
	SetPair(access, refresh string) error
	Clear() error
}

type sessionData struct {
	Access     string `json:"access,omitempty"`
	Refresh    string `json:"refresh,omitempty"`
	ActiveTeam string `json:"active_team,omitempty"`
}

// FileSession persists tokens and the selected team to a JSON file readable
// only by the current user.
type FileSession struct {
	path string
	mu   sync.RWMutex
	data sessionData
}

// OpenSession loads the session at path. A missing file yields an empty
// session.
func OpenSession(path string) (*FileSession, error) {
	s := &FileSession{path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return s, nil
}

func (s *FileSession) Access() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Access
}

func (s *FileSession) Refresh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Refresh
}

func (s *FileSession) ActiveTeam() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ActiveTeam
}

func (s *FileSession) SetAccess(access string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Access = access
	return s.save()
}

func (s *FileSession) SetPair(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Access = access
	s.data.Refresh = refresh
	return s.save()
}

func (s *FileSession) SetActiveTeam(teamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ActiveTeam = teamID
	return s.save()
}

// Clear drops the tokens but keeps the selected team.
func (s *FileSession) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Access = ""
	s.data.Refresh = ""
	return s.save()
}

// save must be called with mu held.
func (s *FileSession) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// MemoryTokens is a TokenStore that lives only in memory.
type MemoryTokens struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func NewMemoryTokens(access, refresh string) *MemoryTokens {
	return &MemoryTokens{access: access, refresh: refresh}
}

func (m *MemoryTokens) Access() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access
}

func (m *MemoryTokens) Refresh() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refresh
}

func (m *MemoryTokens) SetAccess(access string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = access
	return nil
}

func (m *MemoryTokens) SetPair(access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh = access, refresh
	return nil
}

func (m *MemoryTokens) Clear() error {
	return m.SetPair("", "")
}

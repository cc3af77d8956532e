// Package store keeps client-side state: API credentials, the signed-in user
// and the team list. Each store guards its own data and is handed to the
// code that needs it rather than shared through globals.
package store

import (
	"errors"
	"sync"

	"github.com/fish-not-phish/pixurebyte/internal/schema"
)

var ErrNoActiveTeam = errors.New("no active team selected")

// UserStore caches the signed-in user.
type UserStore struct {
	mu   sync.RWMutex
	user *schema.CurrentUser
}

func (s *UserStore) Get() (schema.CurrentUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return schema.CurrentUser{}, false
	}
	return *s.user, true
}

func (s *UserStore) Set(u schema.CurrentUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
}

func (s *UserStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}

// TeamStore caches the user's teams and which one is active.
type TeamStore struct {
	mu     sync.RWMutex
	teams  []schema.Team
	active string
}

func (s *TeamStore) Teams() []schema.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.Team, len(s.teams))
	copy(out, s.teams)
	return out
}

func (s *TeamStore) SetTeams(teams []schema.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams = append([]schema.Team(nil), teams...)
}

// Active returns the active team, looked up in the cached list when present.
func (s *TeamStore) Active() (schema.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == "" {
		return schema.Team{}, ErrNoActiveTeam
	}
	for _, t := range s.teams {
		if t.ID == s.active {
			return t, nil
		}
	}
	return schema.Team{ID: s.active}, nil
}

func (s *TeamStore) SetActive(teamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = teamID
}

package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fish-not-phish/pixurebyte/internal/schema"
)

func TestFileSession_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	s, err := OpenSession(path)
	require.NoError(t, err)
	assert.Empty(t, s.Access())

	require.NoError(t, s.SetPair("a1", "r1"))
	require.NoError(t, s.SetActiveTeam("team-1"))
	require.NoError(t, s.SetAccess("a2"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := OpenSession(path)
	require.NoError(t, err)
	assert.Equal(t, "a2", reopened.Access())
	assert.Equal(t, "r1", reopened.Refresh())
	assert.Equal(t, "team-1", reopened.ActiveTeam())

	require.NoError(t, reopened.Clear())
	assert.Empty(t, reopened.Access())
	assert.Empty(t, reopened.Refresh())
	assert.Equal(t, "team-1", reopened.ActiveTeam())
}

func TestOpenSession_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := OpenSession(path)
	assert.Error(t, err)
}

func TestMemoryTokens(t *testing.T) {
	m := NewMemoryTokens("a", "r")
	require.NoError(t, m.SetAccess("b"))
	assert.Equal(t, "b", m.Access())
	assert.Equal(t, "r", m.Refresh())
	require.NoError(t, m.Clear())
	assert.Empty(t, m.Refresh())
}

func TestUserStore(t *testing.T) {
	var s UserStore
	_, ok := s.Get()
	assert.False(t, ok)

	s.Set(schema.CurrentUser{ID: "u1", Email: "a@b.c"})
	u, ok := s.Get()
	require.True(t, ok)
	assert.Equal(t, "a@b.c", u.Email)

	s.Clear()
	_, ok = s.Get()
	assert.False(t, ok)
}

func TestTeamStore(t *testing.T) {
	var s TeamStore
	_, err := s.Active()
	assert.ErrorIs(t, err, ErrNoActiveTeam)

	teams := []schema.Team{{ID: "t1", Name: "Blue"}, {ID: "t2", Name: "Red"}}
	s.SetTeams(teams)
	teams[0].Name = "mutated"
	assert.Equal(t, "Blue", s.Teams()[0].Name)

	s.SetActive("t2")
	active, err := s.Active()
	require.NoError(t, err)
	assert.Equal(t, "Red", active.Name)

	s.SetActive("t9")
	active, err = s.Active()
	require.NoError(t, err)
	assert.Equal(t, schema.Team{ID: "t9"}, active)
}

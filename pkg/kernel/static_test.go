package kernel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
groups:
  - group_id: 42
    group_name: dev
    member_count: 3
    max_member_count: 200
  - group_id: 7
    group_name: ops
    member_count: 1
    max_member_count: 50
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadStatic(t *testing.T) {
	s, err := LoadStatic(writeFixture(t, fixtureYAML))
	require.NoError(t, err)

	groups, err := s.Groups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, Group{ID: 42, Name: "dev", MemberCount: 3, MaxMemberCount: 200}, groups[0])
}

func TestLoadStatic_MissingFile(t *testing.T) {
	s, err := LoadStatic(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	groups, err := s.Groups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestLoadStatic_Invalid(t *testing.T) {
	_, err := LoadStatic(writeFixture(t, "groups: [oops"))
	assert.Error(t, err)

	_, err = LoadStatic(writeFixture(t, "groups:\n  - group_id: 1\n  - group_id: 1\n"))
	assert.ErrorContains(t, err, "duplicate group_id 1")
}

func TestStatic_Reload(t *testing.T) {
	path := writeFixture(t, fixtureYAML)
	s, err := LoadStatic(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("groups:\n  - group_id: 1\n    group_name: new\n"), 0o644))
	require.NoError(t, s.Reload())

	groups, _ := s.Groups(context.Background())
	require.Len(t, groups, 1)
	assert.Equal(t, "new", groups[0].Name)

	// A broken file keeps the previous state.
	require.NoError(t, os.WriteFile(path, []byte("groups: [oops"), 0o644))
	assert.Error(t, s.Reload())
	groups, _ = s.Groups(context.Background())
	assert.Len(t, groups, 1)

	assert.ErrorIs(t, NewStatic().Reload(), ErrNoSource)
}

func TestFindGroup(t *testing.T) {
	s := NewStatic(Group{ID: 42, Name: "dev"})

	g, ok, err := FindGroup(context.Background(), s, "42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dev", g.Name)

	_, ok, err = FindGroup(context.Background(), s, "43")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatic_GroupsIsACopy(t *testing.T) {
	s := NewStatic(Group{ID: 1, Name: "a"})
	groups, _ := s.Groups(context.Background())
	groups[0].Name = "mutated"

	again, _ := s.Groups(context.Background())
	assert.Equal(t, "a", again[0].Name)
}

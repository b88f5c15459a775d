package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/atlassrv/db/dberror"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/common/uuid"
)

func newEntry(path, name string) *models.CatalogEntry {
	t, _ := atlascommon.EntryTypeForPath(path)
	return &models.CatalogEntry{Type: t, Name: name, Path: path, OwnerID: uuid.New()}
}

func TestEntryLifecycle(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()

	e := newEntry("skills/review.md", "review")
	e.Tags = []string{"Go", "go"}
	require.NoError(t, idx.CreateEntry(ctx, e))
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, []string{"go"}, e.Tags)

	err := idx.CreateEntry(ctx, newEntry("skills/review.md", "dup"))
	assert.ErrorIs(t, err, dberror.ErrAlreadyExists)

	got, err := idx.GetEntryByPath(ctx, "skills/review.md")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)

	// returned values are copies
	got.Tags[0] = "mutated"
	again, err := idx.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, again.Tags)

	require.NoError(t, idx.UpdateEntryContent(ctx, e.ID, models.ContentFields{
		Name: "Review", Description: "d", ContentRevision: "abc",
	}))
	again, _ = idx.GetEntry(ctx, e.ID)
	assert.Equal(t, "Review", again.Name)
	assert.Equal(t, "abc", again.ContentRevision)
	assert.Equal(t, e.OwnerID, again.OwnerID)
	assert.Equal(t, []string{"go"}, again.Tags)

	updated, err := idx.UpdateEntryTags(ctx, e.ID, []string{"B", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, updated.Tags)

	n, err := idx.IncrementUsage(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, idx.DeleteEntry(ctx, e.ID))
	_, err = idx.GetEntryByPath(ctx, "skills/review.md")
	assert.ErrorIs(t, err, dberror.ErrNotFound)
	assert.ErrorIs(t, idx.DeleteEntry(ctx, e.ID), dberror.ErrNotFound)
	_, err = idx.IncrementUsage(ctx, e.ID)
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestListEntries(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	for _, p := range []struct{ path, name string }{
		{"skills/b.md", "beta"},
		{"skills/a.md", "alpha"},
		{"mcps/gh.json", "github"},
		{"tools/lint.md", "lint"},
	} {
		require.NoError(t, idx.CreateEntry(ctx, newEntry(p.path, p.name)))
	}

	all, err := idx.ListEntries(ctx, models.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "alpha", all[0].Name)

	skills, err := idx.ListEntries(ctx, models.EntryFilter{Type: atlascommon.EntryTypeSkill})
	require.NoError(t, err)
	assert.Len(t, skills, 2)

	page, err := idx.ListEntries(ctx, models.EntryFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "beta", page[0].Name)

	none, err := idx.ListEntries(ctx, models.EntryFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)

	prefixed, err := idx.ListEntries(ctx, models.EntryFilter{PathPrefixes: []string{"mcps/", "tools/"}})
	require.NoError(t, err)
	assert.Len(t, prefixed, 2)
}

func TestUserConfiguration(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	user := uuid.New()

	_, err := idx.GetUserConfiguration(ctx, user)
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	uc := &models.UserConfiguration{UserID: user, Path: atlascommon.UserConfigPath(user.String()), LastRevision: "r1"}
	require.NoError(t, idx.UpsertUserConfiguration(ctx, uc))
	firstID := uc.ID

	uc2 := &models.UserConfiguration{UserID: user, Path: uc.Path, LastRevision: "r2"}
	require.NoError(t, idx.UpsertUserConfiguration(ctx, uc2))
	assert.Equal(t, firstID, uc2.ID)

	got, err := idx.GetUserConfiguration(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "r2", got.LastRevision)

	assert.ErrorIs(t, idx.UpsertUserConfiguration(ctx, &models.UserConfiguration{}), dberror.ErrInvalidInput)
}

func TestTeams(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	user := uuid.New()

	platform := &models.Team{Name: "platform"}
	data := &models.Team{Name: "data"}
	require.NoError(t, idx.CreateTeam(ctx, platform))
	require.NoError(t, idx.CreateTeam(ctx, data))
	assert.ErrorIs(t, idx.CreateTeam(ctx, &models.Team{Name: "data"}), dberror.ErrAlreadyExists)

	require.NoError(t, idx.AddTeamMember(ctx, platform.ID, user))
	require.NoError(t, idx.AddTeamMember(ctx, data.ID, user))
	require.NoError(t, idx.AddTeamMember(ctx, data.ID, user))
	assert.ErrorIs(t, idx.AddTeamMember(ctx, uuid.New(), user), dberror.ErrNotFound)

	teams, err := idx.ListTeamsForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "data", teams[0].Name)
	assert.Equal(t, "platform", teams[1].Name)

	teams, err = idx.ListTeamsForUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, teams)

	all, err := idx.ListTeams(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "data", all[0].Name)
	got, err := idx.GetTeam(ctx, platform.ID)
	require.NoError(t, err)
	assert.Equal(t, "platform", got.Name)
	_, err = idx.GetTeam(ctx, uuid.New())
	assert.ErrorIs(t, err, dberror.ErrNotFound)

	members, err := idx.ListTeamMembers(ctx, data.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{user}, members)

	require.NoError(t, idx.RemoveTeamMember(ctx, data.ID, user))
	assert.ErrorIs(t, idx.RemoveTeamMember(ctx, data.ID, user), dberror.ErrNotFound)
	assert.ErrorIs(t, idx.RemoveTeamMember(ctx, uuid.New(), user), dberror.ErrNotFound)
	teams, err = idx.ListTeamsForUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "platform", teams[0].Name)
	members, err = idx.ListTeamMembers(ctx, data.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
	_, err = idx.ListTeamMembers(ctx, uuid.New())
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/atlassrv/contentstore"
	"github.com/tansive/atlas/internal/atlassrv/db/memory"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/atlassrv/reconcile"
	"github.com/tansive/atlas/internal/common/uuid"
)

var owner = uuid.MustParse("0190a0e4-0000-7000-8000-000000000042")

func newService() (*Service, *contentstore.MemoryStore, *memory.Index) {
	store := contentstore.NewMemoryStore(contentstore.WithAuthor("atlas"))
	idx := memory.NewIndex()
	return NewService(store, idx), store, idx
}

func TestSaveInfersTypeAndWritesContent(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newService()

	content := "---\nname: Review Helper\ndescription: Reviews pull requests\ntags: [Go, review]\n---\nbody\n"
	e, err := s.Save(ctx, owner, &SaveRequest{Path: "skills/review.md", Content: content})
	require.NoError(t, err)

	assert.Equal(t, atlascommon.EntryTypeSkill, e.Type)
	assert.Equal(t, "Review Helper", e.Name)
	assert.Equal(t, "Reviews pull requests", e.Description)
	assert.Equal(t, []string{"go", "review"}, e.Tags)
	assert.Equal(t, owner, e.OwnerID)
	assert.True(t, uuid.IsUUIDv7(e.ID))

	doc, err := store.Read(ctx, "skills/review.md")
	require.NoError(t, err)
	assert.Equal(t, content, doc.Content)
	assert.Equal(t, doc.Revision.ID, e.ContentRevision)
	assert.Equal(t, "Add skill Review Helper", doc.Revision.Message)

	got, err := s.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Path, got.Path)
}

func TestSaveExplicitFieldsWin(t *testing.T) {
	s, _, _ := newService()
	team := uuid.UUID7()
	e, err := s.Save(context.Background(), owner, &SaveRequest{
		Path:        "mcps/github.json",
		Content:     `{"command":"gh-mcp"}`,
		Name:        "GitHub",
		Description: "GitHub MCP server",
		Tags:        []string{" SCM ", "scm", ""},
		TeamID:      &team,
		Message:     "register github mcp",
	})
	require.NoError(t, err)
	assert.Equal(t, atlascommon.EntryTypeMCP, e.Type)
	assert.Equal(t, "GitHub", e.Name)
	assert.Equal(t, []string{"scm"}, e.Tags)
	require.NotNil(t, e.TeamID)
	assert.Equal(t, team, *e.TeamID)
}

func TestSaveRejections(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newService()

	_, err := s.Save(ctx, owner, &SaveRequest{Path: "tools/lint.sh", Content: "echo lint"})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *SaveRequest
		want error
	}{
		{"duplicate path", &SaveRequest{Path: "tools/lint.sh", Content: "x"}, ErrEntryExists},
		{"duplicate after cleaning", &SaveRequest{Path: "tools/./lint.sh", Content: "x"}, ErrEntryExists},
		{"untracked prefix", &SaveRequest{Path: "docs/readme.md", Content: "x"}, ErrInvalidEntry},
		{"prefix only", &SaveRequest{Path: "skills/", Content: "x"}, ErrInvalidEntry},
		{"escaping path", &SaveRequest{Path: "../skills/a.md", Content: "x"}, ErrInvalidEntry},
		{"empty content", &SaveRequest{Path: "skills/a.md"}, ErrInvalidEntry},
		{"nil request", nil, ErrInvalidEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(ctx, owner, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	paths, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tools/lint.sh"}, paths, "rejected saves write nothing")
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService()
	other := uuid.UUID7()

	for _, r := range []struct {
		owner uuid.UUID
		req   SaveRequest
	}{
		{owner, SaveRequest{Path: "skills/a.md", Content: "a", Name: "Alpha", Tags: []string{"go"}}},
		{owner, SaveRequest{Path: "skills/b.md", Content: "b", Name: "Beta", Description: "database helper"}},
		{other, SaveRequest{Path: "tools/c.sh", Content: "c", Name: "Gamma", Tags: []string{"go"}}},
	} {
		req := r.req
		_, err := s.Save(ctx, r.owner, &req)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter models.EntryFilter
		want   []string
	}{
		{"all", models.EntryFilter{}, []string{"Alpha", "Beta", "Gamma"}},
		{"type", models.EntryFilter{Type: atlascommon.EntryTypeTool}, []string{"Gamma"}},
		{"owner", models.EntryFilter{OwnerID: other}, []string{"Gamma"}},
		{"tag is case insensitive", models.EntryFilter{Tag: " GO "}, []string{"Alpha", "Gamma"}},
		{"search description", models.EntryFilter{Search: "DATABASE"}, []string{"Beta"}},
		{"page", models.EntryFilter{Limit: 1, Offset: 1}, []string{"Beta"}},
		{"negative offset", models.EntryFilter{Offset: -3, Limit: 1}, []string{"Alpha"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			names := []string{}
			for _, e := range list {
				names = append(names, e.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestTagsAndUsage(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService()
	e, err := s.Save(ctx, owner, &SaveRequest{Path: "skills/a.md", Content: "a"})
	require.NoError(t, err)

	updated, err := s.UpdateTags(ctx, e.ID, []string{"Review", " review", "", "CI"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ci", "review"}, updated.Tags)

	_, err = s.UpdateTags(ctx, e.ID, []string{"bad,tag"})
	assert.ErrorIs(t, err, ErrInvalidEntry)

	n, err := s.RecordUsage(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = s.RecordUsage(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	missing := uuid.UUID7()
	_, err = s.Get(ctx, missing)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = s.UpdateTags(ctx, missing, []string{"x"})
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = s.RecordUsage(ctx, missing)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestNormalizeListLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, NormalizeListLimit(0))
	assert.Equal(t, 10, NormalizeListLimit(10))
	assert.Equal(t, MaxListLimit, NormalizeListLimit(10000))
}

// writeHook runs afterWrite once the wrapped store accepted a write.
type writeHook struct {
	contentstore.Store
	afterWrite func(p string)
}

func (h *writeHook) Write(ctx context.Context, p, content, message string) (*contentstore.Revision, error) {
	rev, err := h.Store.Write(ctx, p, content, message)
	if err == nil && h.afterWrite != nil {
		h.afterWrite(p)
	}
	return rev, err
}

func TestSaveExcludesReconciliation(t *testing.T) {
	ctx := context.Background()
	store := contentstore.NewMemoryStore()
	idx := memory.NewIndex()
	system := uuid.UUID7()
	engine := reconcile.NewEngine(store, idx, system)

	// a push notification for the new file arrives before the save indexes it
	var scanErr error
	hooked := &writeHook{Store: store, afterWrite: func(string) {
		_, scanErr = engine.TryFullScan(ctx)
	}}
	s := NewService(hooked, idx, WithSerializer(engine))

	e, err := s.Save(ctx, owner, &SaveRequest{Path: "skills/a.md", Content: "a"})
	require.NoError(t, err)
	assert.ErrorIs(t, scanErr, reconcile.ErrScanInProgress)

	res, err := engine.TargetedScan(ctx, []string{"skills/a.md"})
	require.NoError(t, err)
	assert.False(t, res.Changed())

	got, err := idx.GetEntryByPath(ctx, "skills/a.md")
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, owner, got.OwnerID)
}

func TestContentAndDelete(t *testing.T) {
	ctx := context.Background()
	s, store, idx := newService()
	e, err := s.Save(ctx, owner, &SaveRequest{Path: "skills/a.md", Content: "---\nname: Alpha\n---\nbody"})
	require.NoError(t, err)

	doc, err := s.Content(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "---\nname: Alpha\n---\nbody", doc.Content)
	assert.Equal(t, e.ContentRevision, doc.Revision.ID)

	err = s.Delete(ctx, uuid.UUID7(), false, e.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, s.Delete(ctx, owner, false, e.ID))
	_, err = store.Read(ctx, "skills/a.md")
	assert.ErrorIs(t, err, contentstore.ErrNotFound)
	hist, err := store.History(ctx, "skills/a.md", 1)
	require.NoError(t, err)
	assert.Equal(t, "Remove skill Alpha", hist[0].Message)
	_, err = idx.GetEntry(ctx, e.ID)
	assert.Error(t, err)

	_, err = s.Content(ctx, e.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.ErrorIs(t, s.Delete(ctx, owner, false, e.ID), ErrEntryNotFound)

	// admins may delete any entry, and an index row whose content is
	// already gone is still dropped
	other, err := s.Save(ctx, owner, &SaveRequest{Path: "tools/t.sh", Content: "t"})
	require.NoError(t, err)
	_, err = store.Delete(ctx, "tools/t.sh", "gone")
	require.NoError(t, err)
	_, err = s.Content(ctx, other.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	require.NoError(t, s.Delete(ctx, uuid.UUID7(), true, other.ID))
	_, err = idx.GetEntry(ctx, other.ID)
	assert.Error(t, err)
}

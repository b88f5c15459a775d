// Package memory implements the metadata index in process memory. It backs
// tests and single-node development setups.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tansive/atlas/internal/atlassrv/db/dberror"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/common/apperrors"
	"github.com/tansive/atlas/internal/common/uuid"
)

type Index struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*models.CatalogEntry
	paths   map[string]uuid.UUID
	configs map[uuid.UUID]*models.UserConfiguration
	teams   map[uuid.UUID]*models.Team
	members map[uuid.UUID]map[uuid.UUID]struct{} // user -> teams
	now     func() time.Time
}

func NewIndex() *Index {
	return &Index{
		entries: make(map[uuid.UUID]*models.CatalogEntry),
		paths:   make(map[string]uuid.UUID),
		configs: make(map[uuid.UUID]*models.UserConfiguration),
		teams:   make(map[uuid.UUID]*models.Team),
		members: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func copyEntry(e *models.CatalogEntry) *models.CatalogEntry {
	c := *e
	c.Tags = append([]string{}, e.Tags...)
	if e.TeamID != nil {
		id := *e.TeamID
		c.TeamID = &id
	}
	return &c
}

func (m *Index) CreateEntry(ctx context.Context, e *models.CatalogEntry) apperrors.Error {
	if e.Path == "" || !e.Type.Valid() {
		return dberror.ErrInvalidInput.Msg("entry path and type are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.paths[e.Path]; ok {
		return dberror.ErrAlreadyExists.Msg("catalog entry already exists for path " + e.Path)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if _, ok := m.entries[e.ID]; ok {
		return dberror.ErrAlreadyExists.Msg("catalog entry already exists")
	}
	now := m.now()
	e.Tags = models.NormalizeTags(e.Tags)
	e.UsageCount = 0
	e.CreatedAt, e.UpdatedAt = now, now
	m.entries[e.ID] = copyEntry(e)
	m.paths[e.Path] = e.ID
	return nil
}

func (m *Index) GetEntry(ctx context.Context, id uuid.UUID) (*models.CatalogEntry, apperrors.Error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("catalog entry not found")
	}
	return copyEntry(e), nil
}

func (m *Index) GetEntryByPath(ctx context.Context, path string) (*models.CatalogEntry, apperrors.Error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.paths[path]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("catalog entry not found")
	}
	return copyEntry(m.entries[id]), nil
}

func (m *Index) UpdateEntryContent(ctx context.Context, id uuid.UUID, f models.ContentFields) apperrors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return dberror.ErrNotFound.Msg("catalog entry not found")
	}
	e.Name = f.Name
	e.Description = f.Description
	e.ContentRevision = f.ContentRevision
	e.UpdatedAt = m.now()
	return nil
}

func (m *Index) UpdateEntryTags(ctx context.Context, id uuid.UUID, tags []string) (*models.CatalogEntry, apperrors.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("catalog entry not found")
	}
	e.Tags = models.NormalizeTags(tags)
	e.UpdatedAt = m.now()
	return copyEntry(e), nil
}

func (m *Index) IncrementUsage(ctx context.Context, id uuid.UUID) (int64, apperrors.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return 0, dberror.ErrNotFound.Msg("catalog entry not found")
	}
	e.UsageCount++
	return e.UsageCount, nil
}

func (m *Index) DeleteEntry(ctx context.Context, id uuid.UUID) apperrors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return dberror.ErrNotFound.Msg("catalog entry not found")
	}
	delete(m.paths, e.Path)
	delete(m.entries, id)
	return nil
}

// ListEntries orders results by name then path, matching the SQL index.
func (m *Index) ListEntries(ctx context.Context, f models.EntryFilter) ([]*models.CatalogEntry, apperrors.Error) {
	m.mu.RLock()
	var out []*models.CatalogEntry
	for _, e := range m.entries {
		if f.Matches(e) {
			out = append(out, copyEntry(e))
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Path < out[j].Path
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Index) GetUserConfiguration(ctx context.Context, userID uuid.UUID) (*models.UserConfiguration, apperrors.Error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uc, ok := m.configs[userID]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("user configuration not found")
	}
	c := *uc
	return &c, nil
}

func (m *Index) UpsertUserConfiguration(ctx context.Context, uc *models.UserConfiguration) apperrors.Error {
	if uc.UserID == uuid.Nil || uc.Path == "" {
		return dberror.ErrInvalidInput.Msg("user id and path are required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if existing, ok := m.configs[uc.UserID]; ok {
		existing.Path = uc.Path
		existing.LastRevision = uc.LastRevision
		existing.UpdatedAt = now
		*uc = *existing
		return nil
	}
	if uc.ID == uuid.Nil {
		uc.ID = uuid.New()
	}
	uc.CreatedAt, uc.UpdatedAt = now, now
	c := *uc
	m.configs[uc.UserID] = &c
	return nil
}

func (m *Index) CreateTeam(ctx context.Context, t *models.Team) apperrors.Error {
	if t.Name == "" {
		return dberror.ErrInvalidInput.Msg("team name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.teams {
		if existing.Name == t.Name {
			return dberror.ErrAlreadyExists.Msg("team already exists")
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = m.now()
	c := *t
	m.teams[t.ID] = &c
	return nil
}

func (m *Index) AddTeamMember(ctx context.Context, teamID, userID uuid.UUID) apperrors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[teamID]; !ok {
		return dberror.ErrNotFound.Msg("team not found")
	}
	if m.members[userID] == nil {
		m.members[userID] = make(map[uuid.UUID]struct{})
	}
	m.members[userID][teamID] = struct{}{}
	return nil
}

func (m *Index) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, apperrors.Error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teams[id]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("team not found")
	}
	c := *t
	return &c, nil
}

func (m *Index) ListTeams(ctx context.Context) ([]models.Team, apperrors.Error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	teams := make([]models.Team, 0, len(m.teams))
	for _, t := range m.teams {
		teams = append(teams, *t)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

func (m *Index) RemoveTeamMember(ctx context.Context, teamID, userID uuid.UUID) apperrors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[teamID]; !ok {
		return dberror.ErrNotFound.Msg("team not found")
	}
	if _, ok := m.members[userID][teamID]; !ok {
		return dberror.ErrNotFound.Msg("user is not a member of the team")
	}
	delete(m.members[userID], teamID)
	if len(m.members[userID]) == 0 {
		delete(m.members, userID)
	}
	return nil
}

// ListTeamMembers returns the member ids in string order.
func (m *Index) ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, apperrors.Error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.teams[teamID]; !ok {
		return nil, dberror.ErrNotFound.Msg("team not found")
	}
	users := []uuid.UUID{}
	for user, teams := range m.members {
		if _, ok := teams[teamID]; ok {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].String() < users[j].String() })
	return users, nil
}

func (m *Index) ListTeamsForUser(ctx context.Context, userID uuid.UUID) ([]models.Team, apperrors.Error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var teams []models.Team
	for id := range m.members[userID] {
		teams = append(teams, *m.teams[id])
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

func (m *Index) Ping(ctx context.Context) error { return nil }

func (m *Index) Close() {}

package models

import (
	"sort"
	"strings"
	"time"

	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/common/uuid"
)

/*
CREATE TABLE catalog_entries (
  id UUID PRIMARY KEY,
  type VARCHAR(16) NOT NULL,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  path TEXT NOT NULL UNIQUE,
  owner_id UUID NOT NULL,
  team_id UUID,
  tags TEXT[] NOT NULL DEFAULT '{}',
  usage_count BIGINT NOT NULL DEFAULT 0,
  content_revision TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
*/

// CatalogEntry is the indexed metadata of one content item.
type CatalogEntry struct {
	ID              uuid.UUID             `db:"id" json:"id"`
	Type            atlascommon.EntryType `db:"type" json:"type" validate:"required,entryType"`
	Name            string                `db:"name" json:"name" validate:"required,max=255"`
	Description     string                `db:"description" json:"description" validate:"max=4096"`
	Path            string                `db:"path" json:"path" validate:"required,max=1024,trackedPath"`
	OwnerID         uuid.UUID             `db:"owner_id" json:"owner_id"`
	TeamID          *uuid.UUID            `db:"team_id" json:"team_id,omitempty"`
	Tags            []string              `db:"tags" json:"tags" validate:"max=32,dive,tag"`
	UsageCount      int64                 `db:"usage_count" json:"usage_count"`
	ContentRevision string                `db:"content_revision" json:"content_revision"`
	CreatedAt       time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time             `db:"updated_at" json:"updated_at"`
}

// ContentFields are the attributes derived from content. Reconciliation
// writes only these.
type ContentFields struct {
	Name            string
	Description     string
	ContentRevision string
}

// EntryFilter selects catalog entries. Zero values match everything.
type EntryFilter struct {
	Type         atlascommon.EntryType
	OwnerID      uuid.UUID
	TeamID       uuid.UUID
	Tag          string
	Search       string   // case-insensitive match on name or description
	PathPrefixes []string // path starts with any of these
	Limit        int
	Offset       int
}

// NormalizeTags trims and lowercases tags, drops empties and duplicates and
// returns them sorted.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Matches applies the filter to one entry. The memory index uses it; the
// SQL index expresses the same conditions in its WHERE clause.
func (f *EntryFilter) Matches(e *CatalogEntry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.OwnerID != uuid.Nil && e.OwnerID != f.OwnerID {
		return false
	}
	if f.TeamID != uuid.Nil && (e.TeamID == nil || *e.TeamID != f.TeamID) {
		return false
	}
	if f.Tag != "" {
		want := strings.ToLower(strings.TrimSpace(f.Tag))
		found := false
		for _, t := range e.Tags {
			if t == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Name), q) && !strings.Contains(strings.ToLower(e.Description), q) {
			return false
		}
	}
	if len(f.PathPrefixes) > 0 {
		ok := false
		for _, p := range f.PathPrefixes {
			if strings.HasPrefix(e.Path, p) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Package inheritance merges the organization, team and personal
// configuration documents that apply to a user.
package inheritance

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/atlassrv/contentstore"
	"github.com/tansive/atlas/internal/atlassrv/db"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/common/uuid"
)

const sectionSeparator = "\n\n---\n\n"

// EffectiveConfiguration is computed on every request and never stored.
type EffectiveConfiguration struct {
	Content             string `json:"content"`
	OrganizationContent string `json:"organization_content"`
	TeamContent         string `json:"team_content"`
	UserContent         string `json:"user_content"`
	OrgApplied          bool   `json:"org_applied"`
	TeamApplied         bool   `json:"team_applied"`
	UserApplied         bool   `json:"user_applied"`
}

// UserDocuments reads a user's personal document.
type UserDocuments interface {
	Read(ctx context.Context, userID uuid.UUID) (*contentstore.Document, error)
}

type Resolver struct {
	store contentstore.Store
	teams db.TeamManager
	users UserDocuments
}

func NewResolver(store contentstore.Store, teams db.TeamManager, users UserDocuments) *Resolver {
	return &Resolver{store: store, teams: teams, users: users}
}

type teamDoc struct {
	team    models.Team
	content string
}

// GetEffective reads every applicable document concurrently and merges them
// from the most general to the most specific.
func (r *Resolver) GetEffective(ctx context.Context, userID uuid.UUID) (*EffectiveConfiguration, error) {
	teams, err := r.teams.ListTeamsForUser(ctx, userID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", userID.String()).Msg("team lookup failed; resolving without teams")
		teams = nil
	}

	var (
		wg          sync.WaitGroup
		orgContent  string
		orgErr      error
		userContent string
		userErr     error
		teamDocs    = make([]teamDoc, len(teams))
	)

	wg.Add(2 + len(teams))
	go func() {
		defer wg.Done()
		orgContent, orgErr = r.readOptional(ctx, atlascommon.OrganizationConfigPath)
	}()
	go func() {
		defer wg.Done()
		doc, err := r.users.Read(ctx, userID)
		if err != nil {
			userErr = err
			return
		}
		userContent = doc.Content
	}()
	for i, team := range teams {
		go func(i int, team models.Team) {
			defer wg.Done()
			content, err := r.readOptional(ctx, atlascommon.TeamConfigPath(team.ID.String()))
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("team", team.Name).Msg("team configuration unavailable; skipping")
				return
			}
			teamDocs[i] = teamDoc{team: team, content: content}
		}(i, team)
	}
	wg.Wait()

	if orgErr != nil {
		return nil, orgErr
	}
	if userErr != nil {
		return nil, userErr
	}
	return merge(orgContent, teamDocs, userContent), nil
}

// readOptional treats a missing document as empty.
func (r *Resolver) readOptional(ctx context.Context, path string) (string, error) {
	doc, err := r.store.Read(ctx, path)
	if err != nil {
		if errors.Is(err, contentstore.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return doc.Content, nil
}

func applies(content string) bool {
	return strings.TrimSpace(content) != ""
}

func merge(org string, teams []teamDoc, user string) *EffectiveConfiguration {
	ec := &EffectiveConfiguration{
		OrganizationContent: org,
		UserContent:         user,
		OrgApplied:          applies(org),
		UserApplied:         applies(user),
	}

	var sections, teamContents []string
	if ec.OrgApplied {
		sections = append(sections, "# Organization Configuration\n\n"+org)
	}
	for _, td := range teams {
		if !applies(td.content) {
			continue
		}
		sections = append(sections, "# Team: "+td.team.Name+"\n\n"+td.content)
		teamContents = append(teamContents, td.content)
	}
	ec.TeamContent = strings.Join(teamContents, "\n\n")
	ec.TeamApplied = len(teamContents) > 0
	if ec.UserApplied {
		sections = append(sections, "# Personal Configuration\n\n"+user)
	}
	ec.Content = strings.Join(sections, sectionSeparator)
	return ec
}

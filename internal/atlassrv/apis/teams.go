package apis

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/atlassrv/schemavalidator"
	"github.com/tansive/atlas/internal/common/httpx"
	"github.com/tansive/atlas/internal/common/uuid"
)

type teamCreateReq struct {
	Name string `json:"name" validate:"required,max=255"`
}

type teamListRsp struct {
	Items []models.Team `json:"items"`
	Count int           `json:"count"`
}

type teamMemberReq struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type teamMembersRsp struct {
	TeamID  string      `json:"team_id"`
	Members []uuid.UUID `json:"members"`
}

func (s *Services) createTeam(r *http.Request) (*httpx.Response, error) {
	req := &teamCreateReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := schemavalidator.V().Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(schemavalidator.Describe(err))
	}
	team := &models.Team{ID: uuid.UUID7(), Name: req.Name}
	if err := s.Teams.CreateTeam(r.Context(), team); err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Str("team_id", team.ID.String()).Str("name", team.Name).Msg("team created")
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/admin/teams/" + team.ID.String(),
		Response:   team,
	}, nil
}

func (s *Services) listTeams(r *http.Request) (*httpx.Response, error) {
	teams, err := s.Teams.ListTeams(r.Context())
	if err != nil {
		return nil, err
	}
	if teams == nil {
		teams = []models.Team{}
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &teamListRsp{Items: teams, Count: len(teams)},
	}, nil
}

func (s *Services) listTeamMembers(r *http.Request) (*httpx.Response, error) {
	teamID, err := uuidParam(r, "teamID", "team")
	if err != nil {
		return nil, err
	}
	members, err := s.Teams.ListTeamMembers(r.Context(), teamID)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &teamMembersRsp{TeamID: teamID.String(), Members: members},
	}, nil
}

func (s *Services) addTeamMember(r *http.Request) (*httpx.Response, error) {
	teamID, err := uuidParam(r, "teamID", "team")
	if err != nil {
		return nil, err
	}
	req := &teamMemberReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := schemavalidator.V().Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(schemavalidator.Describe(err))
	}
	userID := uuid.MustParse(req.UserID)
	if err := s.Teams.AddTeamMember(r.Context(), teamID, userID); err != nil {
		return nil, err
	}
	return s.listTeamMembers(r)
}

func (s *Services) removeTeamMember(r *http.Request) (*httpx.Response, error) {
	teamID, err := uuidParam(r, "teamID", "team")
	if err != nil {
		return nil, err
	}
	userID, err := uuidParam(r, "userID", "user")
	if err != nil {
		return nil, err
	}
	if err := s.Teams.RemoveTeamMember(r.Context(), teamID, userID); err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Str("team_id", teamID.String()).Str("user_id", userID.String()).Msg("team member removed")
	return s.listTeamMembers(r)
}

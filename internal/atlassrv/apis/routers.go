// Package apis holds the HTTP handlers of atlassrv and the route tables that
// mount them.
package apis

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tansive/atlas/internal/atlassrv/auth"
	"github.com/tansive/atlas/internal/atlassrv/catalog"
	"github.com/tansive/atlas/internal/atlassrv/db"
	"github.com/tansive/atlas/internal/atlassrv/inheritance"
	"github.com/tansive/atlas/internal/atlassrv/reconcile"
	"github.com/tansive/atlas/internal/atlassrv/versioning"
	"github.com/tansive/atlas/internal/atlassrv/webhook"
	"github.com/tansive/atlas/internal/common/httpx"
)

// Services are the components the handlers call.
type Services struct {
	Auth       *auth.Authenticator
	Engine     *reconcile.Engine
	Ingestor   *webhook.Ingestor
	Versioning *versioning.Service
	Resolver   *inheritance.Resolver
	Catalog    *catalog.Service
	Teams      db.TeamManager
}

type handlerParam struct {
	Method  string
	Path    string
	Handler httpx.RequestHandler
}

// userHandlers need a valid bearer token.
func (s *Services) userHandlers() []handlerParam {
	return []handlerParam{
		{
			Method:  http.MethodGet,
			Path:    "/configuration/me",
			Handler: s.getMyConfiguration,
		},
		{
			Method:  http.MethodPut,
			Path:    "/configuration/me",
			Handler: s.putMyConfiguration,
		},
		{
			Method:  http.MethodGet,
			Path:    "/configuration/me/history",
			Handler: s.getMyConfigurationHistory,
		},
		{
			Method:  http.MethodGet,
			Path:    "/configuration/me/versions/{commitSha}",
			Handler: s.getMyConfigurationVersion,
		},
		{
			Method:  http.MethodPost,
			Path:    "/configuration/me/rollback/{commitSha}",
			Handler: s.rollbackMyConfiguration,
		},
		{
			Method:  http.MethodPost,
			Path:    "/configuration/me/import",
			Handler: s.importMyConfiguration,
		},
		{
			Method:  http.MethodGet,
			Path:    "/configuration/effective",
			Handler: s.getEffectiveConfiguration,
		},
		{
			Method:  http.MethodGet,
			Path:    "/catalog",
			Handler: s.listCatalogEntries,
		},
		{
			Method:  http.MethodPost,
			Path:    "/catalog",
			Handler: s.createCatalogEntry,
		},
		{
			Method:  http.MethodGet,
			Path:    "/catalog/{entryID}",
			Handler: s.getCatalogEntry,
		},
		{
			Method:  http.MethodDelete,
			Path:    "/catalog/{entryID}",
			Handler: s.deleteCatalogEntry,
		},
		{
			Method:  http.MethodGet,
			Path:    "/catalog/{entryID}/content",
			Handler: s.getCatalogEntryContent,
		},
		{
			Method:  http.MethodPut,
			Path:    "/catalog/{entryID}/tags",
			Handler: s.updateCatalogEntryTags,
		},
		{
			Method:  http.MethodPost,
			Path:    "/catalog/{entryID}/usage",
			Handler: s.recordCatalogEntryUsage,
		},
	}
}

// adminHandlers additionally need the admin claim.
func (s *Services) adminHandlers() []handlerParam {
	return []handlerParam{
		{
			Method:  http.MethodPost,
			Path:    "/sync/full",
			Handler: s.fullSync,
		},
		{
			Method:  http.MethodPost,
			Path:    "/admin/teams",
			Handler: s.createTeam,
		},
		{
			Method:  http.MethodGet,
			Path:    "/admin/teams",
			Handler: s.listTeams,
		},
		{
			Method:  http.MethodGet,
			Path:    "/admin/teams/{teamID}/members",
			Handler: s.listTeamMembers,
		},
		{
			Method:  http.MethodPost,
			Path:    "/admin/teams/{teamID}/members",
			Handler: s.addTeamMember,
		},
		{
			Method:  http.MethodDelete,
			Path:    "/admin/teams/{teamID}/members/{userID}",
			Handler: s.removeTeamMember,
		},
	}
}

// Router mounts every API route on r. The webhook route authenticates the
// delivery by its signature and sits outside the bearer token groups.
func Router(r chi.Router, s *Services) chi.Router {
	r.Method(http.MethodPost, "/webhooks/github", httpx.WrapHttpRsp(s.githubWebhook))

	r.Group(func(r chi.Router) {
		r.Use(s.Auth.UserMiddleware)
		for _, handler := range s.userHandlers() {
			r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(s.Auth.UserMiddleware)
		r.Use(auth.AdminMiddleware)
		for _, handler := range s.adminHandlers() {
			r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
		}
	})
	return r
}

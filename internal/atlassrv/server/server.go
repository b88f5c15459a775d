package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/apis"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/atlassrv/config"
	"github.com/tansive/atlas/internal/common/httpx"
	"github.com/tansive/atlas/internal/common/logtrace"
	commonmiddleware "github.com/tansive/atlas/internal/common/middleware"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type AtlasServer struct {
	Router   *chi.Mux
	services *apis.Services
	index    Pinger
}

// CreateNewServer builds a server over services. index backs /ready.
func CreateNewServer(services *apis.Services, index Pinger) (*AtlasServer, error) {
	if services == nil || services.Auth == nil {
		return nil, fmt.Errorf("server requires services with an authenticator")
	}
	s := &AtlasServer{
		services: services,
		index:    index,
	}
	s.Router = chi.NewRouter()
	return s, nil
}

func (s *AtlasServer) MountHandlers() {
	cfg := config.Config()
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if cfg != nil {
		s.Router.Use(commonmiddleware.SetTimeout(cfg.GetRequestTimeout()))
		s.Router.Use(commonmiddleware.LimitBody(cfg.MaxRequestBodySize))
		if cfg.HandleCORS {
			s.Router.Use(handleCORS(cfg.CORSAllowedOrigins))
		}
	}
	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in atlas router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			fmt.Printf("Logging err: %s\n", err.Error())
		}
	}
}

func (s *AtlasServer) mountResourceHandlers(r chi.Router) {
	apis.Router(r, s.services)
	r.Get("/version", s.getVersion)
	r.Get("/ready", s.getReadiness)
}

type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *AtlasServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion: "Atlas Server: " + atlascommon.ServerVersion,
		ApiVersion:    atlascommon.ApiVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *AtlasServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")

	if s.index != nil {
		if err := s.index.Ping(r.Context()); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("metadata index unreachable during readiness check")
			httpx.SendJsonRsp(r.Context(), w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  "metadata index unreachable",
			})
			return
		}
	}

	rsp := map[string]any{"status": "ready"}
	if s.services.Ingestor != nil {
		if q := s.services.Ingestor.Queue(); q != nil {
			rsp["webhook_queue"] = q
			if q.Pending >= q.Capacity {
				log.Ctx(r.Context()).Warn().Int("pending", q.Pending).Msg("webhook queue is full")
			}
		}
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func handleCORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Accept-Encoding"},
		ExposedHeaders:   []string{"Location", "Retry-After", commonmiddleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"envdash/api/config"
	"envdash/api/docker"
	"envdash/api/fleet"
	"envdash/api/hub"
	"envdash/api/model"
	"envdash/api/registry"
	"envdash/api/rundeck"
)

var validNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Fleet is the view over the Docker hosts.
type Fleet interface {
	Servers() []config.Server
	FetchForType(ctx context.Context, envType string) (*fleet.Result, error)
	FetchForServer(ctx context.Context, server, envType string) ([]model.Environment, error)
	FindEnvironment(ctx context.Context, envType, server, name string) (*model.Environment, error)
	ChangeRunningState(ctx context.Context, server, containerID string, action docker.Action) error
	ContainerLogs(ctx context.Context, server, containerID string, tail int) ([]byte, error)
	Ping(ctx context.Context) map[string]bool
}

type Jobs interface {
	Deploy(ctx context.Context, envType string, p rundeck.JobParams) (*rundeck.Execution, error)
	Delete(ctx context.Context, envType string, p rundeck.JobParams) (*rundeck.Execution, error)
}

type Registry interface {
	Ping(ctx context.Context) error
	FindBranchesOfApp(ctx context.Context, app string) ([]string, error)
	FindRepositoryTags(ctx context.Context, repo string) ([]string, error)
	AppCatalog(ctx context.Context, topo model.Topology) ([]registry.App, error)
}

type Handler struct {
	cfg      *config.Config
	fleet    Fleet
	jobs     Jobs
	registry Registry
	ws       *hub.Hub
	version  string
	log      logrus.FieldLogger
}

func New(cfg *config.Config, f Fleet, jobs Jobs, reg Registry, ws *hub.Hub, version string) *Handler {
	return &Handler{
		cfg:      cfg,
		fleet:    f,
		jobs:     jobs,
		registry: reg,
		ws:       ws,
		version:  version,
		log:      logrus.WithField("component", "handler"),
	}
}

// Mount registers the API routes under /api.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/version", h.Version)
		r.Get("/servers", h.ListServers)
		r.Get("/environments", h.ListEnvironments)

		r.Group(func(r chi.Router) {
			r.Use(ValidateParams)
			r.Get("/environments/{type}", h.ListEnvironments)
			r.Post("/environments/{type}", h.DeployEnvironment)
			r.Get("/environments/{type}/{server}/{env}", h.GetEnvironment)
			r.Delete("/environments/{type}/{server}/{env}", h.DeleteEnvironment)
			r.Get("/servers/{server}/environments", h.ListServerEnvironments)
			r.Get("/servers/{server}/containers/{container}/logs", h.ContainerLogs)
			r.Post("/servers/{server}/containers/{container}/{action}", h.ContainerAction)
			r.Get("/apps/{type}", h.AppCatalog)
			r.Get("/registry/{app}/branches", h.ListBranches)
			r.Get("/registry/{app}/{branch}/tags", h.ListTags)
		})
	})
}

// ValidateParams rejects path parameters that are not plain names. It must
// wrap endpoints directly so that the route's parameters are already known.
func ValidateParams(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		if rctx != nil {
			for _, v := range rctx.URLParams.Values {
				if v != "" && !validNameRe.MatchString(v) {
					writeError(w, http.StatusBadRequest, "invalid path parameter")
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) broadcast(evt hub.Event) {
	if h.ws != nil {
		h.ws.Broadcast(evt)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSONStatus(w, code, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

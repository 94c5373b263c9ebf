package handler

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"envdash/api/config"
	"envdash/api/fleet"
)

type serverList struct {
	Servers   []config.Server `json:"servers"`
	DBServers []string        `json:"dbservers"`
}

func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	db := h.cfg.DBServers
	if db == nil {
		db = []string{}
	}
	writeJSON(w, serverList{Servers: h.fleet.Servers(), DBServers: db})
}

// ListEnvironments returns every environment of a type on all servers,
// most recently changed first, with one status entry per server. The type
// is only a label filter, so types without a topology are listed too.
func (h *Handler) ListEnvironments(w http.ResponseWriter, r *http.Request) {
	res, err := h.fleet.FetchForType(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sort.SliceStable(res.Environments, func(i, j int) bool {
		return res.Environments[i].Modified.After(res.Environments[j].Modified)
	})
	writeJSON(w, res)
}

func (h *Handler) GetEnvironment(w http.ResponseWriter, r *http.Request) {
	env, err := h.fleet.FindEnvironment(r.Context(), chi.URLParam(r, "type"), chi.URLParam(r, "server"), chi.URLParam(r, "env"))
	if err != nil {
		h.writeFleetError(w, err)
		return
	}
	writeJSON(w, env)
}

func (h *Handler) ListServerEnvironments(w http.ResponseWriter, r *http.Request) {
	envs, err := h.fleet.FetchForServer(r.Context(), chi.URLParam(r, "server"), r.URL.Query().Get("type"))
	if err != nil {
		h.writeFleetError(w, err)
		return
	}
	writeJSON(w, envs)
}

// writeFleetError answers 404 for unknown servers and environments and 502
// when the server's daemon could not be queried.
func (h *Handler) writeFleetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fleet.ErrUnknownServer):
		writeError(w, http.StatusNotFound, "unknown server")
	case errors.Is(err, fleet.ErrEnvironmentMissing):
		writeError(w, http.StatusNotFound, "environment not found")
	default:
		h.log.WithError(err).Warn("docker query failed")
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

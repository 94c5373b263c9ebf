package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"envdash/api/model"
	"envdash/api/registry"
)

// AppCatalog lists the apps of an environment type with their branches,
// for building a deploy form.
func (h *Handler) AppCatalog(w http.ResponseWriter, r *http.Request) {
	topo, ok := model.LookupTopology(chi.URLParam(r, "type"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown environment type")
		return
	}
	apps, err := h.registry.AppCatalog(r.Context(), topo)
	if err != nil {
		h.log.WithError(err).Warn("registry lookup failed")
		writeError(w, http.StatusInternalServerError, "looking up images in the registry failed")
		return
	}
	writeJSON(w, map[string]interface{}{
		"apps":    apps,
		"servers": h.fleet.Servers(),
	})
}

func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.registry.FindBranchesOfApp(r.Context(), chi.URLParam(r, "app"))
	if err != nil {
		h.log.WithError(err).Warn("registry lookup failed")
		writeError(w, http.StatusInternalServerError, "fetching branches from the registry failed")
		return
	}
	writeJSON(w, branches)
}

func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "app") + "/" + chi.URLParam(r, "branch")
	tags, err := h.registry.FindRepositoryTags(r.Context(), repo)
	if err != nil {
		var se *registry.StatusError
		if errors.As(err, &se) {
			writeError(w, se.StatusCode, se.Status)
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, tags)
}

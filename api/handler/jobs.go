package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"envdash/api/auth"
	"envdash/api/rundeck"
)

type DeployRequest struct {
	Server      string            `json:"server"`
	Environment string            `json:"environment"`
	Options     map[string]string `json:"options,omitempty"`
}

type jobResponse struct {
	Status    string             `json:"status"`
	Execution *rundeck.Execution `json:"execution,omitempty"`
	Location  string             `json:"location,omitempty"`
}

// DeployEnvironment runs the deploy job of an environment type and waits for it.
func (h *Handler) DeployEnvironment(w http.ResponseWriter, r *http.Request) {
	envType := chi.URLParam(r, "type")

	var req DeployRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validNameRe.MatchString(req.Server) || !validNameRe.MatchString(req.Environment) {
		writeError(w, http.StatusBadRequest, "server and environment are required")
		return
	}
	if _, ok := h.cfg.Server(req.Server); !ok {
		writeError(w, http.StatusNotFound, "unknown server")
		return
	}

	params := rundeck.JobParams{Server: req.Server, Environment: req.Environment, Options: req.Options}
	exec, err := h.jobs.Deploy(r.Context(), envType, params)
	if err != nil {
		h.writeJobError(w, r, "deploy", params, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, jobResponse{
		Status:    exec.Status,
		Execution: exec,
		Location:  "/api/environments/" + envType + "/" + req.Server + "/" + req.Environment,
	})
}

func (h *Handler) DeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	server := chi.URLParam(r, "server")
	if _, ok := h.cfg.Server(server); !ok {
		writeError(w, http.StatusNotFound, "unknown server")
		return
	}

	params := rundeck.JobParams{Server: server, Environment: chi.URLParam(r, "env")}
	exec, err := h.jobs.Delete(r.Context(), chi.URLParam(r, "type"), params)
	if err != nil {
		h.writeJobError(w, r, "delete", params, err)
		return
	}
	writeJSON(w, jobResponse{Status: exec.Status, Execution: exec})
}

func (h *Handler) writeJobError(w http.ResponseWriter, r *http.Request, kind string, p rundeck.JobParams, err error) {
	log := h.log.WithFields(logrus.Fields{"job": kind, "server": p.Server, "environment": p.Environment})
	if who, ok := auth.FromContext(r.Context()); ok && who.Email != "" {
		log = log.WithField("user", who.Email)
	}

	var jerr *rundeck.JobError
	switch {
	case errors.Is(err, rundeck.ErrNoJob):
		writeError(w, http.StatusNotFound, "no "+kind+" job for this environment type")
	case errors.As(err, &jerr):
		log.WithError(err).Warn("job failed")
		writeError(w, http.StatusBadGateway, jerr.Message)
	default:
		log.WithError(err).Error("job failed")
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

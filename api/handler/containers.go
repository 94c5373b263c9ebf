package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"envdash/api/auth"
	"envdash/api/docker"
	"envdash/api/fleet"
	"envdash/api/hub"
)

const (
	defaultLogLines = 200
	maxLogLines     = 10000
)

// ContainerAction starts, stops, restarts or kills one container. A daemon
// failure is answered with the daemon's own status.
func (h *Handler) ContainerAction(w http.ResponseWriter, r *http.Request) {
	server := chi.URLParam(r, "server")
	id := chi.URLParam(r, "container")

	action, err := docker.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log := h.log.WithFields(logrus.Fields{"server": server, "container": id, "action": action})
	if who, ok := auth.FromContext(r.Context()); ok && who.Email != "" {
		log = log.WithField("user", who.Email)
	}

	err = h.fleet.ChangeRunningState(r.Context(), server, id, action)
	var ae *docker.ActionError
	switch {
	case err == nil:
	case errors.Is(err, fleet.ErrUnknownServer):
		writeError(w, http.StatusNotFound, "unknown server")
		return
	case errors.As(err, &ae):
		log.WithError(err).Warn("container action failed")
		writeError(w, ae.StatusCode, ae.Status)
		return
	default:
		log.WithError(err).Warn("container action failed")
		writeError(w, http.StatusBadGateway, http.StatusText(http.StatusBadGateway))
		return
	}

	log.Info("container action done")
	h.broadcast(hub.Event{
		Type:    "container.action",
		Target:  server + "/" + id,
		Payload: map[string]string{"action": string(action)},
	})
	writeJSON(w, map[string]string{"status": "ok", "action": string(action)})
}

// ContainerLogs returns the tail of a container's stdout as plain text.
func (h *Handler) ContainerLogs(w http.ResponseWriter, r *http.Request) {
	lines := defaultLogLines
	if s := r.URL.Query().Get("lines"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxLogLines {
			writeError(w, http.StatusBadRequest, "invalid lines parameter")
			return
		}
		lines = n
	}

	logs, err := h.fleet.ContainerLogs(r.Context(), chi.URLParam(r, "server"), chi.URLParam(r, "container"), lines)
	if err != nil {
		if errors.Is(err, fleet.ErrUnknownServer) {
			writeError(w, http.StatusNotFound, "unknown server")
			return
		}
		code := docker.HTTPStatus(err)
		writeError(w, code, "fetching docker logs failed: "+http.StatusText(code))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write(logs)
}
